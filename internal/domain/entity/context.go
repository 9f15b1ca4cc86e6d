package entity

import "sort"

// Role participant role of a ride request
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// ContextType which multi-step dialogue is active
type ContextType int

const (
	CreateDriverRequest ContextType = iota + 1
	CreatePassengerRequest
)

// Role role label carried by the context type
func (t ContextType) Role() Role {
	switch t {
	case CreateDriverRequest:
		return RoleDriver
	case CreatePassengerRequest:
		return RolePassenger
	default:
		return ""
	}
}

// Valid reports whether t is one of the declared context types
func (t ContextType) Valid() bool {
	return t == CreateDriverRequest || t == CreatePassengerRequest
}

func (t ContextType) String() string {
	switch t {
	case CreateDriverRequest:
		return "create_driver_request"
	case CreatePassengerRequest:
		return "create_passenger_request"
	default:
		return "unknown"
	}
}

// FieldName key of a single datum collected during a dialogue
type FieldName string

const (
	FieldRole             FieldName = "ROLE"
	FieldTelegramID       FieldName = "TELEGRAM_ID"
	FieldDeparturePoint   FieldName = "DEPARTURE_POINT"
	FieldDestinationPoint FieldName = "DESTINATION_POINT"
	FieldRideDate         FieldName = "RIDE_DATE"
)

// Command chat command that jumps to this field, empty for system-filled fields
func (f FieldName) Command() string {
	switch f {
	case FieldDeparturePoint:
		return CommandDeparture
	case FieldDestinationPoint:
		return CommandDestination
	case FieldRideDate:
		return CommandDate
	default:
		return ""
	}
}

// Dialogue commands
const (
	CommandCancel      = "/cancel"
	CommandDeparture   = "/departure"
	CommandDestination = "/destination"
	CommandDate        = "/date"
)

// requiredFields order matters: the dialogue asks for missing fields in this order
var requiredFields = map[ContextType][]FieldName{
	CreateDriverRequest: {
		FieldRole, FieldTelegramID, FieldDeparturePoint, FieldDestinationPoint, FieldRideDate,
	},
	CreatePassengerRequest: {
		FieldRole, FieldTelegramID, FieldDeparturePoint, FieldDestinationPoint, FieldRideDate,
	},
}

// RequiredFields fields that must be present before the request can be submitted
func RequiredFields(t ContextType) []FieldName {
	fields := requiredFields[t]
	out := make([]FieldName, len(fields))
	copy(out, fields)
	return out
}

// UserContext per-user dialogue session
type UserContext struct {
	contextType       ContextType
	Fields            map[FieldName]string
	AvailableCommands map[string]struct{}
}

// NewUserContext bare context for the given type
func NewUserContext(t ContextType) *UserContext {
	return &UserContext{
		contextType:       t,
		Fields:            make(map[FieldName]string),
		AvailableCommands: make(map[string]struct{}),
	}
}

// Type the dialogue type, fixed at creation
func (c *UserContext) Type() ContextType {
	return c.contextType
}

// Missing required fields not yet present, in dialogue order
func (c *UserContext) Missing() []FieldName {
	var missing []FieldName
	for _, f := range requiredFields[c.contextType] {
		if _, ok := c.Fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// HasCommand reports whether cmd is valid in this context
func (c *UserContext) HasCommand(cmd string) bool {
	_, ok := c.AvailableCommands[cmd]
	return ok
}

// Commands sorted list of available commands
func (c *UserContext) Commands() []string {
	out := make([]string, 0, len(c.AvailableCommands))
	for cmd := range c.AvailableCommands {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Clone deep copy, so stores never share maps with callers
func (c *UserContext) Clone() *UserContext {
	out := NewUserContext(c.contextType)
	for k, v := range c.Fields {
		out.Fields[k] = v
	}
	for k := range c.AvailableCommands {
		out.AvailableCommands[k] = struct{}{}
	}
	return out
}
