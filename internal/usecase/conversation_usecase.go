package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

// DateLayout format accepted for ride dates without the interpreter
const DateLayout = "2006-01-02 15:04"

// Answer one user message inside a dialogue
type Answer struct {
	// Field explicit target (sent with a field command); empty means the next missing field
	Field    entity.FieldName
	Text     string
	Location *entity.Point
}

// Prompt what the bot should say next
type Prompt struct {
	Field     entity.FieldName // field being asked for, empty when done
	Text      string
	Commands  []string
	Submitted *entity.RideRequest
}

// ConversationConfig dialogue settings
type ConversationConfig struct {
	RequestFlexibility  time.Duration
	CollaboratorTimeout time.Duration
	Location            *time.Location
}

// ConversationUseCase drives the request dialogue on top of the context engine
type ConversationUseCase interface {
	// Start opens a new dialogue, replacing any previous one of the user
	Start(ctx context.Context, userID string, contextType entity.ContextType) (Prompt, error)

	// Answer fills one field; submits the request once nothing is missing
	Answer(ctx context.Context, userID string, answer Answer) (Prompt, error)

	// Cancel discards the active dialogue
	Cancel(ctx context.Context, userID string) error

	// Current active dialogue of the user
	Current(ctx context.Context, userID string) (*entity.UserContext, error)
}

type conversationUseCase struct {
	contexts    repository.ContextRepository
	rides       repository.RideRepository
	interpreter repository.DateInterpreter
	cfg         ConversationConfig
	log         *slog.Logger
	now         func() time.Time
}

// NewConversationUseCase creates the dialogue driver. interpreter may be nil.
func NewConversationUseCase(
	contexts repository.ContextRepository,
	rides repository.RideRepository,
	interpreter repository.DateInterpreter,
	cfg ConversationConfig,
	log *slog.Logger,
) ConversationUseCase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &conversationUseCase{
		contexts:    contexts,
		rides:       rides,
		interpreter: interpreter,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

func (u *conversationUseCase) Start(ctx context.Context, userID string, contextType entity.ContextType) (Prompt, error) {
	userCtx := CreateUserContext(userID, contextType)
	for _, field := range userCtx.Missing() {
		if cmd := field.Command(); cmd != "" {
			userCtx.AvailableCommands[cmd] = struct{}{}
		}
	}

	if err := u.contexts.Save(ctx, userID, userCtx); err != nil {
		return Prompt{}, fmt.Errorf("save context: %w", err)
	}

	u.log.Info("dialogue started", "action", "dialogue_started", "user_id", userID, "type", contextType.String())
	return u.promptFor(userCtx), nil
}

func (u *conversationUseCase) Answer(ctx context.Context, userID string, answer Answer) (Prompt, error) {
	userCtx, err := u.Current(ctx, userID)
	if err != nil {
		return Prompt{}, err
	}

	field := answer.Field
	if field == "" {
		field = nextField(userCtx, answer)
	} else if !userCtx.HasCommand(field.Command()) {
		return u.promptFor(userCtx), fmt.Errorf("%w: %s", ErrCommandUnavailable, field.Command())
	}

	if field != "" {
		value, err := u.parseValue(ctx, field, answer)
		if err != nil {
			return u.promptFor(userCtx), err
		}
		userCtx.Fields[field] = value
		delete(userCtx.AvailableCommands, field.Command())
	}

	if len(userCtx.Missing()) > 0 {
		if err := u.contexts.Save(ctx, userID, userCtx); err != nil {
			return Prompt{}, fmt.Errorf("save context: %w", err)
		}
		return u.promptFor(userCtx), nil
	}

	return u.submit(ctx, userID, userCtx)
}

func (u *conversationUseCase) Cancel(ctx context.Context, userID string) error {
	if _, err := u.Current(ctx, userID); err != nil {
		return err
	}
	return u.contexts.Delete(ctx, userID)
}

func (u *conversationUseCase) Current(ctx context.Context, userID string) (*entity.UserContext, error) {
	userCtx, err := u.contexts.Get(ctx, userID)
	if errors.Is(err, repository.ErrContextNotFound) {
		return nil, ErrNoActiveContext
	}
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	return userCtx, nil
}

func (u *conversationUseCase) submit(ctx context.Context, userID string, userCtx *entity.UserContext) (Prompt, error) {
	request, err := BuildRideRequest(userCtx, uuid.New().String(), u.now(), u.cfg.RequestFlexibility)
	if err != nil {
		return Prompt{}, err
	}

	if err := u.rides.SaveRequest(ctx, request); err != nil {
		return Prompt{}, fmt.Errorf("save ride request: %w", err)
	}
	if err := u.contexts.Delete(ctx, userID); err != nil {
		// the request is stored; a stale context only costs the user a /cancel
		u.log.Warn("discarding context failed", "action", "context_delete_failed", "user_id", userID, "error", err)
	}

	u.log.Info("ride request submitted",
		"action", "request_submitted", "request_id", request.ID, "role", request.Role)

	return Prompt{
		Text: fmt.Sprintf("✅ Your %s request is saved (id %s). We will notify you as soon as we find a match for %s.",
			request.Role, shortID(request.ID), request.RideDate.Start.In(u.cfg.Location).Format(DateLayout)),
		Submitted: &request,
	}, nil
}

func (u *conversationUseCase) parseValue(ctx context.Context, field entity.FieldName, answer Answer) (string, error) {
	switch field {
	case entity.FieldDeparturePoint, entity.FieldDestinationPoint:
		if answer.Location != nil {
			return answer.Location.String(), nil
		}
		point, err := ParsePoint(answer.Text)
		if err != nil {
			return "", err
		}
		return point.String(), nil
	case entity.FieldRideDate:
		start, err := u.parseDate(ctx, answer.Text)
		if err != nil {
			return "", err
		}
		return start.UTC().Format(time.RFC3339), nil
	default:
		return "", fmt.Errorf("%w: %s is filled automatically", ErrInvalidAnswer, field)
	}
}

func (u *conversationUseCase) parseDate(ctx context.Context, text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	now := u.now()

	start, err := time.ParseInLocation(DateLayout, text, u.cfg.Location)
	if err != nil {
		if u.interpreter == nil {
			return time.Time{}, fmt.Errorf("%w: use format %s", ErrInvalidAnswer, DateLayout)
		}

		callCtx, cancel := context.WithTimeout(ctx, u.cfg.CollaboratorTimeout)
		defer cancel()

		start, err = u.interpreter.InterpretDate(callCtx, text, now.In(u.cfg.Location))
		if err != nil {
			u.log.Warn("date interpretation failed", "action", "date_interpret_failed", "error", err)
			return time.Time{}, fmt.Errorf("%w: use format %s", ErrInvalidAnswer, DateLayout)
		}
	}

	if !start.After(now) {
		return time.Time{}, fmt.Errorf("%w: date is in the past", ErrInvalidAnswer)
	}
	return start, nil
}

// nextField first missing field; a shared location goes to the first missing point
func nextField(userCtx *entity.UserContext, answer Answer) entity.FieldName {
	missing := userCtx.Missing()
	if answer.Location != nil {
		for _, f := range missing {
			if f == entity.FieldDeparturePoint || f == entity.FieldDestinationPoint {
				return f
			}
		}
	}
	if len(missing) == 0 {
		return ""
	}
	return missing[0]
}

func (u *conversationUseCase) promptFor(userCtx *entity.UserContext) Prompt {
	missing := userCtx.Missing()
	if len(missing) == 0 {
		return Prompt{Commands: userCtx.Commands()}
	}

	field := missing[0]
	return Prompt{
		Field:    field,
		Text:     fieldQuestion(field, userCtx.Type().Role()),
		Commands: userCtx.Commands(),
	}
}

func fieldQuestion(field entity.FieldName, role entity.Role) string {
	switch field {
	case entity.FieldDeparturePoint:
		if role == entity.RoleDriver {
			return "📍 Where do you start from? Share a location or type \"lat,lon\"."
		}
		return "📍 Where should the driver pick you up? Share a location or type \"lat,lon\"."
	case entity.FieldDestinationPoint:
		return "🏁 Where are you going? Share a location or type \"lat,lon\"."
	case entity.FieldRideDate:
		return fmt.Sprintf("🕒 When do you want to leave? Format: %s", DateLayout)
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
