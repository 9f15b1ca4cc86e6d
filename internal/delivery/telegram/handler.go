package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
	"github.com/yourusername/carpool-bot/internal/usecase"
)

// Sender subset of *tgbotapi.BotAPI the bot needs
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// BotHandler Telegram bot handler
type BotHandler struct {
	bot                 Sender
	conversationUseCase usecase.ConversationUseCase
	requestUseCase      usecase.RequestUseCase
	adminUseCase        usecase.AdminUseCase
	loc                 *time.Location
	log                 *slog.Logger

	// one update per user at a time, dialogue state is read-modify-write
	userMu    sync.Mutex
	userLocks map[int64]*userLock

	inflight sync.WaitGroup
}

// NewBotHandler creates the bot handler
func NewBotHandler(
	bot Sender,
	conversationUseCase usecase.ConversationUseCase,
	requestUseCase usecase.RequestUseCase,
	adminUseCase usecase.AdminUseCase,
	loc *time.Location,
	log *slog.Logger,
) *BotHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BotHandler{
		bot:                 bot,
		conversationUseCase: conversationUseCase,
		requestUseCase:      requestUseCase,
		adminUseCase:        adminUseCase,
		loc:                 loc,
		log:                 log,
		userLocks:           make(map[int64]*userLock),
	}
}

// Start handles updates until ctx is canceled, then waits for handlers already running
func (h *BotHandler) Start(ctx context.Context, updates <-chan tgbotapi.Update) {
	h.log.Info("bot started", "action", "bot_started")

	for {
		select {
		case <-ctx.Done():
			h.inflight.Wait()
			h.log.Info("bot stopped", "action", "bot_stopped")
			return
		case update, ok := <-updates:
			if !ok {
				h.inflight.Wait()
				return
			}
			if update.Message == nil {
				continue
			}

			h.inflight.Add(1)
			go func(update tgbotapi.Update) {
				defer h.inflight.Done()
				h.HandleUpdate(context.WithoutCancel(ctx), update)
			}(update)
		}
	}
}

// HandleUpdate processes one update synchronously
func (h *BotHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}

	unlock := h.lockUser(message.From.ID)
	defer unlock()

	h.handleMessage(ctx, message)
}

// userLock entry lives while at least one update of the user holds or waits for it
type userLock struct {
	mu   sync.Mutex
	refs int
}

func (h *BotHandler) lockUser(userID int64) func() {
	h.userMu.Lock()
	lock, ok := h.userLocks[userID]
	if !ok {
		lock = &userLock{}
		h.userLocks[userID] = lock
	}
	lock.refs++
	h.userMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		h.userMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(h.userLocks, userID)
		}
		h.userMu.Unlock()
	}
}

// handleMessage routes a message
func (h *BotHandler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		h.handleCommand(ctx, message)
		return
	}

	if message.Location != nil {
		point := entity.Point{Latitude: message.Location.Latitude, Longitude: message.Location.Longitude}
		h.handleAnswer(ctx, message, usecase.Answer{Location: &point})
		return
	}

	if text := strings.TrimSpace(message.Text); text != "" {
		h.handleAnswer(ctx, message, usecase.Answer{Text: text})
	}
}

// handleCommand routes commands
func (h *BotHandler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		h.sendMessage(chatID, welcomeMessage)
	case "help":
		h.sendMessage(chatID, helpMessage)
	case "driver":
		h.handleStartDialogue(ctx, message, entity.CreateDriverRequest)
	case "passenger":
		h.handleStartDialogue(ctx, message, entity.CreatePassengerRequest)
	case "cancel":
		h.handleCancelCommand(ctx, message)
	case "departure":
		h.handleFieldCommand(ctx, message, entity.FieldDeparturePoint, args)
	case "destination":
		h.handleFieldCommand(ctx, message, entity.FieldDestinationPoint, args)
	case "date":
		h.handleFieldCommand(ctx, message, entity.FieldRideDate, args)
	case "my":
		h.handleMyCommand(ctx, message)
	case "cancel_request":
		h.handleCancelRequestCommand(ctx, message, args)
	case "admin":
		h.handleAdminCommand(ctx, message, args)
	case "logout":
		h.handleLogoutCommand(ctx, message)
	case "match_now":
		h.handleMatchNowCommand(ctx, message)
	case "rides":
		h.handleRidesCommand(ctx, message)
	default:
		h.sendMessage(chatID, "Unknown command. /help for the list of commands.")
	}
}

func (h *BotHandler) handleStartDialogue(ctx context.Context, message *tgbotapi.Message, contextType entity.ContextType) {
	prompt, err := h.conversationUseCase.Start(ctx, userKey(message.From.ID), contextType)
	if err != nil {
		h.replyError(message.Chat.ID, err)
		return
	}
	h.sendPrompt(message.Chat.ID, prompt)
}

func (h *BotHandler) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) {
	err := h.conversationUseCase.Cancel(ctx, userKey(message.From.ID))
	if errors.Is(err, usecase.ErrNoActiveContext) {
		h.sendMessage(message.Chat.ID, "Nothing to cancel.")
		return
	}
	if err != nil {
		h.replyError(message.Chat.ID, err)
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Request canceled.")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	h.send(msg)
}

func (h *BotHandler) handleFieldCommand(ctx context.Context, message *tgbotapi.Message, field entity.FieldName, args string) {
	if args == "" {
		h.sendMessage(message.Chat.ID, fmt.Sprintf("Usage: %s %s", field.Command(), fieldUsage(field)))
		return
	}
	h.handleAnswer(ctx, message, usecase.Answer{Field: field, Text: args})
}

func (h *BotHandler) handleAnswer(ctx context.Context, message *tgbotapi.Message, answer usecase.Answer) {
	prompt, err := h.conversationUseCase.Answer(ctx, userKey(message.From.ID), answer)
	switch {
	case errors.Is(err, usecase.ErrNoActiveContext):
		h.sendMessage(message.Chat.ID, "Start with /driver or /passenger to create a ride request.")
	case errors.Is(err, usecase.ErrInvalidAnswer):
		h.sendMessage(message.Chat.ID, "⚠️ "+userFacing(err))
		h.sendPrompt(message.Chat.ID, prompt)
	case errors.Is(err, usecase.ErrCommandUnavailable):
		h.sendMessage(message.Chat.ID, "⚠️ This field is already set.")
		h.sendPrompt(message.Chat.ID, prompt)
	case err != nil:
		h.replyError(message.Chat.ID, err)
	default:
		h.sendPrompt(message.Chat.ID, prompt)
	}
}

func (h *BotHandler) handleMyCommand(ctx context.Context, message *tgbotapi.Message) {
	requests, err := h.requestUseCase.ListMine(ctx, userKey(message.From.ID))
	if err != nil {
		h.replyError(message.Chat.ID, err)
		return
	}
	if len(requests) == 0 {
		h.sendMessage(message.Chat.ID, "You have no ride requests yet. /driver or /passenger to create one.")
		return
	}

	h.sendMessage(message.Chat.ID, formatRequests(requests, h.loc))
}

func (h *BotHandler) handleCancelRequestCommand(ctx context.Context, message *tgbotapi.Message, args string) {
	if args == "" {
		h.sendMessage(message.Chat.ID, "Usage: /cancel_request <id>. See /my for your request ids.")
		return
	}

	request, err := h.requestUseCase.Cancel(ctx, userKey(message.From.ID), args)
	switch {
	case errors.Is(err, repository.ErrRequestNotFound):
		h.sendMessage(message.Chat.ID, "Request not found. See /my for your request ids.")
	case errors.Is(err, usecase.ErrRequestNotOpen):
		h.sendMessage(message.Chat.ID, fmt.Sprintf("Request %s is already %s.", shortID(request.ID), request.Status))
	case err != nil:
		h.replyError(message.Chat.ID, err)
	default:
		h.sendMessage(message.Chat.ID, fmt.Sprintf("❌ Request %s canceled.", shortID(request.ID)))
	}
}

// handleAdminCommand admin login; the message with the password is deleted
func (h *BotHandler) handleAdminCommand(ctx context.Context, message *tgbotapi.Message, password string) {
	userID := message.From.ID

	if password != "" {
		if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(message.Chat.ID, message.MessageID)); err != nil {
			h.log.Warn("deleting password message failed", "action", "admin_delete_failed", "error", err)
		}
	}

	isAdmin, _ := h.adminUseCase.IsAdmin(ctx, userID)
	if isAdmin {
		h.sendMessage(message.Chat.ID, "You are already logged in as admin.\n\n"+adminMessage)
		return
	}
	if password == "" {
		h.sendMessage(message.Chat.ID, "Usage: /admin <password>")
		return
	}

	success, err := h.adminUseCase.Login(ctx, userID, password)
	if err != nil {
		h.log.Error("admin login failed", "action", "admin_login_failed", "user_id", userID, "error", err)
		h.sendMessage(message.Chat.ID, "❌ Login error.")
		return
	}
	if !success {
		h.log.Warn("wrong admin password", "action", "admin_wrong_password", "user_id", userID)
		h.sendMessage(message.Chat.ID, "❌ Wrong password!")
		return
	}

	h.log.Info("admin logged in", "action", "admin_login", "user_id", userID)
	h.sendMessage(message.Chat.ID, "✅ Welcome to the admin panel!\n\n"+adminMessage)
}

// handleLogoutCommand admin logout
func (h *BotHandler) handleLogoutCommand(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	isAdmin, _ := h.adminUseCase.IsAdmin(ctx, userID)
	if !isAdmin {
		h.sendMessage(message.Chat.ID, "You are not an admin.")
		return
	}

	if err := h.adminUseCase.Logout(ctx, userID); err != nil {
		h.sendMessage(message.Chat.ID, "Logout error.")
		return
	}

	h.sendMessage(message.Chat.ID, "✅ Logged out of the admin panel.")
}

func (h *BotHandler) handleMatchNowCommand(ctx context.Context, message *tgbotapi.Message) {
	report, err := h.adminUseCase.RunMatching(ctx, message.From.ID)
	switch {
	case errors.Is(err, usecase.ErrNotAdmin):
		h.sendMessage(message.Chat.ID, "❌ This command is for admins only.")
	case errors.Is(err, usecase.ErrCycleInProgress):
		h.sendMessage(message.Chat.ID, "⏳ A matching cycle is already running, try again in a moment.")
	case err != nil:
		h.replyError(message.Chat.ID, err)
	default:
		h.sendMessage(message.Chat.ID, fmt.Sprintf(
			"🔄 Matching done.\nDrivers: %d\nPassengers: %d\nMatched: %d\nDeferred: %d\nExpired: %d",
			report.Drivers, report.Passengers, report.Matched, report.Deferred, report.Expired))
	}
}

func (h *BotHandler) handleRidesCommand(ctx context.Context, message *tgbotapi.Message) {
	name, data, err := h.adminUseCase.ExportRides(ctx, message.From.ID)
	if errors.Is(err, usecase.ErrNotAdmin) {
		h.sendMessage(message.Chat.ID, "❌ This command is for admins only.")
		return
	}
	if err != nil {
		h.replyError(message.Chat.ID, err)
		return
	}

	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = "📊 Rides of the coming week"
	h.send(doc)
}

// sendPrompt asks for the next field; a location button is offered for points
func (h *BotHandler) sendPrompt(chatID int64, prompt usecase.Prompt) {
	text := prompt.Text
	if prompt.Submitted == nil && len(prompt.Commands) > 0 {
		text += "\n\nCommands: " + strings.Join(prompt.Commands, " ")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	switch prompt.Field {
	case entity.FieldDeparturePoint, entity.FieldDestinationPoint:
		kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonLocation("📍 Share location"),
		))
		kb.OneTimeKeyboard = true
		kb.ResizeKeyboard = true
		msg.ReplyMarkup = kb
	default:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	h.send(msg)
}

func (h *BotHandler) replyError(chatID int64, err error) {
	h.log.Error("request handling failed", "action", "handler_failed", "chat_id", chatID, "error", err)
	h.sendMessage(chatID, "❌ Something went wrong, please try again later.")
}

// sendMessage plain text message
func (h *BotHandler) sendMessage(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *BotHandler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.log.Error("telegram send failed", "action", "telegram_send_failed", "error", err)
	}
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// userFacing drops the sentinel prefix ("invalid answer: ...")
func userFacing(err error) string {
	rest, ok := strings.CutPrefix(err.Error(), usecase.ErrInvalidAnswer.Error()+": ")
	if !ok || rest == "" {
		return "Invalid answer."
	}
	return strings.ToUpper(rest[:1]) + rest[1:]
}

func fieldUsage(field entity.FieldName) string {
	if field == entity.FieldRideDate {
		return usecase.DateLayout
	}
	return "<lat>,<lon>"
}

func formatRequests(requests []entity.RideRequest, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🗂 Your ride requests:\n")
	for _, r := range requests {
		fmt.Fprintf(&b, "\n%s %s · %s · %s\n   %s → %s\n",
			statusIcon(r.Status), shortID(r.ID), r.Role, r.Status,
			r.DeparturePoint, r.DestinationPoint)
		fmt.Fprintf(&b, "   🕒 %s – %s\n",
			r.RideDate.Start.In(loc).Format(usecase.DateLayout), r.RideDate.End.In(loc).Format("15:04"))
	}
	b.WriteString("\n/cancel_request <id> cancels an open request.")
	return b.String()
}

func statusIcon(status entity.RequestStatus) string {
	switch status {
	case entity.RequestOpen:
		return "🟢"
	case entity.RequestMatched:
		return "🚗"
	case entity.RequestCanceled:
		return "❌"
	default:
		return "⌛"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

const welcomeMessage = `👋 Hi! I match drivers and passengers who travel the same way.

🚗 /driver - offer a ride
🙋 /passenger - look for a ride

I will ask where you start, where you go and when. Once I find a match, both of you get a message, and a reminder shortly before the ride.

/help - all commands`

const helpMessage = `📖 Commands:

/driver - create a driver request
/passenger - create a passenger request
/departure <lat>,<lon> - set the starting point
/destination <lat>,<lon> - set the destination
/date ` + usecase.DateLayout + ` - set the ride date
/cancel - cancel the request being created
/my - your ride requests
/cancel_request <id> - cancel an open request

You can also share a location instead of typing coordinates.`

const adminMessage = `🔧 Admin commands:
/match_now - run a matching cycle now
/rides - Excel report of upcoming rides
/logout - leave the admin panel`
