package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
	"github.com/yourusername/carpool-bot/internal/infrastructure/report"
	"github.com/yourusername/carpool-bot/internal/infrastructure/storage"
	"github.com/yourusername/carpool-bot/internal/usecase"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	failFor  int64
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg, ok := c.(tgbotapi.MessageConfig); ok && b.failFor != 0 && msg.ChatID == b.failFor {
		return tgbotapi.Message{}, errors.New("bot was blocked by the user")
	}
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for _, c := range b.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (b *fakeBot) last() tgbotapi.Chattable {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[len(b.sent)-1]
}

func (b *fakeBot) lastText() string {
	texts := b.texts()
	return texts[len(texts)-1]
}

type stubMatching struct {
	report usecase.MatchReport
}

func (s stubMatching) RunCycle(ctx context.Context) (usecase.MatchReport, error) {
	return s.report, nil
}

type fixture struct {
	bot     *fakeBot
	handler *BotHandler
	rides   repository.RideRepository
}

func newFixture() *fixture {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rides := storage.NewMemoryRideRepository()
	contexts := storage.NewMemoryContextRepository(0)

	conversation := usecase.NewConversationUseCase(contexts, rides, nil, usecase.ConversationConfig{
		RequestFlexibility:  time.Hour,
		CollaboratorTimeout: time.Second,
	}, log)
	admin := usecase.NewAdminUseCase("secret", storage.NewMemoryAdminRepository(), rides,
		report.NewExcelRideReport(time.UTC), stubMatching{report: usecase.MatchReport{Drivers: 2, Passengers: 1, Matched: 1}})

	bot := &fakeBot{}
	return &fixture{
		bot:     bot,
		handler: NewBotHandler(bot, conversation, usecase.NewRequestUseCase(rides), admin, time.UTC, log),
		rides:   rides,
	}
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 42,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		length := len(text)
		if i := strings.Index(text, " "); i >= 0 {
			length = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	return tgbotapi.Update{Message: msg}
}

func locationUpdate(userID int64, lat, lon float64) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 43,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Location:  &tgbotapi.Location{Latitude: lat, Longitude: lon},
	}}
}

func TestDriverDialogueSubmitsRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, textUpdate(7, "/driver"))
	require.Contains(t, f.bot.lastText(), "Where do you start from?")
	require.Contains(t, f.bot.lastText(), "/cancel")
	_, isKeyboard := f.bot.last().(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, isKeyboard)

	f.handler.HandleUpdate(ctx, locationUpdate(7, 55.75, 37.61))
	require.Contains(t, f.bot.lastText(), "Where are you going?")

	f.handler.HandleUpdate(ctx, textUpdate(7, "55.8,37.7"))
	require.Contains(t, f.bot.lastText(), "When do you want to leave?")

	f.handler.HandleUpdate(ctx, textUpdate(7, "2099-01-01 08:00"))
	require.Contains(t, f.bot.lastText(), "request is saved")

	requests, err := f.rides.ListRequestsByTelegramID(ctx, "7")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, entity.RoleDriver, requests[0].Role)
	require.Equal(t, entity.RequestOpen, requests[0].Status)
	require.InDelta(t, 55.75, requests[0].DeparturePoint.Latitude, 1e-9)

	f.handler.HandleUpdate(ctx, textUpdate(7, "/my"))
	require.Contains(t, f.bot.lastText(), "driver · open")
	require.Contains(t, f.bot.lastText(), "2099-01-01 08:00")

	prefix := requests[0].ID[:8]
	f.handler.HandleUpdate(ctx, textUpdate(7, "/cancel_request "+prefix))
	require.Equal(t, "❌ Request "+prefix+" canceled.", f.bot.lastText())

	f.handler.HandleUpdate(ctx, textUpdate(7, "/cancel_request "+prefix))
	require.Equal(t, "Request "+prefix+" is already canceled.", f.bot.lastText())
}

func TestFieldCommandsTargetFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, textUpdate(8, "/passenger"))
	f.handler.HandleUpdate(ctx, textUpdate(8, "/date 2099-02-02 09:30"))
	require.Contains(t, f.bot.lastText(), "Where should the driver pick you up?")

	f.handler.HandleUpdate(ctx, textUpdate(8, "/date 2099-02-03 09:30"))
	require.Contains(t, f.bot.texts()[len(f.bot.texts())-2], "already set")

	f.handler.HandleUpdate(ctx, textUpdate(8, "/destination 55.8,37.7"))
	f.handler.HandleUpdate(ctx, locationUpdate(8, 55.75, 37.61))
	require.Contains(t, f.bot.lastText(), "passenger request is saved")

	f.handler.HandleUpdate(ctx, textUpdate(8, "/date"))
	require.Equal(t, "Usage: /date "+usecase.DateLayout, f.bot.lastText())
}

func TestInvalidAnswerRepeatsQuestion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, textUpdate(9, "/driver"))
	f.handler.HandleUpdate(ctx, textUpdate(9, "somewhere nice"))

	texts := f.bot.texts()
	require.True(t, strings.HasPrefix(texts[len(texts)-2], "⚠️ "))
	require.Contains(t, texts[len(texts)-1], "Where do you start from?")
}

func TestAnswerWithoutDialogue(t *testing.T) {
	f := newFixture()

	f.handler.HandleUpdate(context.Background(), textUpdate(10, "hello"))
	require.Contains(t, f.bot.lastText(), "/driver or /passenger")

	f.handler.HandleUpdate(context.Background(), textUpdate(10, "/cancel"))
	require.Equal(t, "Nothing to cancel.", f.bot.lastText())
}

func TestCancelDiscardsDialogue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, textUpdate(11, "/driver"))
	f.handler.HandleUpdate(ctx, textUpdate(11, "/cancel"))
	require.Equal(t, "❌ Request canceled.", f.bot.lastText())

	f.handler.HandleUpdate(ctx, textUpdate(11, "55.8,37.7"))
	require.Contains(t, f.bot.lastText(), "/driver or /passenger")
}

func TestAdminCommands(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.handler.HandleUpdate(ctx, textUpdate(12, "/match_now"))
	require.Equal(t, "❌ This command is for admins only.", f.bot.lastText())

	f.handler.HandleUpdate(ctx, textUpdate(12, "/admin wrong"))
	require.Equal(t, "❌ Wrong password!", f.bot.lastText())
	require.Len(t, f.bot.requests, 1)

	f.handler.HandleUpdate(ctx, textUpdate(12, "/admin secret"))
	require.Contains(t, f.bot.lastText(), "Welcome to the admin panel")

	f.handler.HandleUpdate(ctx, textUpdate(12, "/match_now"))
	require.Contains(t, f.bot.lastText(), "Matched: 1")

	f.handler.HandleUpdate(ctx, textUpdate(12, "/rides"))
	doc, ok := f.bot.last().(tgbotapi.DocumentConfig)
	require.True(t, ok)
	require.Equal(t, int64(12), doc.ChatID)

	f.handler.HandleUpdate(ctx, textUpdate(12, "/logout"))
	require.Equal(t, "✅ Logged out of the admin panel.", f.bot.lastText())

	f.handler.HandleUpdate(ctx, textUpdate(12, "/rides"))
	require.Equal(t, "❌ This command is for admins only.", f.bot.lastText())
}

func TestStartStopsOnCancel(t *testing.T) {
	f := newFixture()
	updates := make(chan tgbotapi.Update, 1)
	updates <- textUpdate(13, "/start")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.handler.Start(ctx, updates)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(f.bot.texts()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not stop")
	}
}

func TestUserLocksReleasedAfterHandling(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	for user := int64(100); user < 110; user++ {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(user int64) {
				defer wg.Done()
				f.handler.HandleUpdate(ctx, textUpdate(user, "/help"))
			}(user)
		}
	}
	wg.Wait()

	require.Len(t, f.bot.texts(), 30)
	f.handler.userMu.Lock()
	defer f.handler.userMu.Unlock()
	require.Empty(t, f.handler.userLocks)
}

func TestUserLockSerializesOneUser(t *testing.T) {
	f := newFixture()

	unlock := f.handler.lockUser(7)
	acquired := make(chan struct{})
	go func() {
		release := f.handler.lockUser(7)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second update of the same user ran concurrently")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
	require.Eventually(t, func() bool {
		f.handler.userMu.Lock()
		defer f.handler.userMu.Unlock()
		return len(f.handler.userLocks) == 0
	}, time.Second, 5*time.Millisecond)
}
