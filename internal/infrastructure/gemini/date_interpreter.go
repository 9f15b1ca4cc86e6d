package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
	"google.golang.org/api/option"
)

// ErrNoDate model could not find a date in the text
var ErrNoDate = errors.New("no date in text")

const noDateAnswer = "NONE"

const systemPrompt = `You convert a carpool rider's free-form description of when they want to travel into one timestamp.

Rules:
- Answer with ONE line only: an RFC3339 timestamp with the offset of the reference time, e.g. 2030-05-01T08:30:00+03:00.
- Resolve relative words ("tomorrow", "next friday", "in two hours") against the reference time.
- "morning" means 08:00, "noon" 12:00, "evening" 18:00, "night" 21:00 when no clock time is given.
- If the text contains no date or time, answer exactly NONE.
- Never add explanations, quotes or markdown.`

// DateInterpreter natural-language ride dates through Gemini
type DateInterpreter struct {
	client *genai.Client
	model  *genai.GenerativeModel
	sem    chan struct{}
	mu     sync.Mutex
	last   time.Time
	delay  time.Duration
}

var _ repository.DateInterpreter = (*DateInterpreter)(nil)

// NewDateInterpreter creates the Gemini-backed interpreter
func NewDateInterpreter(ctx context.Context, apiKey string) (*DateInterpreter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-2.0-flash")

	// deterministic, short answers
	model.SetTemperature(0)
	model.SetTopK(1)
	model.SetMaxOutputTokens(64)

	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	return &DateInterpreter{
		client: client,
		model:  model,
		sem:    make(chan struct{}, 3), // at most 3 requests in flight
		delay:  350 * time.Millisecond,
	}, nil
}

// InterpretDate asks the model for the instant described by text, relative to now
func (g *DateInterpreter) InterpretDate(ctx context.Context, text string, now time.Time) (time.Time, error) {
	release, err := g.acquire(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer release()

	prompt := fmt.Sprintf("Reference time: %s (%s)\nText: %s",
		now.Format(time.RFC3339), now.Weekday(), strings.TrimSpace(text))

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return time.Time{}, fmt.Errorf("no response candidates")
	}

	return parseAnswer(extractText(resp), now.Location())
}

// parseAnswer reads the model's one-line answer
func parseAnswer(answer string, loc *time.Location) (time.Time, error) {
	answer = strings.TrimSpace(answer)
	// first line only
	if i := strings.IndexAny(answer, "\r\n"); i >= 0 {
		answer = answer[:i]
	}
	answer = strings.TrimSpace(strings.Trim(answer, "`\"' "))

	if answer == "" || strings.EqualFold(answer, noDateAnswer) {
		return time.Time{}, ErrNoDate
	}

	if t, err := time.Parse(time.RFC3339, answer); err == nil {
		return t, nil
	}
	// some answers drop the offset
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", answer, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unexpected model answer %q", answer)
}

// extractText concatenates the text parts of the response
func extractText(resp *genai.GenerateContentResponse) string {
	var result strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					result.WriteString(string(text))
				}
			}
		}
	}
	return result.String()
}

func (g *DateInterpreter) acquire(ctx context.Context) (func(), error) {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if !g.last.IsZero() {
		if sleep := g.delay - now.Sub(g.last); sleep > 0 {
			time.Sleep(sleep)
			now = time.Now()
		}
	}
	g.last = now

	return func() {
		<-g.sem
	}, nil
}

// Close closes the client
func (g *DateInterpreter) Close() error {
	return g.client.Close()
}
