// Package genai generates short motivational lines with the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const motivatorSystemPrompt = "You are a warm, concise coach inside a habit-tracking chat bot. " +
	"The user just completed a habit for today. Reply with a single short sentence of encouragement, " +
	"no more than 20 words, no emoji, no quotes."

// completionService is the slice of the OpenAI client the motivator needs.
// Tests substitute a stub.
type completionService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Motivator produces one-line encouragements for completed habits.
type Motivator struct {
	completions completionService
	model       openai.ChatModel
}

// NewMotivator initializes a motivator from the OPENAI_API_KEY environment
// variable.
func NewMotivator() (*Motivator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	return NewMotivatorWithKey(apiKey), nil
}

// NewMotivatorWithKey initializes a motivator with an explicit API key.
func NewMotivatorWithKey(apiKey string) *Motivator {
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	slog.Debug("genai motivator created", "model", openai.ChatModelGPT4oMini)
	return &Motivator{completions: &cli.Chat.Completions, model: openai.ChatModelGPT4oMini}
}

// MotivationLine asks the model for a single encouragement sentence about the
// completed habit.
func (m *Motivator) MotivationLine(ctx context.Context, habitName string) (string, error) {
	resp, err := m.completions.New(ctx, openai.ChatCompletionNewParams{
		Model: m.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(motivatorSystemPrompt),
			openai.UserMessage(fmt.Sprintf("The habit is %q.", habitName)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate motivation line: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	line := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("genai motivation line generated", "habit", habitName, "length", len(line))
	return line, nil
}
