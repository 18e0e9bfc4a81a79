package budget

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	// ErrQuotaExceeded is returned when the provider rejects the call for quota or rate limits.
	ErrQuotaExceeded = errors.New("openai quota exceeded")
	// ErrInvalidAPIKey is returned when the configured key is rejected.
	ErrInvalidAPIKey = errors.New("openai api key rejected")
	// ErrEmptyPlan is returned when the model answers with no content.
	ErrEmptyPlan = errors.New("model returned an empty budget plan")
)

const systemPrompt = "You are a professional financial advisor who creates personalized budget plans. " +
	"Provide practical, realistic advice tailored to the user's location and goals."

const userPromptFormat = `Create a detailed monthly budget plan for someone with the following details:
- Monthly Income: $%s
- City: %s
- Financial Goal: %s

Please provide a comprehensive budget breakdown including:
1. Essential expenses (rent, utilities, groceries, transportation)
2. Savings allocation toward their financial goal
3. Discretionary spending
4. Emergency fund allocation
5. Specific recommendations based on their city and goal

Format the response as a clear, actionable monthly budget plan with dollar amounts and percentages.`

// ChatCompleter is the subset of the OpenAI client used by OpenAIPlanner.
type ChatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIPlanner asks a chat model to write the plan.
type OpenAIPlanner struct {
	chat        ChatCompleter
	model       openai.ChatModel
	maxTokens   int64
	temperature float64
}

// NewOpenAIPlanner creates a planner authenticated with apiKey.
func NewOpenAIPlanner(apiKey string) *OpenAIPlanner {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIPlannerWithClient(&client.Chat.Completions)
}

// NewOpenAIPlannerWithClient creates a planner around an existing completions client.
func NewOpenAIPlannerWithClient(chat ChatCompleter) *OpenAIPlanner {
	return &OpenAIPlanner{
		chat:        chat,
		model:       openai.ChatModelGPT3_5Turbo,
		maxTokens:   1000,
		temperature: 0.7,
	}
}

// Mock implements Planner.
func (p *OpenAIPlanner) Mock() bool { return false }

// Plan implements Planner.
func (p *OpenAIPlanner) Plan(ctx context.Context, in Input) (string, error) {
	prompt := fmt.Sprintf(userPromptFormat, in.Income.Decimal().String(), in.City, in.FinancialGoal)

	completion, err := p.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(p.maxTokens),
		Temperature: openai.Float(p.temperature),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", ErrEmptyPlan
	}
	return completion.Choices[0].Message.Content, nil
}

// classify maps provider errors onto the sentinel errors callers act on.
func classify(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("chat completion: %w", err)
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Code == "insufficient_quota":
		return fmt.Errorf("%w (status %d)", ErrQuotaExceeded, apiErr.StatusCode)
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.Code == "invalid_api_key":
		return fmt.Errorf("%w (status %d)", ErrInvalidAPIKey, apiErr.StatusCode)
	}
	return fmt.Errorf("chat completion: %w", err)
}
