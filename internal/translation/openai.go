package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"captioner/internal/language"
	"captioner/internal/logging"
)

const (
	defaultRetryAttempts  = 4
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

const systemPromptTemplate = "You translate video subtitles. Translate the user's text into %s (%s). " +
	"Reply with the translation only: no quotes, notes, or transliteration. Keep line breaks."

// OpenAIConfig captures connection settings for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAI translates through the chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
	temp   float64
	logger *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// OpenAIOption customizes the engine.
type OpenAIOption func(*OpenAI)

// WithRetryMaxAttempts overrides the number of attempts per cue.
func WithRetryMaxAttempts(attempts int) OpenAIOption {
	return func(o *OpenAI) {
		o.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) OpenAIOption {
	return func(o *OpenAI) {
		o.retryBaseDelay = baseDelay
		o.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) OpenAIOption {
	return func(o *OpenAI) {
		o.sleeper = sleeper
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(o *OpenAI) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOpenAI constructs the engine. The SDK's own retries are disabled so
// backoff follows the policy below.
func NewOpenAI(cfg OpenAIConfig, opts ...OpenAIOption) *OpenAI {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	if cfg.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.HTTPClient))
	}
	engine := &OpenAI{
		client:           openai.NewClient(clientOpts...),
		model:            strings.TrimSpace(cfg.Model),
		temp:             cfg.Temperature,
		logger:           logging.NewNop(),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(engine)
	}
	engine.logger = logging.NewComponentLogger(engine.logger, "openai")
	return engine
}

// Translate sends one chat completion per attempt and returns the trimmed
// reply.
func (o *OpenAI) Translate(ctx context.Context, text, targetLang string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("openai translate: empty text")
	}
	tag, err := language.Normalize(targetLang)
	if err != nil {
		return "", fmt.Errorf("openai translate: %w", err)
	}
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPromptTemplate, language.DisplayName(tag), tag)),
			openai.UserMessage(text),
		},
		Model:       o.model,
		Temperature: openai.Float(o.temp),
	}

	attempts := o.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := o.completeOnce(ctx, params)
		if err == nil {
			return content, nil
		}
		delay, retry := o.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", err
		}
		o.logger.Debug("retrying translation request",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := o.sleep(ctx, delay); err != nil {
			return "", err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", fmt.Errorf("openai translate: failed after %d attempts: %w", attempts, lastErr)
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("openai translate: empty content (finish_reason=%q, refusal=%q)", e.FinishReason, e.Refusal)
}

func (o *OpenAI) completeOnce(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &emptyContentError{}
	}
	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", &emptyContentError{FinishReason: choice.FinishReason, Refusal: choice.Message.Refusal}
	}
	return content, nil
}

func (o *OpenAI) attempts() int {
	if o.retryMaxAttempts <= 0 {
		return 1
	}
	return o.retryMaxAttempts
}

func (o *OpenAI) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var empty *emptyContentError
	if errors.As(err, &empty) {
		return o.backoffDelay(attempt), true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			if apiErr.Response != nil {
				if retryAfter, ok := parseRetryAfter(apiErr.Response.Header.Get("Retry-After")); ok && retryAfter > 0 {
					return o.capDelay(retryAfter), true
				}
			}
			return o.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return o.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from the base delay: attempt 1 -> base, 2 -> base*2, ...
func (o *OpenAI) backoffDelay(attempt int) time.Duration {
	base := o.retryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := o.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return o.capDelay(delay)
}

func (o *OpenAI) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := o.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (o *OpenAI) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if o.sleeper != nil {
		o.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
