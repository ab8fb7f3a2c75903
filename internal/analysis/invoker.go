package analysis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/atebit/legaldocs/internal/errs"
)

// Generator produces text from a prompt. *gcp.VertexClient is the
// production implementation.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, maxOutputTokens int32, temperature float32) (string, error)
}

// InvokerConfig controls the retry behaviour of model calls.
type InvokerConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Temperature    float32
}

// DefaultInvokerConfig mirrors the production settings: three attempts
// with a doubling backoff clamped between 4s and 10s.
func DefaultInvokerConfig() InvokerConfig {
	return InvokerConfig{
		MaxAttempts:    3,
		InitialBackoff: 4 * time.Second,
		MaxBackoff:     10 * time.Second,
		Temperature:    0.2,
	}
}

// Invoker wraps a Generator with retries and structured-output
// validation.
type Invoker struct {
	generator Generator
	cfg       InvokerConfig
	logger    *slog.Logger
}

func NewInvoker(generator Generator, cfg InvokerConfig, logger *slog.Logger) *Invoker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 4 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{generator: generator, cfg: cfg, logger: logger}
}

// Invoke calls the model, retrying transient failures and empty
// responses. Exhausting all attempts yields a ServiceUnavailable error.
func (inv *Invoker) Invoke(ctx context.Context, prompt string, maxOutputTokens int32) (string, error) {
	backoff := inv.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= inv.cfg.MaxAttempts; attempt++ {
		text, err := inv.generator.GenerateText(ctx, prompt, maxOutputTokens, inv.cfg.Temperature)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			lastErr = errs.New(errs.ServiceUnavailable, "model returned an empty response")
		} else {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
		}

		if attempt == inv.cfg.MaxAttempts {
			break
		}
		inv.logger.Warn("model call failed, retrying",
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", lastErr)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		backoff *= 2
		if backoff > inv.cfg.MaxBackoff {
			backoff = inv.cfg.MaxBackoff
		}
	}

	return "", errs.Wrap(errs.ServiceUnavailable, "model unavailable after retries", lastErr)
}

// CountTokens approximates prompt and response token counts by
// whitespace-separated word count.
func CountTokens(prompt, response string) (input, output int) {
	return len(strings.Fields(prompt)), len(strings.Fields(response))
}
