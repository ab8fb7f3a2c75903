package analysis

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/atebit/legaldocs/internal/errs"
)

// scriptedGenerator returns its responses in order; an empty entry with
// a nil error simulates a blank model response.
type scriptedGenerator struct {
	responses []string
	errors    []error
	calls     int
}

func (g *scriptedGenerator) GenerateText(_ context.Context, _ string, _ int32, _ float32) (string, error) {
	i := g.calls
	g.calls++
	if i >= len(g.responses) {
		return "", errors.New("script exhausted")
	}
	return g.responses[i], g.errors[i]
}

func fastConfig() InvokerConfig {
	return InvokerConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Temperature:    0.2,
	}
}

func TestInvokeSucceedsAfterTransientFailures(t *testing.T) {
	gen := &scriptedGenerator{
		responses: []string{"", "", `{"ok": true}`},
		errors:    []error{errors.New("503"), errors.New("reset"), nil},
	}
	inv := NewInvoker(gen, fastConfig(), slog.Default())

	out, err := inv.Invoke(context.Background(), "prompt", 512)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != `{"ok": true}` {
		t.Errorf("unexpected response %q", out)
	}
	if gen.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", gen.calls)
	}
}

func TestInvokeRetriesEmptyResponses(t *testing.T) {
	gen := &scriptedGenerator{
		responses: []string{"", "  \n ", "content"},
		errors:    []error{nil, nil, nil},
	}
	inv := NewInvoker(gen, fastConfig(), slog.Default())

	out, err := inv.Invoke(context.Background(), "prompt", 512)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "content" {
		t.Errorf("unexpected response %q", out)
	}
}

func TestInvokeExhaustionIsServiceUnavailable(t *testing.T) {
	cause := errors.New("model overloaded")
	gen := &scriptedGenerator{
		responses: []string{"", "", ""},
		errors:    []error{cause, cause, cause},
	}
	inv := NewInvoker(gen, fastConfig(), slog.Default())

	_, err := inv.Invoke(context.Background(), "prompt", 512)
	if !errs.IsKind(err, errs.ServiceUnavailable) {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("last failure not preserved as cause")
	}
	if gen.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", gen.calls)
	}
}

func TestInvokeStopsOnCanceledContext(t *testing.T) {
	gen := &scriptedGenerator{
		responses: []string{"", "never reached"},
		errors:    []error{errors.New("503"), nil},
	}
	cfg := fastConfig()
	cfg.InitialBackoff = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	inv := NewInvoker(gen, cfg, slog.Default())

	done := make(chan error, 1)
	go func() {
		_, err := inv.Invoke(ctx, "prompt", 512)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Invoke did not return after cancellation")
	}
	if gen.calls > 1 {
		t.Errorf("expected no retry after cancellation, got %d calls", gen.calls)
	}
}

func TestCountTokensIsAdditive(t *testing.T) {
	input, output := CountTokens("analyze this lease agreement", "the lease runs one year")
	if input != 4 || output != 5 {
		t.Errorf("got input=%d output=%d", input, output)
	}
	if input+output != 9 {
		t.Errorf("totals must add up, got %d", input+output)
	}
}
