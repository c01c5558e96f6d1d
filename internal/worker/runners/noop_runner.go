package runner

import (
	"context"
	"fmt"
	"time"
)

// NoopRunner подтверждает выполнение без реальной работы; duration имитирует длительность
type NoopRunner struct{}

func NewNoopRunner() *NoopRunner {
	return &NoopRunner{}
}

func (r *NoopRunner) Execute(ctx context.Context, target string, options map[string]any) (map[string]any, error) {
	duration := getDurationOption(options, "duration", 0)

	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	output := "execution acknowledged"
	if target != "" {
		output = fmt.Sprintf("execution acknowledged for %s", target)
	}

	return map[string]any{
		"output":      output,
		"exit_code":   0,
		"duration_ms": duration.Milliseconds(),
	}, nil
}
