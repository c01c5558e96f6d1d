package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

const maxOutputBytes = 64 * 1024

type CommandRunner struct {
	shell   string
	timeout time.Duration
}

func NewCommandRunner(shell string, timeout time.Duration) *CommandRunner {
	if shell == "" {
		shell = "/bin/sh"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &CommandRunner{
		shell:   shell,
		timeout: timeout,
	}
}

// Execute запускает script через shell или command с args напрямую.
// Ненулевой код выхода не считается ошибкой раннера
func (r *CommandRunner) Execute(ctx context.Context, target string, options map[string]any) (map[string]any, error) {
	timeout := getDurationOption(options, "timeout", r.timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd, err := r.buildCommand(ctx, target, options)
	if err != nil {
		return nil, err
	}
	// дочерние процессы могут держать stdout после kill
	cmd.WaitDelay = time.Second

	if dir := getStringOption(options, "dir", ""); dir != "" {
		cmd.Dir = dir
	}
	if env := getStringMapOption(options, "env"); len(env) > 0 {
		cmd.Env = os.Environ()
		for key, value := range env {
			cmd.Env = append(cmd.Env, key+"="+value)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	exitCode := 0

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("command timed out after %s", timeout)
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			return nil, fmt.Errorf("execute command: %w", err)
		}
	}

	return map[string]any{
		"command":     cmd.String(),
		"exit_code":   exitCode,
		"output":      truncate(stdout.String()),
		"stderr":      truncate(stderr.String()),
		"duration_ms": time.Since(start).Milliseconds(),
	}, nil
}

func (r *CommandRunner) buildCommand(ctx context.Context, target string, options map[string]any) (*exec.Cmd, error) {
	if script := getStringOption(options, "script", ""); script != "" {
		return exec.CommandContext(ctx, r.shell, "-c", script), nil
	}

	command := getStringOption(options, "command", target)
	if command == "" {
		return nil, errors.New("command or script is required")
	}

	return exec.CommandContext(ctx, command, getStringSliceOption(options, "args")...), nil
}

// truncate режет по границе руны, чтобы в логи не попадал обрубок UTF-8
func truncate(s string) string {
	if len(s) > maxOutputBytes {
		cut := maxOutputBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return strings.TrimRight(s, "\n")
}
