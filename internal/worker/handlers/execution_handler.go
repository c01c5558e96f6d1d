package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Orchestrator/internal/backend/models"
	runner "Orchestrator/internal/worker/runners"
	"Orchestrator/pkg/validator"
)

type ExecutionHandler struct {
	runnerFactory *runner.Factory
	logger        *slog.Logger
}

func NewExecutionHandler(runnerFactory *runner.Factory, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		runnerFactory: runnerFactory,
		logger:        logger,
	}
}

// ExecuteExecution всегда возвращает результат; ошибки раннера попадают в result.Error
func (t *ExecutionHandler) ExecuteExecution(ctx context.Context, execution *models.Execution) *models.ExecutionResult {
	started := time.Now().UTC()

	if execution == nil {
		return failedResult("", started, fmt.Errorf("execution is nil"))
	}
	if execution.ID == "" {
		return failedResult("", started, fmt.Errorf("execution ID is empty"))
	}

	params := execution.Parameters
	runnerName, _ := params["runner"].(string)
	target, _ := params["target"].(string)

	t.logger.Debug("Getting runner for execution",
		"execution_id", execution.ID,
		"process_id", execution.ProcessID,
		"runner", runnerName,
	)

	r, err := t.runnerFactory.GetRunner(runnerName)
	if err != nil {
		return failedResult(execution.ID, started, err)
	}

	if err := checkTarget(runnerName, target, params); err != nil {
		t.logger.Warn("Rejected execution target",
			"execution_id", execution.ID,
			"runner", runnerName,
			"error", err,
		)
		return failedResult(execution.ID, started, err)
	}

	data, err := r.Execute(ctx, target, params)
	if err != nil {
		t.logger.Warn("Execution failed",
			"execution_id", execution.ID,
			"process", execution.ProcessName,
			"error", err,
		)
		return failedResult(execution.ID, started, err)
	}

	exitCode := exitCodeOf(data)
	result := &models.ExecutionResult{
		ExecutionID: execution.ID,
		Success:     exitCode == 0,
		ExitCode:    exitCode,
		Data:        data,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
	}

	result.Output, _ = data["output"].(string)
	if !result.Success {
		if stderr, _ := data["stderr"].(string); stderr != "" {
			result.Error = stderr
		} else if msg, _ := data["error"].(string); msg != "" {
			result.Error = msg
		}
	}

	t.logger.Info("Execution finished",
		"execution_id", execution.ID,
		"process", execution.ProcessName,
		"success", result.Success,
		"exit_code", exitCode,
		"duration", result.FinishedAt.Sub(started),
	)
	return result
}

// checkTarget отсекает цели, которые сетевой раннер не сможет разобрать
func checkTarget(runnerName, target string, params map[string]any) error {
	switch runnerName {
	case runner.RunnerHTTP:
		if u, _ := params["url"].(string); u != "" {
			target = u
		}
	case runner.RunnerDNS:
		if name, _ := params["name"].(string); name != "" {
			target = name
		}
	case runner.RunnerTCP:
		// tcp понимает любую схему как подсказку порта
		if _, rest, ok := strings.Cut(target, "://"); ok {
			target = strings.TrimSuffix(rest, "/")
		}
	default:
		return nil
	}

	if !validator.ValidateTarget(target) {
		return fmt.Errorf("invalid target %q for %s runner", target, runnerName)
	}
	return nil
}

func failedResult(executionID string, started time.Time, err error) *models.ExecutionResult {
	return &models.ExecutionResult{
		ExecutionID: executionID,
		Success:     false,
		ExitCode:    -1,
		Error:       err.Error(),
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
	}
}

func exitCodeOf(data map[string]any) int {
	switch v := data["exit_code"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
