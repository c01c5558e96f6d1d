package runner

import "context"

// Runner выполняет execution. Ключи результата output и exit_code читает обработчик
type Runner interface {
	Execute(ctx context.Context, target string, options map[string]any) (map[string]any, error)
}
