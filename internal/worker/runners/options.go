package runner

import (
	"strconv"
	"time"
)

func getStringOption(options map[string]any, key, defaultValue string) string {
	if value, ok := options[key].(string); ok && value != "" {
		return value
	}
	return defaultValue
}

func getIntOption(options map[string]any, key string, defaultValue int) int {
	switch value := options[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	case string:
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolOption(options map[string]any, key string, defaultValue bool) bool {
	if value, ok := options[key].(bool); ok {
		return value
	}
	return defaultValue
}

// числа считаются секундами, строки разбираются как time.Duration
func getDurationOption(options map[string]any, key string, defaultValue time.Duration) time.Duration {
	switch value := options[key].(type) {
	case float64:
		return time.Duration(value * float64(time.Second))
	case int:
		return time.Duration(value) * time.Second
	case string:
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringMapOption(options map[string]any, key string) map[string]string {
	values := make(map[string]string)

	if opt, ok := options[key].(map[string]any); ok {
		for k, value := range opt {
			if strValue, ok := value.(string); ok {
				values[k] = strValue
			}
		}
	}

	return values
}

func getStringSliceOption(options map[string]any, key string) []string {
	var result []string

	switch slice := options[key].(type) {
	case []any:
		for _, item := range slice {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
	case []string:
		result = append(result, slice...)
	}

	return result
}

func parsePort(port any) (int, bool) {
	switch v := port.(type) {
	case float64:
		return int(v), v > 0 && v <= 65535
	case int:
		return v, v > 0 && v <= 65535
	case string:
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			return p, true
		}
	}
	return 0, false
}
