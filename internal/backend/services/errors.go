package services

import (
	"errors"
	"fmt"
)

var (
	ErrMachineNotFound = errors.New("machine not found")
	ErrProcessNotFound = errors.New("process not found")
	ErrAgentNotFound   = errors.New("agent not found")

	ErrRemoteRecordNotFound = errors.New("dataverse record not found")
)

// ValidationError - ошибка входных данных формы, отдается клиенту как 400
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrMachineNotFound) ||
		errors.Is(err, ErrProcessNotFound) ||
		errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrRemoteRecordNotFound)
}
