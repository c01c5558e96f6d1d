package uuidutil

import (
	"github.com/google/uuid"
)

// NewWithPrefix возвращает идентификатор вида "<prefix>-<uuid>"
func NewWithPrefix(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
