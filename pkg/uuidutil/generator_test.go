package uuidutil

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewWithPrefix(t *testing.T) {
	id := NewWithPrefix("machine")

	rest, ok := strings.CutPrefix(id, "machine-")
	if !ok {
		t.Fatalf("NewWithPrefix() = %q, want machine- prefix", id)
	}
	if _, err := uuid.Parse(rest); err != nil {
		t.Errorf("suffix %q is not a UUID: %v", rest, err)
	}
	if NewWithPrefix("machine") == id {
		t.Error("Expected unique identifiers")
	}
}
