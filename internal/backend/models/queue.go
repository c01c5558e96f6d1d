package models

import (
	"maps"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Порядок, в котором воркер разбирает очереди
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type ExecutionStatus string

const (
	ExecutionStatusQueued  ExecutionStatus = "queued"
	ExecutionStatusStarted ExecutionStatus = "started"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

type ExecutionRequest struct {
	ProcessID  string         `json:"process_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Priority   Priority       `json:"priority,omitempty"`
}

type ExecutionResponse struct {
	ExecutionID string          `json:"execution_id"`
	Status      ExecutionStatus `json:"status"`
	Message     string          `json:"message,omitempty"`
}

// Execution - задача в очереди машины
type Execution struct {
	ID          string         `json:"id"`
	ProcessID   string         `json:"process_id"`
	ProcessName string         `json:"process_name"`
	ProcessType string         `json:"process_type"`
	MachineID   string         `json:"machine_id"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Priority    Priority       `json:"priority"`
	QueuedAt    time.Time      `json:"queued_at"`
}

func (e *Execution) Clone() *Execution {
	c := *e
	c.Parameters = maps.Clone(e.Parameters)
	return &c
}

// ExecutionResult присылает воркер после выполнения
type ExecutionResult struct {
	ExecutionID string         `json:"execution_id"`
	Success     bool           `json:"success"`
	ExitCode    int            `json:"exit_code"`
	Output      string         `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

type QueueStats struct {
	High      int64     `json:"high"`
	Medium    int64     `json:"medium"`
	Low       int64     `json:"low"`
	Total     int64     `json:"total"`
	Machines  int       `json:"machines"`
	Timestamp time.Time `json:"timestamp"`
}
