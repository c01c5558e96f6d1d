package models

import (
	"fmt"
	"maps"
	"time"
)

type ProcessStatus string

const (
	ProcessStatusRunning   ProcessStatus = "running"
	ProcessStatusCompleted ProcessStatus = "completed"
	ProcessStatusFailed    ProcessStatus = "failed"
	ProcessStatusPending   ProcessStatus = "pending"
	ProcessStatusStopped   ProcessStatus = "stopped"
)

func (s ProcessStatus) IsValid() bool {
	switch s {
	case ProcessStatusRunning, ProcessStatusCompleted, ProcessStatusFailed, ProcessStatusPending, ProcessStatusStopped:
		return true
	}
	return false
}

type Process struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Status      ProcessStatus  `json:"status"`
	MachineID   string         `json:"machine_id"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	Duration    string         `json:"duration,omitempty"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (p *Process) Clone() *Process {
	c := *p
	if p.EndTime != nil {
		end := *p.EndTime
		c.EndTime = &end
	}
	c.Parameters = maps.Clone(p.Parameters)
	return &c
}

type NewProcessForm struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	MachineID   string `json:"machine_id"`
}

type ProcessAssignmentForm struct {
	ProcessID  string         `json:"process_id"`
	MachineID  string         `json:"machine_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// AssignmentResult - ответ операции "назначить и запустить"
type AssignmentResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Process *Process `json:"process,omitempty"`
	Machine *Machine `json:"machine,omitempty"`
}

type ProcessFilter struct {
	Status     ProcessStatus
	MachineID  string
	Search     string
	Assignable bool
}

func (f ProcessFilter) Matches(p *Process) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.MachineID != "" && p.MachineID != f.MachineID {
		return false
	}
	if f.Assignable && p.Status == ProcessStatusRunning {
		return false
	}
	if f.Search != "" {
		return containsFold(f.Search, p.Name, p.Type, p.Description)
	}
	return true
}

// FormatDuration печатает длительность в коротком виде: 45s, 30m, 1h, 1h5m
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	seconds := int((d % time.Minute) / time.Second)

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
