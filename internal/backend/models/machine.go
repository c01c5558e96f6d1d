package models

import (
	"strings"
	"time"
)

type MachineStatus string

const (
	MachineStatusActive  MachineStatus = "active"
	MachineStatusIdle    MachineStatus = "idle"
	MachineStatusError   MachineStatus = "error"
	MachineStatusOffline MachineStatus = "offline"
)

func (s MachineStatus) IsValid() bool {
	switch s {
	case MachineStatusActive, MachineStatusIdle, MachineStatusError, MachineStatusOffline:
		return true
	}
	return false
}

type Machine struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Status       MachineStatus `json:"status"`
	IPAddress    string        `json:"ip_address"`
	LastSeen     time.Time     `json:"last_seen"`
	Description  string        `json:"description"`
	ProcessCount int           `json:"process_count"`
	CPUUsage     float64       `json:"cpu_usage"`
	MemoryUsage  float64       `json:"memory_usage"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (m *Machine) Clone() *Machine {
	c := *m
	return &c
}

// Available - машина может принимать процессы
func (m *Machine) Available() bool {
	return m.Status != MachineStatusOffline && m.Status != MachineStatusError
}

type NewMachineForm struct {
	Name        string        `json:"name"`
	IPAddress   string        `json:"ip_address"`
	Description string        `json:"description"`
	Status      MachineStatus `json:"status"`
}

type HeartbeatRequest struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`

	// UsageUnavailable - heartbeat только о живости, загрузка машины не меняется
	UsageUnavailable bool `json:"usage_unavailable,omitempty"`
}

type MachineFilter struct {
	Status    MachineStatus
	Search    string
	Available bool
}

func (f MachineFilter) Matches(m *Machine) bool {
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.Available && !m.Available() {
		return false
	}
	if f.Search != "" {
		return containsFold(f.Search, m.Name, m.IPAddress, m.Description)
	}
	return true
}

func containsFold(needle string, fields ...string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
