package models

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
	AgentStatusUpdating AgentStatus = "updating"
	AgentStatusError    AgentStatus = "error"
)

func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentStatusActive, AgentStatusInactive, AgentStatusUpdating, AgentStatusError:
		return true
	}
	return false
}

const DefaultAgentVersion = "1.0.0"

// Типы агентов, которые предлагает форма создания
var AgentTypes = []string{
	"Data Sync",
	"Monitoring",
	"Reporting",
	"Backup",
	"Integration",
	"Analytics",
	"Automation",
}

type Agent struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Status        AgentStatus    `json:"status"`
	Version       string         `json:"version"`
	Type          string         `json:"type"`
	MachineIDs    []string       `json:"machine_ids"`
	LastUpdated   time.Time      `json:"last_updated"`
	Description   string         `json:"description"`
	Configuration map[string]any `json:"configuration"`
	CreatedAt     time.Time      `json:"created_at"`
}

// UnmarshalJSON принимает и старое поле machine_id с одной машиной
func (a *Agent) UnmarshalJSON(data []byte) error {
	type plain Agent
	var aux struct {
		plain
		MachineID string `json:"machine_id"`
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*a = Agent(aux.plain)
	if aux.MachineID != "" && !slices.Contains(a.MachineIDs, aux.MachineID) {
		a.MachineIDs = append([]string{aux.MachineID}, a.MachineIDs...)
	}
	return nil
}

func (a *Agent) Clone() *Agent {
	c := *a
	c.MachineIDs = slices.Clone(a.MachineIDs)
	c.Configuration = maps.Clone(a.Configuration)
	return &c
}

func (a *Agent) OnMachine(machineID string) bool {
	return slices.Contains(a.MachineIDs, machineID)
}

type NewAgentForm struct {
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	MachineIDs    []string       `json:"machine_ids"`
	Description   string         `json:"description"`
	Configuration map[string]any `json:"configuration"`
}

type AgentTypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type AgentFilter struct {
	Status    AgentStatus
	Type      string
	MachineID string
	Search    string
}

func (f AgentFilter) Matches(a *Agent) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.MachineID != "" && !a.OnMachine(f.MachineID) {
		return false
	}
	if f.Search != "" {
		return containsFold(f.Search, a.Name, a.Type, a.Description)
	}
	return true
}
