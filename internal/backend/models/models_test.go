package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAgentUnmarshalLegacyMachineID(t *testing.T) {
	var agent Agent
	if err := json.Unmarshal([]byte(`{"id":"agent-1","name":"Sync","machine_id":"machine-001"}`), &agent); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(agent.MachineIDs) != 1 || agent.MachineIDs[0] != "machine-001" {
		t.Errorf("expected legacy machine_id folded into machine_ids, got %v", agent.MachineIDs)
	}
	if agent.Name != "Sync" {
		t.Errorf("expected name Sync, got %s", agent.Name)
	}
}

func TestAgentUnmarshalMixedMachineFields(t *testing.T) {
	var agent Agent
	body := `{"machine_id":"machine-002","machine_ids":["machine-001","machine-002"]}`
	if err := json.Unmarshal([]byte(body), &agent); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(agent.MachineIDs) != 2 {
		t.Errorf("expected no duplicate machine id, got %v", agent.MachineIDs)
	}
}

func TestAgentMarshalUsesMachineIDs(t *testing.T) {
	data, err := json.Marshal(&Agent{ID: "agent-1", MachineIDs: []string{"machine-001"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["machine_id"]; ok {
		t.Error("legacy machine_id should not be written")
	}
	if ids, ok := raw["machine_ids"].([]any); !ok || len(ids) != 1 {
		t.Errorf("expected machine_ids array, got %v", raw["machine_ids"])
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{30 * time.Minute, "30m"},
		{time.Hour, "1h"},
		{65 * time.Minute, "1h5m"},
		{-time.Second, "0s"},
		{90 * time.Second, "1m"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMachineFilter(t *testing.T) {
	machine := &Machine{Name: "Production Server", IPAddress: "192.168.1.100", Status: MachineStatusError}

	if !(MachineFilter{Search: "production"}).Matches(machine) {
		t.Error("search should be case-insensitive")
	}
	if !(MachineFilter{Search: "1.100"}).Matches(machine) {
		t.Error("search should cover ip address")
	}
	if (MachineFilter{Available: true}).Matches(machine) {
		t.Error("error machine should not be available")
	}
	if (MachineFilter{Status: MachineStatusActive}).Matches(machine) {
		t.Error("status filter should exclude error machine")
	}
}

func TestProcessFilterAssignable(t *testing.T) {
	running := &Process{Status: ProcessStatusRunning}
	pending := &Process{Status: ProcessStatusPending}

	filter := ProcessFilter{Assignable: true}
	if filter.Matches(running) {
		t.Error("running process should not be assignable")
	}
	if !filter.Matches(pending) {
		t.Error("pending process should be assignable")
	}
}

func TestProcessCloneIsDeep(t *testing.T) {
	end := time.Now()
	original := &Process{ID: "p", EndTime: &end, Parameters: map[string]any{"a": 1}}

	clone := original.Clone()
	clone.Parameters["a"] = 2
	*clone.EndTime = end.Add(time.Hour)

	if original.Parameters["a"] != 1 {
		t.Error("parameters should not be shared")
	}
	if !original.EndTime.Equal(end) {
		t.Error("end time should not be shared")
	}
}
