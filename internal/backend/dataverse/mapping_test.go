package dataverse

import (
	"slices"
	"strings"
	"testing"
	"time"

	"Orchestrator/internal/backend/models"
)

func TestMachineMappingRoundTrip(t *testing.T) {
	seen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	machine := &models.Machine{
		ID:           "machine-001",
		Name:         "Production Server",
		Status:       models.MachineStatusActive,
		IPAddress:    "192.168.1.100",
		LastSeen:     seen,
		ProcessCount: 8,
		CPUUsage:     42,
		MemoryUsage:  64,
		CreatedAt:    seen,
	}

	record, err := Encode(MachineMapping, machine)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if record["ac_ipaddress"] != "192.168.1.100" || record["ac_machineid"] != "machine-001" {
		t.Errorf("unexpected record %v", record)
	}
	if _, ok := record["created_at"]; ok {
		t.Error("unmapped fields must be dropped")
	}

	var decoded models.Machine
	if err := Decode(MachineMapping, record, &decoded); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if decoded.Name != machine.Name || decoded.ProcessCount != 8 || !decoded.LastSeen.Equal(seen) {
		t.Errorf("unexpected decoded machine %+v", decoded)
	}
}

func TestProcessMappingSkipsNulls(t *testing.T) {
	record := map[string]any{
		"ac_processid": "process-009",
		"ac_name":      "Import",
		"ac_status":    "pending",
		"ac_machineid": "machine-002",
		"ac_starttime": "2025-03-01T12:00:00Z",
		"ac_endtime":   nil,
		"ac_type":      "Data Sync",
		"@odata.etag":  "W/\"1\"",
	}

	var process models.Process
	if err := Decode(ProcessMapping, record, &process); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if process.EndTime != nil {
		t.Error("null end time should stay nil")
	}
	if process.MachineID != "machine-002" || process.Type != "Data Sync" {
		t.Errorf("unexpected process %+v", process)
	}
}

func TestColumnsAreStable(t *testing.T) {
	first := MachineMapping.Columns()
	if !slices.IsSorted(first) {
		t.Errorf("columns not sorted: %v", first)
	}
	if len(first) != len(MachineMapping.Fields) {
		t.Fatalf("got %d columns, want %d", len(first), len(MachineMapping.Fields))
	}

	want := strings.Join(first, ",")
	for i := 0; i < 20; i++ {
		if got := strings.Join(MachineMapping.Columns(), ","); got != want {
			t.Fatalf("$select changed between calls: %q vs %q", got, want)
		}
	}
}

func TestKeyFilterEscapesQuotes(t *testing.T) {
	if got := MachineMapping.KeyFilter("machine-001"); got != "ac_machineid eq 'machine-001'" {
		t.Errorf("KeyFilter() = %q", got)
	}
	if got := ProcessMapping.KeyFilter("o'brien"); got != "ac_processid eq 'o''brien'" {
		t.Errorf("KeyFilter() = %q", got)
	}
}
