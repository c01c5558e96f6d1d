package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatMachinesTable(t *testing.T) {
	data := map[string]interface{}{
		"machines": []interface{}{
			map[string]interface{}{
				"id":            "machine-001",
				"name":          "Production Server 1",
				"status":        "active",
				"ip_address":    "192.168.1.10",
				"process_count": float64(8),
				"cpu_usage":     45.5,
				"memory_usage":  62.0,
				"last_seen":     time.Now().Add(-5 * time.Minute).UTC().Format(time.RFC3339Nano),
			},
		},
	}

	var buf bytes.Buffer
	if err := FormatMachinesTable(&buf, data); err != nil {
		t.Fatalf("FormatMachinesTable error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"ID", "LAST SEEN", "machine-001", "Production Server 1", "45.5%", "5m ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatInvalidData(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatProcessesTable(&buf, map[string]interface{}{}); err == nil {
		t.Error("Expected error for missing processes")
	}
	if err := FormatAgentDetail(&buf, map[string]interface{}{}); err == nil {
		t.Error("Expected error for missing agent")
	}
}

func TestFormatDashboard(t *testing.T) {
	data := map[string]interface{}{
		"stats": map[string]interface{}{
			"total_machines":    float64(5),
			"active_machines":   float64(3),
			"total_processes":   float64(8),
			"running_processes": float64(2),
			"total_agents":      float64(4),
			"queued_executions": float64(1),
		},
		"recent_processes": []interface{}{
			map[string]interface{}{"id": "process-001", "name": "Data Processing Job", "status": "running"},
		},
		"machines": nil,
	}

	var buf bytes.Buffer
	if err := FormatDashboard(&buf, data); err != nil {
		t.Fatalf("FormatDashboard error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Machines", "active 3", "running 2", "Data Processing Job", "none"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatAgentDetail(t *testing.T) {
	data := map[string]interface{}{
		"agent": map[string]interface{}{
			"id":            "agent-001",
			"name":          "Sync Agent",
			"machine_ids":   []interface{}{"machine-001", "machine-003"},
			"configuration": map[string]interface{}{"interval": "5m", "batch": float64(100)},
		},
	}

	var buf bytes.Buffer
	if err := FormatAgentDetail(&buf, data); err != nil {
		t.Fatalf("FormatAgentDetail error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "machine-001,machine-003") {
		t.Errorf("machines not joined:\n%s", out)
	}
	if !strings.Contains(out, "batch=100 interval=5m") {
		t.Errorf("configuration not sorted:\n%s", out)
	}
}

func TestHumanizeSince(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{35 * time.Minute, "35m ago"},
		{4 * time.Hour, "4h ago"},
		{49 * time.Hour, "2d ago"},
	}

	for _, tt := range tests {
		if got := humanizeSince(tt.d); got != tt.want {
			t.Errorf("humanizeSince(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatJSON(&buf, map[string]interface{}{"count": 1}); err != nil {
		t.Fatalf("FormatJSON error: %v", err)
	}
	if !strings.Contains(buf.String(), "\"count\": 1") {
		t.Errorf("unexpected JSON: %s", buf.String())
	}
}
