package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Orchestrator/internal/backend/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	outputJSON = false

	err := rootCmd.Execute()
	return out.String(), err
}

func TestAssignCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/assignments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var form models.ProcessAssignmentForm
		json.NewDecoder(r.Body).Decode(&form)
		if form.ProcessID != "process-003" || form.MachineID != "machine-001" || form.Parameters["runner"] != "noop" {
			t.Errorf("unexpected form %+v", form)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"success": true,
				"message": "Process Web Scraper assigned to Production Server 1 and started",
			},
		})
	}))
	defer server.Close()

	out, err := execute(t, "processes", "assign", "process-003", "machine-001", "--param", "runner=noop", "-s", server.URL)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if !strings.Contains(out, "assigned to Production Server 1 and started") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestParametersFlags(t *testing.T) {
	cmd := executeProcessCmd
	cmd.Flags().Set("params", `{"runner":"http","timeout":5}`)
	cmd.Flags().Set("param", "target=http://localhost")
	defer func() {
		cmd.Flags().Set("params", "")
	}()

	params, err := parameters(cmd)
	if err != nil {
		t.Fatalf("parameters error: %v", err)
	}
	if params["runner"] != "http" || params["target"] != "http://localhost" || params["timeout"] != float64(5) {
		t.Errorf("unexpected parameters %v", params)
	}
}
