package main

import (
	"testing"
	"time"
)

func TestGetContainerRequiresMachineID(t *testing.T) {
	t.Setenv("MACHINE_ID", "")

	if _, err := GetContainer(); err == nil {
		t.Fatal("Expected error without MACHINE_ID")
	}
}

func TestGetContainer(t *testing.T) {
	t.Setenv("MACHINE_ID", "machine-001")
	t.Setenv("BACKEND_URL", "http://backend:8080")
	t.Setenv("WORKER_ALLOW_COMMANDS", "true")
	t.Setenv("LOG_LEVEL", "error")

	container, err := GetContainer()
	if err != nil {
		t.Fatalf("GetContainer error: %v", err)
	}

	if container.APIClient.MachineID() != "machine-001" {
		t.Errorf("MachineID = %q", container.APIClient.MachineID())
	}
	if _, err := container.RunnerFactory.GetRunner("command"); err != nil {
		t.Errorf("command runner should be enabled: %v", err)
	}
	if container.WorkerHandler == nil {
		t.Error("WorkerHandler not initialized")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL", "3s")
	t.Setenv("BROKEN_INTERVAL", "soon")
	t.Setenv("FLAG", "yes")

	if got := getDurationEnv("HEARTBEAT_INTERVAL", time.Minute); got != 3*time.Second {
		t.Errorf("getDurationEnv = %v", got)
	}
	if got := getDurationEnv("BROKEN_INTERVAL", time.Minute); got != time.Minute {
		t.Errorf("getDurationEnv fallback = %v", got)
	}
	if got := getBoolEnv("FLAG", true); got != true {
		t.Errorf("getBoolEnv fallback = %v", got)
	}
	if got := getEnv("UNSET_VARIABLE_FOR_TEST", "x"); got != "x" {
		t.Errorf("getEnv = %q", got)
	}
}
