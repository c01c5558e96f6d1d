package models

import "time"

type DashboardStats struct {
	TotalMachines   int `json:"total_machines"`
	ActiveMachines  int `json:"active_machines"`
	IdleMachines    int `json:"idle_machines"`
	ErrorMachines   int `json:"error_machines"`
	OfflineMachines int `json:"offline_machines"`

	TotalProcesses     int `json:"total_processes"`
	RunningProcesses   int `json:"running_processes"`
	CompletedProcesses int `json:"completed_processes"`
	FailedProcesses    int `json:"failed_processes"`
	PendingProcesses   int `json:"pending_processes"`
	StoppedProcesses   int `json:"stopped_processes"`

	TotalAgents    int `json:"total_agents"`
	ActiveAgents   int `json:"active_agents"`
	InactiveAgents int `json:"inactive_agents"`
	UpdatingAgents int `json:"updating_agents"`
	ErrorAgents    int `json:"error_agents"`

	QueuedExecutions int64     `json:"queued_executions"`
	Timestamp        time.Time `json:"timestamp"`
}

type DashboardOverview struct {
	Stats           *DashboardStats `json:"stats"`
	RecentProcesses []*Process      `json:"recent_processes"`
	Machines        []*Machine      `json:"machines"`
}
