package main

import (
	"encoding/json"
	"fmt"
	"os"

	"Orchestrator/internal/backend/models"
	"Orchestrator/internal/cli"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	outputJSON bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "CLI for the Orchestrator fleet dashboard",
	Long: `fleetctl is a command-line interface for the Orchestrator backend.

It lists and registers machines, processes and agents, assigns processes
to machines, queues executions and shows the dashboard counters.`,
	SilenceUsage: true,
}

// render печатает JSON или таблицу
func render(cmd *cobra.Command, data map[string]interface{}, table func(map[string]interface{}) error) error {
	if outputJSON {
		return cli.FormatJSON(cmd.OutOrStdout(), data)
	}
	return table(data)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check backend health",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cli.NewClient(serverURL).Health()
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status: %v\n", data["status"])
			fmt.Fprintf(out, "Service: %v\n", data["service"])
			fmt.Fprintf(out, "Version: %v\n", data["version"])
			return nil
		})
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show fleet counters, recent processes and machines",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cli.NewClient(serverURL).Dashboard()
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatDashboard(cmd.OutOrStdout(), data)
		})
	},
}

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "Manage and query machines",
}

var listMachinesCmd = &cobra.Command{
	Use:   "list",
	Short: "List machines",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		search, _ := cmd.Flags().GetString("search")
		available, _ := cmd.Flags().GetBool("available")

		data, err := cli.NewClient(serverURL).ListMachines(status, search, available)
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatMachinesTable(cmd.OutOrStdout(), data)
		})
	},
}

var getMachineCmd = &cobra.Command{
	Use:   "get [machine-id]",
	Short: "Show a machine and its processes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := cli.NewClient(serverURL)
		data, err := client.GetMachine(args[0])
		if err != nil {
			return err
		}

		processes, err := client.MachineProcesses(args[0])
		if err != nil {
			return err
		}
		data["processes"] = processes["processes"]

		return render(cmd, data, func(data map[string]interface{}) error {
			out := cmd.OutOrStdout()
			if err := cli.FormatMachineDetail(out, data); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return cli.FormatProcessesTable(out, data)
		})
	},
}

var addMachineCmd = &cobra.Command{
	Use:   "add [name] [ip-address]",
	Short: "Register a machine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		status, _ := cmd.Flags().GetString("status")

		data, err := cli.NewClient(serverURL).AddMachine(models.NewMachineForm{
			Name:        args[0],
			IPAddress:   args[1],
			Description: description,
			Status:      models.MachineStatus(status),
		})
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatMachineDetail(cmd.OutOrStdout(), data)
		})
	},
}

var processesCmd = &cobra.Command{
	Use:   "processes",
	Short: "Manage, assign and run processes",
}

var listProcessesCmd = &cobra.Command{
	Use:   "list",
	Short: "List processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		machineID, _ := cmd.Flags().GetString("machine")
		search, _ := cmd.Flags().GetString("search")

		data, err := cli.NewClient(serverURL).ListProcesses(status, machineID, search)
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatProcessesTable(cmd.OutOrStdout(), data)
		})
	},
}

var getProcessCmd = &cobra.Command{
	Use:   "get [process-id]",
	Short: "Show a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cli.NewClient(serverURL).GetProcess(args[0])
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatProcessDetail(cmd.OutOrStdout(), data)
		})
	},
}

var addProcessCmd = &cobra.Command{
	Use:   "add [name] [type] [machine-id]",
	Short: "Register a pending process on a machine",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		data, err := cli.NewClient(serverURL).AddProcess(models.NewProcessForm{
			Name:        args[0],
			Type:        args[1],
			MachineID:   args[2],
			Description: description,
		})
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatProcessDetail(cmd.OutOrStdout(), data)
		})
	},
}

var assignProcessCmd = &cobra.Command{
	Use:   "assign [process-id] [machine-id]",
	Short: "Assign a process to a machine and start it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parameters(cmd)
		if err != nil {
			return err
		}

		data, err := cli.NewClient(serverURL).AssignProcess(models.ProcessAssignmentForm{
			ProcessID:  args[0],
			MachineID:  args[1],
			Parameters: params,
		})
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			fmt.Fprintln(cmd.OutOrStdout(), data["message"])
			return nil
		})
	},
}

var executeProcessCmd = &cobra.Command{
	Use:   "execute [process-id]",
	Short: "Queue a process execution for its machine's worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parameters(cmd)
		if err != nil {
			return err
		}
		priority, _ := cmd.Flags().GetString("priority")

		data, err := cli.NewClient(serverURL).ExecuteProcess(args[0], params, priority)
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Execution: %v (%v)\n", data["execution_id"], data["status"])
			fmt.Fprintln(out, data["message"])
			return nil
		})
	},
}

var processLogsCmd = &cobra.Command{
	Use:   "logs [process-id]",
	Short: "Show process execution logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("level")
		limit, _ := cmd.Flags().GetInt("limit")

		data, err := cli.NewClient(serverURL).ProcessLogs(args[0], level, limit)
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatLogsTable(cmd.OutOrStdout(), data)
		})
	},
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage and query agents",
}

var listAgentsCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		agentType, _ := cmd.Flags().GetString("type")

		data, err := cli.NewClient(serverURL).ListAgents(status, agentType)
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatAgentsTable(cmd.OutOrStdout(), data)
		})
	},
}

var getAgentCmd = &cobra.Command{
	Use:   "get [agent-id]",
	Short: "Show an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cli.NewClient(serverURL).GetAgent(args[0])
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatAgentDetail(cmd.OutOrStdout(), data)
		})
	},
}

var addAgentCmd = &cobra.Command{
	Use:   "add [name] [type]",
	Short: "Register an agent on one or more machines",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		machineIDs, _ := cmd.Flags().GetStringSlice("machines")
		description, _ := cmd.Flags().GetString("description")
		config, err := parameters(cmd)
		if err != nil {
			return err
		}

		data, err := cli.NewClient(serverURL).AddAgent(models.NewAgentForm{
			Name:          args[0],
			Type:          args[1],
			MachineIDs:    machineIDs,
			Description:   description,
			Configuration: config,
		})
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatAgentDetail(cmd.OutOrStdout(), data)
		})
	},
}

var agentTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "Count agents per type",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cli.NewClient(serverURL).AgentTypes()
		if err != nil {
			return err
		}

		return render(cmd, data, func(data map[string]interface{}) error {
			return cli.FormatAgentTypes(cmd.OutOrStdout(), data)
		})
	},
}

// parameters собирает --param key=value и --params '{...}' в один объект
func parameters(cmd *cobra.Command) (map[string]any, error) {
	pairs, _ := cmd.Flags().GetStringToString("param")
	raw, _ := cmd.Flags().GetString("params")

	result := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("--params must be a JSON object: %w", err)
		}
	}
	for k, v := range pairs {
		result[k] = v
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

func addParameterFlags(cmd *cobra.Command) {
	cmd.Flags().StringToStringP("param", "p", nil, "Parameter as key=value (repeatable)")
	cmd.Flags().String("params", "", "Parameters as a JSON object")
}

func init() {
	// Check for environment variable, fallback to default
	defaultServerURL := os.Getenv("ORCH_URL")
	if defaultServerURL == "" {
		defaultServerURL = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServerURL, "Backend server URL")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "Output in JSON format")

	listMachinesCmd.Flags().String("status", "", "Filter by status (active, idle, error, offline)")
	listMachinesCmd.Flags().String("search", "", "Search by name or IP address")
	listMachinesCmd.Flags().Bool("available", false, "Only machines that can take a process")
	addMachineCmd.Flags().StringP("description", "d", "", "Machine description")
	addMachineCmd.Flags().String("status", "", "Initial status (default idle)")

	listProcessesCmd.Flags().String("status", "", "Filter by status")
	listProcessesCmd.Flags().StringP("machine", "m", "", "Filter by machine ID")
	listProcessesCmd.Flags().String("search", "", "Search by name or type")
	addProcessCmd.Flags().StringP("description", "d", "", "Process description")
	addParameterFlags(assignProcessCmd)
	addParameterFlags(executeProcessCmd)
	executeProcessCmd.Flags().String("priority", "medium", "Queue priority (high, medium, low)")
	processLogsCmd.Flags().String("level", "all", "Filter by level (info, warning, error, debug, all)")
	processLogsCmd.Flags().IntP("limit", "l", 100, "Number of log entries")

	listAgentsCmd.Flags().String("status", "", "Filter by status")
	listAgentsCmd.Flags().String("type", "", "Filter by type")
	addAgentCmd.Flags().StringSliceP("machines", "m", nil, "Machine IDs (comma separated)")
	addAgentCmd.Flags().StringP("description", "d", "", "Agent description")
	addParameterFlags(addAgentCmd)

	machinesCmd.AddCommand(listMachinesCmd, getMachineCmd, addMachineCmd)
	processesCmd.AddCommand(listProcessesCmd, getProcessCmd, addProcessCmd, assignProcessCmd, executeProcessCmd, processLogsCmd)
	agentsCmd.AddCommand(listAgentsCmd, getAgentCmd, addAgentCmd, agentTypesCmd)

	rootCmd.AddCommand(healthCmd, dashboardCmd, machinesCmd, processesCmd, agentsCmd)
}
