package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

func FormatJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func FormatMachinesTable(out io.Writer, data map[string]interface{}) error {
	machines, ok := data["machines"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid machines data")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tIP\tPROCESSES\tCPU\tMEMORY\tLAST SEEN")

	for _, m := range machines {
		machine, _ := m.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			getString(machine["id"]),
			getString(machine["name"]),
			getString(machine["status"]),
			getString(machine["ip_address"]),
			formatNumber(machine["process_count"]),
			formatPercent(machine["cpu_usage"]),
			formatPercent(machine["memory_usage"]),
			formatAgo(machine["last_seen"]),
		)
	}

	return w.Flush()
}

func FormatMachineDetail(out io.Writer, data map[string]interface{}) error {
	machine, ok := data["machine"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid machine data")
	}

	fmt.Fprintf(out, "Machine: %s (%s)\n", getString(machine["name"]), getString(machine["id"]))
	fmt.Fprintf(out, "Status: %s\n", getString(machine["status"]))
	fmt.Fprintf(out, "IP: %s\n", getString(machine["ip_address"]))
	fmt.Fprintf(out, "Description: %s\n", getString(machine["description"]))
	fmt.Fprintf(out, "Processes: %s\n", formatNumber(machine["process_count"]))
	fmt.Fprintf(out, "CPU: %s\n", formatPercent(machine["cpu_usage"]))
	fmt.Fprintf(out, "Memory: %s\n", formatPercent(machine["memory_usage"]))
	fmt.Fprintf(out, "Last Seen: %s (%s)\n", formatTime(machine["last_seen"]), formatAgo(machine["last_seen"]))
	return nil
}

func FormatProcessesTable(out io.Writer, data map[string]interface{}) error {
	processes, ok := data["processes"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid processes data")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tMACHINE\tSTARTED\tDURATION")

	for _, p := range processes {
		process, _ := p.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			getString(process["id"]),
			getString(process["name"]),
			getString(process["type"]),
			getString(process["status"]),
			getString(process["machine_id"]),
			formatTime(process["start_time"]),
			getString(process["duration"]),
		)
	}

	return w.Flush()
}

func FormatProcessDetail(out io.Writer, data map[string]interface{}) error {
	process, ok := data["process"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid process data")
	}

	fmt.Fprintf(out, "Process: %s (%s)\n", getString(process["name"]), getString(process["id"]))
	fmt.Fprintf(out, "Type: %s\n", getString(process["type"]))
	fmt.Fprintf(out, "Status: %s\n", getString(process["status"]))
	fmt.Fprintf(out, "Machine: %s\n", getString(process["machine_id"]))
	fmt.Fprintf(out, "Description: %s\n", getString(process["description"]))
	fmt.Fprintf(out, "Started: %s\n", formatTime(process["start_time"]))
	if end, ok := process["end_time"]; ok {
		fmt.Fprintf(out, "Ended: %s\n", formatTime(end))
		fmt.Fprintf(out, "Duration: %s\n", getString(process["duration"]))
	}
	if params, ok := process["parameters"].(map[string]interface{}); ok && len(params) > 0 {
		fmt.Fprintf(out, "Parameters: %s\n", formatMap(params))
	}
	return nil
}

func FormatLogsTable(out io.Writer, data map[string]interface{}) error {
	logs, ok := data["logs"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid logs data")
	}

	if len(logs) == 0 {
		fmt.Fprintln(out, "No log entries")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tLEVEL\tMESSAGE")

	for _, l := range logs {
		entry, _ := l.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			formatTime(entry["timestamp"]),
			strings.ToUpper(getString(entry["level"])),
			getString(entry["message"]),
		)
	}

	return w.Flush()
}

func FormatAgentsTable(out io.Writer, data map[string]interface{}) error {
	agents, ok := data["agents"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid agents data")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tVERSION\tMACHINES\tUPDATED")

	for _, a := range agents {
		agent, _ := a.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			getString(agent["id"]),
			getString(agent["name"]),
			getString(agent["type"]),
			getString(agent["status"]),
			getString(agent["version"]),
			formatList(agent["machine_ids"]),
			formatAgo(agent["last_updated"]),
		)
	}

	return w.Flush()
}

func FormatAgentDetail(out io.Writer, data map[string]interface{}) error {
	agent, ok := data["agent"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid agent data")
	}

	fmt.Fprintf(out, "Agent: %s (%s)\n", getString(agent["name"]), getString(agent["id"]))
	fmt.Fprintf(out, "Type: %s\n", getString(agent["type"]))
	fmt.Fprintf(out, "Status: %s\n", getString(agent["status"]))
	fmt.Fprintf(out, "Version: %s\n", getString(agent["version"]))
	fmt.Fprintf(out, "Machines: %s\n", formatList(agent["machine_ids"]))
	fmt.Fprintf(out, "Description: %s\n", getString(agent["description"]))
	fmt.Fprintf(out, "Last Updated: %s\n", formatTime(agent["last_updated"]))
	if cfg, ok := agent["configuration"].(map[string]interface{}); ok && len(cfg) > 0 {
		fmt.Fprintf(out, "Configuration: %s\n", formatMap(cfg))
	}
	return nil
}

func FormatAgentTypes(out io.Writer, data map[string]interface{}) error {
	types, ok := data["types"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid agent types data")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tAGENTS")
	for _, t := range types {
		entry, _ := t.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\n", getString(entry["type"]), formatNumber(entry["count"]))
	}
	return w.Flush()
}

// FormatDashboard печатает счетчики и последние процессы
func FormatDashboard(out io.Writer, data map[string]interface{}) error {
	stats, ok := data["stats"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid dashboard data")
	}

	if err := FormatStats(out, stats); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Recent Processes:")
	if err := FormatProcessesTable(out, map[string]interface{}{"processes": data["recent_processes"]}); err != nil {
		fmt.Fprintln(out, "  none")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Machines:")
	if err := FormatMachinesTable(out, map[string]interface{}{"machines": data["machines"]}); err != nil {
		fmt.Fprintln(out, "  none")
	}
	return nil
}

func FormatStats(out io.Writer, stats map[string]interface{}) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tTOTAL\tBREAKDOWN")
	fmt.Fprintf(w, "Machines\t%s\tactive %s, idle %s, error %s, offline %s\n",
		formatNumber(stats["total_machines"]),
		formatNumber(stats["active_machines"]),
		formatNumber(stats["idle_machines"]),
		formatNumber(stats["error_machines"]),
		formatNumber(stats["offline_machines"]),
	)
	fmt.Fprintf(w, "Processes\t%s\trunning %s, pending %s, completed %s, failed %s, stopped %s\n",
		formatNumber(stats["total_processes"]),
		formatNumber(stats["running_processes"]),
		formatNumber(stats["pending_processes"]),
		formatNumber(stats["completed_processes"]),
		formatNumber(stats["failed_processes"]),
		formatNumber(stats["stopped_processes"]),
	)
	fmt.Fprintf(w, "Agents\t%s\tactive %s, inactive %s, updating %s, error %s\n",
		formatNumber(stats["total_agents"]),
		formatNumber(stats["active_agents"]),
		formatNumber(stats["inactive_agents"]),
		formatNumber(stats["updating_agents"]),
		formatNumber(stats["error_agents"]),
	)
	fmt.Fprintf(w, "Queue\t%s\t\n", formatNumber(stats["queued_executions"]))
	return w.Flush()
}

func getString(v interface{}) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return "-"
}

func formatNumber(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	}
	return "0"
}

func formatPercent(v interface{}) string {
	if n, ok := v.(float64); ok {
		return fmt.Sprintf("%.1f%%", n)
	}
	return "-"
}

func parseTime(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func formatTime(v interface{}) string {
	t, ok := parseTime(v)
	if !ok {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatAgo(v interface{}) string {
	t, ok := parseTime(v)
	if !ok {
		return "-"
	}
	return humanizeSince(time.Since(t))
}

func humanizeSince(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func formatList(v interface{}) string {
	items, ok := v.([]interface{})
	if !ok || len(items) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, getString(item))
	}
	return strings.Join(parts, ",")
}

func formatMap(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}
