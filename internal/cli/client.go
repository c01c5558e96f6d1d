package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"Orchestrator/internal/backend/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Health возвращает ответ /health как есть, без конверта
func (c *Client) Health() (map[string]interface{}, error) {
	return c.do(http.MethodGet, "/health", nil, false)
}

func (c *Client) Dashboard() (map[string]interface{}, error) {
	return c.get("/api/v1/dashboard")
}

func (c *Client) DashboardStats() (map[string]interface{}, error) {
	return c.get("/api/v1/dashboard/stats")
}

func (c *Client) ListMachines(status, search string, available bool) (map[string]interface{}, error) {
	params := url.Values{}
	setParam(params, "status", status)
	setParam(params, "search", search)
	if available {
		params.Set("available", "true")
	}
	return c.get("/api/v1/machines" + encode(params))
}

func (c *Client) GetMachine(id string) (map[string]interface{}, error) {
	return c.get("/api/v1/machines/" + url.PathEscape(id))
}

func (c *Client) MachineProcesses(id string) (map[string]interface{}, error) {
	return c.get("/api/v1/machines/" + url.PathEscape(id) + "/processes")
}

func (c *Client) AddMachine(form models.NewMachineForm) (map[string]interface{}, error) {
	return c.post("/api/v1/machines", form)
}

func (c *Client) ListProcesses(status, machineID, search string) (map[string]interface{}, error) {
	params := url.Values{}
	setParam(params, "status", status)
	setParam(params, "machine_id", machineID)
	setParam(params, "search", search)
	return c.get("/api/v1/processes" + encode(params))
}

func (c *Client) GetProcess(id string) (map[string]interface{}, error) {
	return c.get("/api/v1/processes/" + url.PathEscape(id))
}

func (c *Client) AddProcess(form models.NewProcessForm) (map[string]interface{}, error) {
	return c.post("/api/v1/processes", form)
}

func (c *Client) AssignProcess(form models.ProcessAssignmentForm) (map[string]interface{}, error) {
	return c.post("/api/v1/assignments", form)
}

func (c *Client) ExecuteProcess(id string, parameters map[string]any, priority string) (map[string]interface{}, error) {
	return c.post("/api/v1/processes/"+url.PathEscape(id)+"/execute", models.ExecutionRequest{
		Parameters: parameters,
		Priority:   models.Priority(priority),
	})
}

func (c *Client) ProcessLogs(id, level string, limit int) (map[string]interface{}, error) {
	params := url.Values{}
	setParam(params, "level", level)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return c.get("/api/v1/processes/" + url.PathEscape(id) + "/logs" + encode(params))
}

func (c *Client) ListAgents(status, agentType string) (map[string]interface{}, error) {
	params := url.Values{}
	setParam(params, "status", status)
	setParam(params, "type", agentType)
	return c.get("/api/v1/agents" + encode(params))
}

func (c *Client) GetAgent(id string) (map[string]interface{}, error) {
	return c.get("/api/v1/agents/" + url.PathEscape(id))
}

func (c *Client) AddAgent(form models.NewAgentForm) (map[string]interface{}, error) {
	return c.post("/api/v1/agents", form)
}

func (c *Client) AgentTypes() (map[string]interface{}, error) {
	return c.get("/api/v1/agent-types")
}

func (c *Client) QueueStats() (map[string]interface{}, error) {
	return c.get("/api/v1/queue/stats")
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	return c.do(http.MethodGet, path, nil, true)
}

func (c *Client) post(path string, body interface{}) (map[string]interface{}, error) {
	return c.do(http.MethodPost, path, body, true)
}

// do разворачивает конверт backend и возвращает data
func (c *Client) do(method, path string, body interface{}, envelope bool) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if msg := getString(result["message"]); msg != "-" {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if !envelope {
		return result, nil
	}

	data, _ := result["data"].(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	return data, nil
}

func setParam(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

func encode(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}
