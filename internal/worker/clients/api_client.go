package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Orchestrator/internal/backend/models"
)

type APIClient struct {
	baseURL    string
	token      string
	machineID  string
	httpClient *http.Client
}

// envelope - общий ответ backend
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func NewAPIClient(baseURL, token, machineID string) *APIClient {
	return &APIClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		machineID: machineID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (a *APIClient) MachineID() string {
	return a.machineID
}

// From Agent to Backend
func (a *APIClient) Heartbeat(ctx context.Context, usage models.HeartbeatRequest) error {
	path := "/api/v1/machines/" + url.PathEscape(a.machineID) + "/heartbeat"

	resp, err := a.do(ctx, http.MethodPost, path, usage)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotRegistered
	}
	_, err = decodeEnvelope(resp)
	return err
}

// From Backend to Agent
func (a *APIClient) FetchExecution(ctx context.Context) (*models.Execution, error) {
	path := "/api/v1/executions/next?machine_id=" + url.QueryEscape(a.machineID)

	resp, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, ErrNoExecutions
	case http.StatusNotFound:
		return nil, ErrNotRegistered
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	var data struct {
		Execution *models.Execution `json:"execution"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode execution: %w", err)
	}
	if data.Execution == nil {
		return nil, ErrNoExecutions
	}
	return data.Execution, nil
}

// From Agent to Backend
func (a *APIClient) SubmitResult(ctx context.Context, processID string, result *models.ExecutionResult) error {
	path := "/api/v1/processes/" + url.PathEscape(processID) + "/result"

	resp, err := a.do(ctx, http.MethodPost, path, result)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, err = decodeEnvelope(resp)
	return err
}

func (a *APIClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendDown, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, ErrUnauthorized
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d", ErrBackendDown, resp.StatusCode)
	}
	return resp, nil
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return nil, fmt.Errorf("backend error %s: %s", env.Error, env.Message)
	}
	return &env, nil
}
