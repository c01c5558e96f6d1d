package dataverse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"Orchestrator/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultTop = 50

	requestTimeout = 30 * time.Second

	// токен обновляется за минуту до истечения
	tokenRefreshWindow = 60 * time.Second
)

var entityIDPattern = regexp.MustCompile(`\((.*?)\)`)

type Query struct {
	Select []string
	Filter string
	Top    int
}

// Client - клиент Dataverse Web API (OData v4)
type Client struct {
	cfg        config.DataverseConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(ctx context.Context, cfg config.DataverseConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{Timeout: requestTimeout}
	if cfg.AuthType == config.DataverseAuthOAuth {
		httpClient = oauthClientFor(ctx, cfg, cfg.TokenURL())
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

// oauthClientFor строит клиент с client credentials токеном для tokenURL
func oauthClientFor(ctx context.Context, cfg config.DataverseConfig, tokenURL string) *http.Client {
	base := &http.Client{Timeout: requestTimeout}
	cc := &clientcredentials.Config{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		TokenURL:       tokenURL,
		EndpointParams: url.Values{"resource": {cfg.URL}},
		AuthStyle:      oauth2.AuthStyleInParams,
	}

	// токены обновляются дольше, чем живет ctx конструктора
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, base)
	source := oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(tokenCtx), tokenRefreshWindow)

	httpClient := oauth2.NewClient(tokenCtx, source)
	httpClient.Timeout = requestTimeout
	return httpClient
}

// WithHTTPClient подменяет транспорт (тесты, прокси)
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

func (c *Client) entityURL(entity string) string {
	return c.cfg.APIBase() + "/" + entity
}

func (c *Client) newRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	if c.cfg.AuthType == config.DataverseAuthKey {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, expected int) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataverse request failed: %w", err)
	}

	if resp.StatusCode != expected {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("dataverse %s %s: HTTP %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// Connect проверяет доступ через WhoAmI
func (c *Client) Connect(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.APIBase()+"/WhoAmI", nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		c.logger.Warn("dataverse connection check failed", "error", err)
		return err
	}
	resp.Body.Close()

	c.logger.Info("dataverse connection established", "url", c.cfg.URL)
	return nil
}

func (c *Client) QueryRecords(ctx context.Context, entity string, q Query) ([]map[string]any, error) {
	top := q.Top
	if top <= 0 {
		top = DefaultTop
	}

	params := url.Values{}
	params.Set("$top", strconv.Itoa(top))
	if len(q.Select) > 0 {
		params.Set("$select", strings.Join(q.Select, ","))
	}
	if q.Filter != "" {
		params.Set("$filter", q.Filter)
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.entityURL(entity)+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	return payload.Value, nil
}

// CreateRecord возвращает GUID из заголовка OData-EntityId
func (c *Client) CreateRecord(ctx context.Context, entity string, data map[string]any) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.entityURL(entity), data)
	if err != nil {
		return "", err
	}

	resp, err := c.do(req, http.StatusNoContent)
	if err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	resp.Body.Close()

	if match := entityIDPattern.FindStringSubmatch(resp.Header.Get("OData-EntityId")); len(match) == 2 {
		return match[1], nil
	}
	return "", nil
}

func (c *Client) UpdateRecord(ctx context.Context, entity, id string, data map[string]any) error {
	req, err := c.newRequest(ctx, http.MethodPatch, fmt.Sprintf("%s(%s)", c.entityURL(entity), id), data)
	if err != nil {
		return err
	}

	resp, err := c.do(req, http.StatusNoContent)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) DeleteRecord(ctx context.Context, entity, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("%s(%s)", c.entityURL(entity), id), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, http.StatusNoContent)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	resp.Body.Close()
	return nil
}
