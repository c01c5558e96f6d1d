package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const bodyPreviewBytes = 4096

type HTTPRunner struct {
	client *http.Client
}

func NewHTTPRunner() *HTTPRunner {
	return &HTTPRunner{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Execute вызывает url (target или options.url). exit_code 1, если статус не совпал
// с expect_status или, без него, оказался 4xx/5xx
func (r *HTTPRunner) Execute(ctx context.Context, target string, options map[string]any) (map[string]any, error) {
	fullURL, err := r.normalizeURL(getStringOption(options, "url", target))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	method := strings.ToUpper(getStringOption(options, "method", http.MethodGet))
	headers := getStringMapOption(options, "headers")
	followRedirects := getBoolOption(options, "follow_redirects", true)
	verifySSL := getBoolOption(options, "verify_ssl", true)
	timeout := getDurationOption(options, "timeout", r.client.Timeout)

	client := r.configureClient(followRedirects, verifySSL, timeout)

	var body io.Reader
	if payload := getStringOption(options, "body", ""); payload != "" {
		body = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "Orchestrator-Worker/1.0")
	}

	start := time.Now()
	resp, err := client.Do(req)
	responseTime := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	result := r.collectBasicInfo(resp, responseTime, fullURL)

	if resp.TLS != nil {
		result["ssl"] = r.collectSSLInfo(resp.TLS)
	}

	if resp.Request.URL.String() != fullURL {
		result["final_url"] = resp.Request.URL.String()
		result["redirected"] = true
	}

	preview, err := io.ReadAll(io.LimitReader(resp.Body, bodyPreviewBytes))
	if err != nil {
		result["body_error"] = err.Error()
	} else {
		result["body_preview"] = string(preview)
		result["content_type"] = resp.Header.Get("Content-Type")
	}

	exitCode := 0
	if expected := getIntOption(options, "expect_status", 0); expected > 0 {
		if resp.StatusCode != expected {
			exitCode = 1
		}
	} else if resp.StatusCode >= http.StatusBadRequest {
		exitCode = 1
	}

	result["exit_code"] = exitCode
	result["output"] = fmt.Sprintf("%s %s -> %s in %dms", method, fullURL, resp.Status, responseTime.Milliseconds())
	return result, nil
}

func (r *HTTPRunner) normalizeURL(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("target is empty")
	}
	if parsed, err := url.ParseRequestURI(target); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		return target, nil
	}
	if httpURL, err := url.Parse("http://" + target); err == nil && httpURL.Host != "" {
		return httpURL.String(), nil
	}
	return "", fmt.Errorf("invalid URL format: %s", target)
}

func (r *HTTPRunner) configureClient(followRedirects, verifySSL bool, timeout time.Duration) *http.Client {
	transport := r.client.Transport.(*http.Transport).Clone()
	transport.TLSClientConfig.InsecureSkipVerify = !verifySSL

	client := *r.client
	client.Transport = transport
	client.Timeout = timeout

	if !followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &client
}

func (r *HTTPRunner) collectBasicInfo(resp *http.Response, responseTime time.Duration, originalURL string) map[string]any {
	headerMap := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			headerMap[key] = values[0]
		}
	}

	return map[string]any{
		"status_code":    resp.StatusCode,
		"status":         resp.Status,
		"headers":        headerMap,
		"response_time":  responseTime.Milliseconds(),
		"url":            originalURL,
		"proto":          resp.Proto,
		"content_length": resp.ContentLength,
	}
}

func (r *HTTPRunner) collectSSLInfo(tlsState *tls.ConnectionState) map[string]any {
	if tlsState == nil || len(tlsState.PeerCertificates) == 0 {
		return map[string]any{}
	}

	cert := tlsState.PeerCertificates[0]
	return map[string]any{
		"valid":      time.Now().Before(cert.NotAfter),
		"expires_at": cert.NotAfter.Format(time.RFC3339),
		"issuer":     cert.Issuer.String(),
		"subject":    cert.Subject.String(),
		"dns_names":  cert.DNSNames,
		"protocol":   tlsState.NegotiatedProtocol,
	}
}
