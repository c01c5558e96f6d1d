package discovery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newFakeConsul(t *testing.T, handler http.HandlerFunc) *Registry {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	registry, err := NewRegistry(strings.TrimPrefix(server.URL, "http://"))
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return registry
}

func TestRegister(t *testing.T) {
	var body map[string]any
	registry := newFakeConsul(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agent/service/register" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
	})

	id, err := registry.Register("orchestrator-backend", "10.0.0.5", 8080)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if id != "orchestrator-backend-10.0.0.5-8080" {
		t.Errorf("unexpected id %s", id)
	}

	check, _ := body["Check"].(map[string]any)
	if check["HTTP"] != "http://10.0.0.5:8080/health" {
		t.Errorf("unexpected check %v", check)
	}
}

func TestDiscover(t *testing.T) {
	registry := newFakeConsul(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health/service/orchestrator-backend" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("passing") == "" {
			t.Error("expected passing filter")
		}
		w.Write([]byte(`[{"Node":{"Address":"10.0.0.9"},"Service":{"Address":"","Port":8080}}]`))
	})

	url, err := registry.Discover("orchestrator-backend")
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if url != "http://10.0.0.9:8080" {
		t.Errorf("unexpected url %s", url)
	}
}

func TestDiscoverNoInstances(t *testing.T) {
	registry := newFakeConsul(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	if _, err := registry.Discover("orchestrator-backend"); err != ErrNoHealthyService {
		t.Errorf("expected ErrNoHealthyService, got %v", err)
	}
}
