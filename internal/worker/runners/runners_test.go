package runner

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/miekg/dns"
)

func TestFactoryGetRunner(t *testing.T) {
	f := NewFactory(nil, nil, NewHTTPRunner(), NewTCPRunner(), nil)

	tests := []struct {
		name    string
		wantErr string
	}{
		{"", ""},
		{RunnerNoop, ""},
		{RunnerHTTP, ""},
		{RunnerTCP, ""},
		{RunnerCommand, "disabled"},
		{RunnerDNS, "disabled"},
		{"ssh", "unknown runner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := f.GetRunner(tt.name)
			if tt.wantErr == "" {
				if err != nil || r == nil {
					t.Fatalf("GetRunner(%q) = %v, %v", tt.name, r, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("GetRunner(%q) error = %v, want %q", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestNoopRunner(t *testing.T) {
	r := NewNoopRunner()

	data, err := r.Execute(context.Background(), "report", map[string]any{"duration": "10ms"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["exit_code"] != 0 {
		t.Errorf("exit_code = %v, want 0", data["exit_code"])
	}
	if data["output"] != "execution acknowledged for report" {
		t.Errorf("output = %v", data["output"])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Execute(ctx, "", map[string]any{"duration": 5.0}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestCommandRunner(t *testing.T) {
	r := NewCommandRunner("/bin/sh", time.Second)

	data, err := r.Execute(context.Background(), "", map[string]any{
		"script": "echo hello; echo oops 1>&2; exit 3",
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["exit_code"] != 3 {
		t.Errorf("exit_code = %v, want 3", data["exit_code"])
	}
	if data["output"] != "hello" {
		t.Errorf("output = %q, want hello", data["output"])
	}
	if data["stderr"] != "oops" {
		t.Errorf("stderr = %q, want oops", data["stderr"])
	}

	data, err = r.Execute(context.Background(), "", map[string]any{
		"command": "/bin/sh",
		"args":    []any{"-c", "echo $GREETING"},
		"env":     map[string]any{"GREETING": "hi"},
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["exit_code"] != 0 || data["output"] != "hi" {
		t.Errorf("unexpected result: %v", data)
	}
}

func TestCommandRunnerErrors(t *testing.T) {
	r := NewCommandRunner("/bin/sh", time.Second)

	if _, err := r.Execute(context.Background(), "", map[string]any{}); err == nil {
		t.Error("Expected error without command")
	}

	_, err := r.Execute(context.Background(), "", map[string]any{
		"script":  "sleep 5",
		"timeout": "50ms",
	})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Expected timeout error, got %v", err)
	}
}

func TestHTTPRunner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Check") != "yes" {
			t.Errorf("header not forwarded")
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("pong"))
	}))
	defer server.Close()

	r := NewHTTPRunner()

	data, err := r.Execute(context.Background(), server.URL+"/ping", map[string]any{
		"headers": map[string]any{"X-Check": "yes"},
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["status_code"] != http.StatusOK || data["exit_code"] != 0 {
		t.Errorf("unexpected result: %v", data)
	}
	if data["body_preview"] != "pong" {
		t.Errorf("body_preview = %v", data["body_preview"])
	}

	data, err = r.Execute(context.Background(), server.URL+"/missing", map[string]any{
		"headers": map[string]any{"X-Check": "yes"},
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["exit_code"] != 1 {
		t.Errorf("exit_code = %v, want 1 for 404", data["exit_code"])
	}

	data, err = r.Execute(context.Background(), server.URL+"/missing", map[string]any{
		"headers":       map[string]any{"X-Check": "yes"},
		"expect_status": 404.0,
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["exit_code"] != 0 {
		t.Errorf("exit_code = %v, want 0 when 404 is expected", data["exit_code"])
	}
}

func TestHTTPRunnerInvalidTarget(t *testing.T) {
	r := NewHTTPRunner()
	if _, err := r.Execute(context.Background(), "", nil); err == nil {
		t.Error("Expected error for empty target")
	}
}

func TestTCPRunner(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Write([]byte("SSH-2.0-test\r\n"))
			conn.Close()
		}
	}()

	r := NewTCPRunner()

	data, err := r.Execute(context.Background(), addr, map[string]any{"banner_grab": true})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["port_open"] != true || data["exit_code"] != 0 {
		t.Errorf("unexpected result: %v", data)
	}
	if data["banner"] != "SSH-2.0-test" {
		t.Errorf("banner = %q", data["banner"])
	}

	ln.Close()

	data, err = r.Execute(context.Background(), addr, map[string]any{"timeout": "200ms"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["port_open"] != false || data["exit_code"] != 1 {
		t.Errorf("expected closed port, got %v", data)
	}
}

func TestTargetHelpers(t *testing.T) {
	if got := extractHost("https://example.com:8443/"); got != "example.com" {
		t.Errorf("extractHost = %q", got)
	}
	if got := portFromTarget("db.local:5433"); got != 5433 {
		t.Errorf("portFromTarget = %d", got)
	}
	if got := defaultPort("postgres://db.local"); got != 5432 {
		t.Errorf("defaultPort = %d", got)
	}
	if got := defaultPort("db.local"); got != 80 {
		t.Errorf("defaultPort = %d", got)
	}
}

func startDNSServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc("fleet.test.", func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		if req.Question[0].Qtype == dns.TypeA {
			rr, _ := dns.NewRR("fleet.test. 300 IN A 10.0.0.7")
			m.Answer = append(m.Answer, rr)
		}
		w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go server.ActivateAndServe()
	<-started

	t.Cleanup(func() { server.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSRunner(t *testing.T) {
	addr := startDNSServer(t)
	r := NewDNSRunner(addr)

	data, err := r.Execute(context.Background(), "fleet.test", map[string]any{"timeout": "2s"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["exit_code"] != 0 || data["answer_count"] != 1 {
		t.Errorf("unexpected result: %v", data)
	}
	if data["ttl"] != uint32(300) {
		t.Errorf("ttl = %v, want 300", data["ttl"])
	}
	if !strings.Contains(data["output"].(string), "10.0.0.7") {
		t.Errorf("output = %v", data["output"])
	}

	data, err = r.Execute(context.Background(), "fleet.test", map[string]any{"record_type": "MX", "timeout": "2s"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if data["exit_code"] != 1 {
		t.Errorf("exit_code = %v, want 1 for empty answer", data["exit_code"])
	}

	if _, err := r.Execute(context.Background(), "fleet.test", map[string]any{"record_type": "BOGUS"}); err == nil {
		t.Error("Expected error for unsupported record type")
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	// "ж" занимает два байта и начинается на последнем допустимом
	input := strings.Repeat("a", maxOutputBytes-1) + "жжж"

	got := truncate(input)
	if !utf8.ValidString(got) {
		t.Fatal("truncate produced invalid UTF-8")
	}
	if len(got) != maxOutputBytes-1 {
		t.Errorf("len = %d, want %d", len(got), maxOutputBytes-1)
	}

	short := "готово\n"
	if got := truncate(short); got != "готово" {
		t.Errorf("truncate(%q) = %q", short, got)
	}
}
