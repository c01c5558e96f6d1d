package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

type TCPRunner struct {
	timeout time.Duration
}

func NewTCPRunner() *TCPRunner {
	return &TCPRunner{
		timeout: 10 * time.Second,
	}
}

// Execute проверяет, что порт принимает соединения; закрытый порт дает exit_code 1
func (r *TCPRunner) Execute(ctx context.Context, target string, options map[string]any) (map[string]any, error) {
	host := extractHost(target)
	if host == "" {
		return nil, errors.New("target host is required")
	}

	port, ok := parsePort(options["port"])
	if !ok {
		port = portFromTarget(target)
	}
	if port == 0 {
		port = defaultPort(target)
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	timeout := getDurationOption(options, "timeout", r.timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	connectTime := time.Since(start)

	result := map[string]any{
		"target":       target,
		"host":         host,
		"port":         port,
		"address":      address,
		"connect_time": connectTime.Milliseconds(),
	}

	if err != nil {
		result["port_open"] = false
		result["exit_code"] = 1
		result["error"] = err.Error()
		result["output"] = fmt.Sprintf("%s is closed: %v", address, err)

		var netErr net.Error
		if errors.As(err, &netErr) {
			result["timeout"] = netErr.Timeout()
		}
		return result, nil
	}
	defer conn.Close()

	result["port_open"] = true
	result["exit_code"] = 0
	result["remote_address"] = conn.RemoteAddr().String()
	result["output"] = fmt.Sprintf("%s is open (%dms)", address, connectTime.Milliseconds())

	if getBoolOption(options, "banner_grab", false) {
		banner, bannerErr := grabBanner(conn, 2*time.Second)
		if bannerErr == nil && banner != "" {
			result["banner"] = banner
		} else if bannerErr != nil {
			result["banner_error"] = bannerErr.Error()
		}
	}

	return result, nil
}

func grabBanner(conn net.Conn, readTimeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return "", err
	}

	buffer := make([]byte, 1024)
	n, err := conn.Read(buffer)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(buffer[:n])), nil
}

func portFromTarget(target string) int {
	if _, portStr, err := net.SplitHostPort(stripScheme(target)); err == nil {
		if port, ok := parsePort(portStr); ok {
			return port
		}
	}
	return 0
}

func extractHost(target string) string {
	target = stripScheme(target)
	host, _, err := net.SplitHostPort(target)
	if err != nil {
		return target
	}
	return host
}

func stripScheme(target string) string {
	if _, rest, ok := strings.Cut(target, "://"); ok {
		return strings.TrimSuffix(rest, "/")
	}
	return target
}

var schemePorts = map[string]int{
	"https":    443,
	"http":     80,
	"ftp":      21,
	"ssh":      22,
	"smtp":     25,
	"pop3":     110,
	"imap":     143,
	"mysql":    3306,
	"postgres": 5432,
	"redis":    6379,
}

func defaultPort(target string) int {
	if scheme, _, ok := strings.Cut(target, "://"); ok {
		if port, found := schemePorts[strings.ToLower(scheme)]; found {
			return port
		}
	}
	return 80
}
