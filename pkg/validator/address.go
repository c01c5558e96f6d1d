package validator

import (
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Точечная запись IPv4, без CIDR и портов
var ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

func ValidateIPv4(address string) bool {
	return ipv4Pattern.MatchString(address)
}

// ValidateTarget проверяет цель для раннеров воркера: host:port, http(s) ссылку или голое имя
func ValidateTarget(target string) bool {
	if target == "" || strings.ContainsAny(target, " \t\r\n") {
		return false
	}

	// SplitHostPort режет по последнему двоеточию, поэтому схему разбираем раньше
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != ""
	}

	if host, port, err := net.SplitHostPort(target); err == nil {
		n, err := strconv.Atoi(port)
		return host != "" && err == nil && n > 0 && n <= 65535
	}

	return net.ParseIP(target) != nil || !strings.Contains(target, ":")
}
