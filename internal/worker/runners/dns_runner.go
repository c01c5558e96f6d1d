package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

type DNSRunner struct {
	server  string
	timeout time.Duration
}

func NewDNSRunner(server string) *DNSRunner {
	if server == "" {
		server = "8.8.8.8:53"
	}

	return &DNSRunner{
		server:  server,
		timeout: time.Second * 10,
	}
}

func (r *DNSRunner) Execute(ctx context.Context, target string, options map[string]any) (map[string]any, error) {
	name := getStringOption(options, "name", target)
	if name == "" {
		return nil, errors.New("name to resolve is required")
	}

	recordType := strings.ToUpper(getStringOption(options, "record_type", "A"))
	server := getStringOption(options, "server", r.server)
	timeout := getDurationOption(options, "timeout", r.timeout)

	qtype, ok := dns.StringToType[recordType]
	if !ok {
		return nil, fmt.Errorf("unsupported record type: %s", recordType)
	}

	client := &dns.Client{
		Timeout: timeout,
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)

	response, rtt, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("DNS query failed: %w", err)
	}

	records := make([]string, 0, len(response.Answer))
	for _, answer := range response.Answer {
		records = append(records, answer.String())
	}

	result := map[string]any{
		"records":       records,
		"server":        server,
		"response_time": rtt.Milliseconds(),
		"answer_count":  len(response.Answer),
		"record_type":   recordType,
		"rcode":         dns.RcodeToString[response.Rcode],
	}

	if ttl := extractMinTTL(response.Answer); ttl > 0 {
		result["ttl"] = ttl
	}

	exitCode := 0
	if response.Rcode != dns.RcodeSuccess || len(records) == 0 {
		exitCode = 1
	}
	result["exit_code"] = exitCode
	result["output"] = strings.Join(records, "\n")
	if exitCode != 0 {
		result["output"] = fmt.Sprintf("%s %s: %s, %d records", name, recordType, dns.RcodeToString[response.Rcode], len(records))
	}

	return result, nil
}

func extractMinTTL(answers []dns.RR) uint32 {
	if len(answers) == 0 {
		return 0
	}

	minTTL := answers[0].Header().Ttl
	for _, answer := range answers[1:] {
		if answer.Header().Ttl < minTTL {
			minTTL = answer.Header().Ttl
		}
	}
	return minTTL
}
