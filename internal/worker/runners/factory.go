package runner

import (
	"fmt"
)

const (
	RunnerNoop    = "noop"
	RunnerCommand = "command"
	RunnerHTTP    = "http"
	RunnerTCP     = "tcp"
	RunnerDNS     = "dns"
)

type Factory struct {
	noopRunner    *NoopRunner
	commandRunner *CommandRunner
	httpRunner    *HTTPRunner
	tcpRunner     *TCPRunner
	dnsRunner     *DNSRunner
}

// NewFactory принимает nil для выключенных раннеров
func NewFactory(noop *NoopRunner, command *CommandRunner, http *HTTPRunner, tcp *TCPRunner, dns *DNSRunner) *Factory {
	if noop == nil {
		noop = NewNoopRunner()
	}

	return &Factory{
		noopRunner:    noop,
		commandRunner: command,
		httpRunner:    http,
		tcpRunner:     tcp,
		dnsRunner:     dns,
	}
}

// GetRunner выбирает раннер по parameters.runner; пустое имя - noop
func (f *Factory) GetRunner(name string) (Runner, error) {
	switch name {
	case "", RunnerNoop:
		return f.noopRunner, nil
	case RunnerCommand:
		if f.commandRunner != nil {
			return f.commandRunner, nil
		}
	case RunnerHTTP:
		if f.httpRunner != nil {
			return f.httpRunner, nil
		}
	case RunnerTCP:
		if f.tcpRunner != nil {
			return f.tcpRunner, nil
		}
	case RunnerDNS:
		if f.dnsRunner != nil {
			return f.dnsRunner, nil
		}
	default:
		return nil, fmt.Errorf("unknown runner: %s", name)
	}

	return nil, fmt.Errorf("runner %s is disabled on this worker", name)
}
