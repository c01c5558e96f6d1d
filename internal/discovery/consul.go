package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	consul "github.com/hashicorp/consul/api"
)

var ErrNoHealthyService = errors.New("no healthy service instances found")

// Registry регистрирует backend в Consul и находит его для воркеров
type Registry struct {
	client *consul.Client
}

func NewRegistry(addr string) (*Registry, error) {
	config := consul.DefaultConfig()
	config.Address = addr

	client, err := consul.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	return &Registry{client: client}, nil
}

// Register публикует сервис с HTTP проверкой /health
func (r *Registry) Register(serviceName, address string, port int) (string, error) {
	if address == "" {
		address = LocalIP()
	}

	id := fmt.Sprintf("%s-%s-%d", serviceName, address, port)
	registration := &consul.AgentServiceRegistration{
		ID:      id,
		Name:    serviceName,
		Port:    port,
		Address: address,
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s/health", net.JoinHostPort(address, strconv.Itoa(port))),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
		Tags: []string{"http", "metrics"},
	}

	if err := r.client.Agent().ServiceRegister(registration); err != nil {
		return "", fmt.Errorf("register %s: %w", serviceName, err)
	}
	return id, nil
}

func (r *Registry) Deregister(id string) error {
	return r.client.Agent().ServiceDeregister(id)
}

// Discover возвращает URL первого здорового экземпляра сервиса
func (r *Registry) Discover(serviceName string) (string, error) {
	services, _, err := r.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("query consul: %w", err)
	}

	if len(services) == 0 {
		return "", ErrNoHealthyService
	}

	service := services[0]
	addr := service.Service.Address
	if addr == "" {
		addr = service.Node.Address
	}

	return "http://" + net.JoinHostPort(addr, strconv.Itoa(service.Service.Port)), nil
}

// LocalIP - первый не loopback IPv4 адрес хоста
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}

	return "127.0.0.1"
}
