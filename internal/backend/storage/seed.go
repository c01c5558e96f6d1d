package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"Orchestrator/internal/backend/models"

	"gopkg.in/yaml.v3"
)

//go:embed seed/fleet.yaml
var defaultSeed []byte

type seedFile struct {
	Machines  []seedMachine `yaml:"machines"`
	Processes []seedProcess `yaml:"processes"`
	Agents    []seedAgent   `yaml:"agents"`
}

type seedMachine struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Status       string        `yaml:"status"`
	IPAddress    string        `yaml:"ip_address"`
	LastSeenAgo  time.Duration `yaml:"last_seen_ago"`
	Description  string        `yaml:"description"`
	ProcessCount int           `yaml:"process_count"`
	CPUUsage     float64       `yaml:"cpu_usage"`
	MemoryUsage  float64       `yaml:"memory_usage"`
}

type seedProcess struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Status      string         `yaml:"status"`
	MachineID   string         `yaml:"machine_id"`
	StartIn     time.Duration  `yaml:"start_in"`
	EndIn       *time.Duration `yaml:"end_in"`
	Duration    string         `yaml:"duration"`
	Description string         `yaml:"description"`
	Type        string         `yaml:"type"`
}

type seedAgent struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	Status        string         `yaml:"status"`
	Version       string         `yaml:"version"`
	Type          string         `yaml:"type"`
	MachineIDs    []string       `yaml:"machine_ids"`
	UpdatedAgo    time.Duration  `yaml:"updated_ago"`
	Description   string         `yaml:"description"`
	Configuration map[string]any `yaml:"configuration"`
}

// LoadSeed читает фикстуру из файла; пустой путь - встроенный демо-парк
func LoadSeed(path string) ([]byte, error) {
	if path == "" {
		return defaultSeed, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return data, nil
}

// Seed загружает фикстуру; уже существующие записи пропускаются
func Seed(ctx context.Context, stores *Stores, data []byte, now time.Time, log *slog.Logger) error {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse seed: %w", err)
	}

	// created_at растет на миллисекунду, чтобы сохранить порядок фикстуры
	order := 0
	created := func() time.Time {
		order++
		return now.Add(-time.Hour).Add(time.Duration(order) * time.Millisecond)
	}

	var count int
	for _, m := range file.Machines {
		machine := &models.Machine{
			ID:           m.ID,
			Name:         m.Name,
			Status:       models.MachineStatus(m.Status),
			IPAddress:    m.IPAddress,
			LastSeen:     now.Add(-m.LastSeenAgo),
			Description:  m.Description,
			ProcessCount: m.ProcessCount,
			CPUUsage:     m.CPUUsage,
			MemoryUsage:  m.MemoryUsage,
			CreatedAt:    created(),
		}
		if err := skipDuplicate(stores.Machines.Create(ctx, machine)); err != nil {
			return fmt.Errorf("seed machine %s: %w", m.ID, err)
		}
		count++
	}

	for _, p := range file.Processes {
		process := &models.Process{
			ID:          p.ID,
			Name:        p.Name,
			Status:      models.ProcessStatus(p.Status),
			MachineID:   p.MachineID,
			StartTime:   now.Add(p.StartIn),
			Duration:    p.Duration,
			Description: p.Description,
			Type:        p.Type,
			CreatedAt:   created(),
		}
		if p.EndIn != nil {
			end := now.Add(*p.EndIn)
			process.EndTime = &end
		}
		if err := skipDuplicate(stores.Processes.Create(ctx, process)); err != nil {
			return fmt.Errorf("seed process %s: %w", p.ID, err)
		}
		count++
	}

	for _, a := range file.Agents {
		agent := &models.Agent{
			ID:            a.ID,
			Name:          a.Name,
			Status:        models.AgentStatus(a.Status),
			Version:       a.Version,
			Type:          a.Type,
			MachineIDs:    a.MachineIDs,
			LastUpdated:   now.Add(-a.UpdatedAgo),
			Description:   a.Description,
			Configuration: a.Configuration,
			CreatedAt:     created(),
		}
		if agent.Configuration == nil {
			agent.Configuration = map[string]any{}
		}
		if err := skipDuplicate(stores.Agents.Create(ctx, agent)); err != nil {
			return fmt.Errorf("seed agent %s: %w", a.ID, err)
		}
		count++
	}

	log.Info("seed data loaded",
		"machines", len(file.Machines),
		"processes", len(file.Processes),
		"agents", len(file.Agents),
		"records", count,
	)
	return nil
}

func skipDuplicate(err error) error {
	if errors.Is(err, ErrDuplicateID) {
		return nil
	}
	return err
}
