package dataverse

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Mapping связывает JSON поля модели с колонками таблицы Dataverse
type Mapping struct {
	Entity string
	Fields map[string]string
}

var MachineMapping = Mapping{
	Entity: "ac_machines",
	Fields: map[string]string{
		"id":            "ac_machineid",
		"name":          "ac_name",
		"status":        "ac_status",
		"ip_address":    "ac_ipaddress",
		"last_seen":     "ac_lastseen",
		"description":   "ac_description",
		"process_count": "ac_processcount",
		"cpu_usage":     "ac_cpuusage",
		"memory_usage":  "ac_memoryusage",
	},
}

var ProcessMapping = Mapping{
	Entity: "ac_processes",
	Fields: map[string]string{
		"id":          "ac_processid",
		"name":        "ac_name",
		"status":      "ac_status",
		"machine_id":  "ac_machineid",
		"start_time":  "ac_starttime",
		"end_time":    "ac_endtime",
		"duration":    "ac_duration",
		"description": "ac_description",
		"type":        "ac_type",
	},
}

// ToDataverse переименовывает известные поля; остальные отбрасываются
func (m Mapping) ToDataverse(data map[string]any) map[string]any {
	out := make(map[string]any, len(m.Fields))
	for field, column := range m.Fields {
		if value, ok := data[field]; ok {
			out[column] = value
		}
	}
	return out
}

func (m Mapping) FromDataverse(record map[string]any) map[string]any {
	out := make(map[string]any, len(m.Fields))
	for field, column := range m.Fields {
		if value, ok := record[column]; ok && value != nil {
			out[field] = value
		}
	}
	return out
}

// Key - колонка с идентификатором записи
func (m Mapping) Key() string {
	return m.Fields["id"]
}

// KeyFilter строит OData $filter по идентификатору
func (m Mapping) KeyFilter(id string) string {
	return fmt.Sprintf("%s eq '%s'", m.Key(), strings.ReplaceAll(id, "'", "''"))
}

// Columns возвращает колонки для $select в алфавитном порядке
func (m Mapping) Columns() []string {
	return slices.Sorted(maps.Values(m.Fields))
}

// Encode переводит модель в запись Dataverse через ее JSON представление
func Encode(m Mapping, model any) (map[string]any, error) {
	raw, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.Entity, err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", m.Entity, err)
	}
	return m.ToDataverse(data), nil
}

// Decode заполняет модель out из записи Dataverse
func Decode(m Mapping, record map[string]any, out any) error {
	raw, err := json.Marshal(m.FromDataverse(record))
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", m.Entity, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s record: %w", m.Entity, err)
	}
	return nil
}
