package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// decodeStrict decodes a JSON or YAML document (by file extension) into v,
// rejecting unknown fields and trailing data.
func decodeStrict(path string, data []byte, v any) error {
	jb, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s (%s): %w", path, format, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("%s: invalid config: trailing data", path)
		}
		return err
	}
	return nil
}

// LoadFile reads, decodes, defaults and validates the config at path.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(path, b)
}

// Decode is LoadFile for in-memory data; path only selects the format.
func Decode(path string, data []byte) (*Config, error) {
	var cfg Config
	if err := decodeStrict(path, data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type schedulesFile struct {
	Schedules map[string]ScheduleConfig `json:"schedules"`
}

// LoadSchedulesFile reads a standalone file with a top-level schedules key.
// Its entries replace the schedules of the main config.
func LoadSchedulesFile(path string) (map[string]ScheduleConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f schedulesFile
	if err := decodeStrict(path, b, &f); err != nil {
		return nil, err
	}
	if f.Schedules == nil {
		return nil, fmt.Errorf("%s: missing top-level 'schedules' key", path)
	}
	return f.Schedules, nil
}
