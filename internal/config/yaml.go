package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML layout accepted by ImportYAML.
type File struct {
	Source      *ConnectionConfig `yaml:"source"`
	Destination *ConnectionConfig `yaml:"destination"`
}

// ReadFile parses a YAML configuration file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if f.Source == nil && f.Destination == nil {
		return nil, fmt.Errorf("config file %s defines neither source nor destination", path)
	}
	return &f, nil
}

// ImportYAML saves every side present in the file and returns the sides written.
func (s *Store) ImportYAML(path string) ([]Side, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	var written []Side
	if f.Source != nil {
		if err := s.Save(Source, *f.Source); err != nil {
			return written, err
		}
		written = append(written, Source)
	}
	if f.Destination != nil {
		if err := s.Save(Destination, *f.Destination); err != nil {
			return written, err
		}
		written = append(written, Destination)
	}
	return written, nil
}
