// Package testfixture loads golden YAML fixtures describing the expected
// metadata of a synthetic ABF recording, for use in table-driven tests.
package testfixture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Channel is one expected channel's metadata.
type Channel struct {
	Name  string `yaml:"name"`
	Units string `yaml:"units"`
}

// Recording is the expected shape of a parsed Recording, used to check a
// package-under-test's Open result without hardcoding values in Go source.
type Recording struct {
	Dialect         string    `yaml:"dialect"`
	SampleRateHz    float64   `yaml:"sample_rate_hz"`
	ChannelCount    int       `yaml:"channel_count"`
	SweepCount      int       `yaml:"sweep_count"`
	SweepPointCount int       `yaml:"sweep_point_count"`
	Channels        []Channel `yaml:"channels"`
}

// Load reads and parses a Recording fixture from path.
func Load(path string) (*Recording, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testfixture: reading %s: %w", path, err)
	}
	var rec Recording
	if err := yaml.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("testfixture: parsing %s: %w", path, err)
	}
	return &rec, nil
}
