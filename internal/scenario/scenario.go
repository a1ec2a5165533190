// Package scenario parses and validates the model's scenario configuration.
package scenario

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const dateLayout = "2006-01-02"

// SimulationParams configure the network simulation itself.
type SimulationParams struct {
	StartDate   string `toml:"start_date"`
	EndDate     string `toml:"end_date"`
	Committable bool   `toml:"committable"`
	SetSize     int    `toml:"set_size"`
	Overlap     int    `toml:"overlap"`
}

// IOParams specify where the model reads and writes files.
type IOParams struct {
	NetworkPath  string `toml:"network_path"`
	GraphsToFile bool   `toml:"graphs_to_file"`
}

// Scenario is the full configuration consumed by the dispatch model.
type Scenario struct {
	SimulationParams SimulationParams `toml:"simulation_params"`
	IOParams         IOParams         `toml:"io_params"`
}

// Start returns the parsed simulation start date.
func (s *Scenario) Start() (time.Time, error) {
	return time.Parse(dateLayout, s.SimulationParams.StartDate)
}

// End returns the parsed simulation end date.
func (s *Scenario) End() (time.Time, error) {
	return time.Parse(dateLayout, s.SimulationParams.EndDate)
}

// Load reads and validates a scenario TOML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var s Scenario
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario file %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the scenario's internal consistency.
func (s *Scenario) Validate() error {
	start, err := s.Start()
	if err != nil {
		return fmt.Errorf("simulation_params.start_date %q: expected %s", s.SimulationParams.StartDate, dateLayout)
	}
	end, err := s.End()
	if err != nil {
		return fmt.Errorf("simulation_params.end_date %q: expected %s", s.SimulationParams.EndDate, dateLayout)
	}
	if end.Before(start) {
		return fmt.Errorf("simulation_params: end_date %s precedes start_date %s", s.SimulationParams.EndDate, s.SimulationParams.StartDate)
	}

	if s.SimulationParams.SetSize < 0 {
		return fmt.Errorf("simulation_params.set_size must not be negative")
	}
	if s.SimulationParams.Overlap < 0 {
		return fmt.Errorf("simulation_params.overlap must not be negative")
	}
	// set_size zero disables chunking; overlap only applies when chunking.
	if s.SimulationParams.SetSize > 0 && s.SimulationParams.Overlap >= s.SimulationParams.SetSize {
		return fmt.Errorf("simulation_params.overlap (%d) must be smaller than set_size (%d)",
			s.SimulationParams.Overlap, s.SimulationParams.SetSize)
	}

	if s.IOParams.NetworkPath == "" {
		return fmt.Errorf("io_params.network_path is required")
	}
	return nil
}
