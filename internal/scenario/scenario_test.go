package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validScenarioTOML = `
[simulation_params]
start_date = "2019-01-01"
end_date = "2019-12-31"
committable = false
set_size = 48
overlap = 24

[io_params]
network_path = "networks/ercot.nc"
graphs_to_file = true
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write scenario file: %v", err)
	}
	return path
}

func TestLoadValidScenario(t *testing.T) {
	s, err := Load(writeScenario(t, validScenarioTOML))
	if err != nil {
		t.Fatalf("expected scenario to load, got: %v", err)
	}

	if s.SimulationParams.SetSize != 48 {
		t.Errorf("expected set_size 48, got %d", s.SimulationParams.SetSize)
	}
	if s.SimulationParams.Committable {
		t.Error("expected committable to be false")
	}
	if s.IOParams.NetworkPath != "networks/ercot.nc" {
		t.Errorf("unexpected network_path: %s", s.IOParams.NetworkPath)
	}

	start, err := s.Start()
	if err != nil {
		t.Fatalf("failed to parse start date: %v", err)
	}
	end, err := s.End()
	if err != nil {
		t.Fatalf("failed to parse end date: %v", err)
	}
	if !end.After(start) {
		t.Error("expected end date after start date")
	}
}

func TestLoadRejectsReversedDates(t *testing.T) {
	content := strings.Replace(validScenarioTOML, `end_date = "2019-12-31"`, `end_date = "2018-12-31"`, 1)
	if _, err := Load(writeScenario(t, content)); err == nil {
		t.Fatal("expected error for end_date before start_date")
	}
}

func TestLoadRejectsMalformedDate(t *testing.T) {
	content := strings.Replace(validScenarioTOML, `start_date = "2019-01-01"`, `start_date = "01/01/2019"`, 1)
	if _, err := Load(writeScenario(t, content)); err == nil {
		t.Fatal("expected error for malformed start_date")
	}
}

func TestLoadRejectsOverlapNotSmallerThanSetSize(t *testing.T) {
	content := strings.Replace(validScenarioTOML, "overlap = 24", "overlap = 48", 1)
	if _, err := Load(writeScenario(t, content)); err == nil {
		t.Fatal("expected error for overlap equal to set_size")
	}
}

func TestZeroSetSizeDisablesChunking(t *testing.T) {
	content := strings.Replace(validScenarioTOML, "set_size = 48", "set_size = 0", 1)
	content = strings.Replace(content, "overlap = 24", "overlap = 0", 1)
	if _, err := Load(writeScenario(t, content)); err != nil {
		t.Fatalf("expected set_size 0 to be accepted, got: %v", err)
	}
}

func TestLoadRejectsMissingNetworkPath(t *testing.T) {
	content := strings.Replace(validScenarioTOML, `network_path = "networks/ercot.nc"`, `network_path = ""`, 1)
	if _, err := Load(writeScenario(t, content)); err == nil {
		t.Fatal("expected error for empty network_path")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
