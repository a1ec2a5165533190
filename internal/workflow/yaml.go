package workflow

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed embedded/workflow.yaml
var defaultWorkflow []byte

// Decode reads a workflow declaration from YAML.
func Decode(r io.Reader) (Workflow, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var w Workflow
	if err := decoder.Decode(&w); err != nil {
		return Workflow{}, fmt.Errorf("decode workflow: %w", err)
	}
	return w, nil
}

// Load reads a workflow declaration from a file, falling back to the
// embedded default when path is empty.
func Load(path string) (Workflow, error) {
	if path == "" {
		return Decode(bytes.NewReader(defaultWorkflow))
	}
	file, err := os.Open(path)
	if err != nil {
		return Workflow{}, fmt.Errorf("open workflow file: %w", err)
	}
	defer file.Close()
	return Decode(file)
}
