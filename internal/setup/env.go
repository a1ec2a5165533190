package setup

import (
	"fmt"
	"os"

	"github.com/subosito/gotenv"
)

// Secret variables the workflow commands expect from a .env file.
const (
	EIAAPIKeyVar  = "EIA_API_KEY"
	CEMSAPIKeyVar = "CEMS_API_KEY"
)

// LoadDotenv reads a .env file and returns its variables without touching
// the process environment. A missing file yields an empty map: the secrets
// are only needed by targets that declare them.
func LoadDotenv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			getLogger().Debug("no .env file found", "path", path)
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	vars, err := gotenv.StrictParse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	getLogger().Debug("loaded .env file", "path", path, "variables", len(vars))
	return vars, nil
}
