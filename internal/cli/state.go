package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultServer is used when neither a flag nor the state file names one.
const DefaultServer = "http://localhost:3095"

// State is what boardctl remembers between invocations.
type State struct {
	Server       string `yaml:"server,omitempty"`
	Email        string `yaml:"email,omitempty"`
	AccessToken  string `yaml:"accessToken,omitempty"`
	RefreshToken string `yaml:"refreshToken,omitempty"`
	PageNum      int    `yaml:"pageNum,omitempty"`
	PerPage      int    `yaml:"perPage,omitempty"`
	// Sort uses the query form, for example "email:asc,nickname:desc".
	Sort string `yaml:"sort,omitempty"`
}

// DefaultStatePath returns the state file under the user config directory.
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".boardctl.yaml"
	}
	return filepath.Join(dir, "boardctl", "state.yaml")
}

// LoadState reads the state file. A missing file yields an empty state.
func LoadState(path string) (*State, error) {
	st := &State{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return st, nil
}

// Save writes the state file, readable by the owner only since it holds
// tokens.
func (s *State) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// ClearTokens forgets the login.
func (s *State) ClearTokens() {
	s.Email = ""
	s.AccessToken = ""
	s.RefreshToken = ""
}
