// Package config loads the optional validation policy for link-registry
// checks. The policy is a small YAML file resolved from the usual
// per-user configuration directory; when absent, defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "linkreg"
	policyFile = "policy.yaml"
)

// Policy represents the validation policy file.
type Policy struct {
	// AllowedSchemes lists the URL schemes entry targets may use.
	AllowedSchemes []string `yaml:"allowed_schemes"`
	// AllowDuplicateTargets suppresses the warning for two labels
	// pointing at the same URL.
	AllowDuplicateTargets bool `yaml:"allow_duplicate_targets"`
	// MaxLabelLength rejects labels longer than this many characters.
	// Zero means no limit.
	MaxLabelLength int `yaml:"max_label_length"`
}

// Default returns the policy used when no policy file exists.
func Default() *Policy {
	return &Policy{
		AllowedSchemes:        []string{"http", "https"},
		AllowDuplicateTargets: true,
	}
}

// SchemeAllowed reports whether the policy permits the given URL scheme.
func (p *Policy) SchemeAllowed(scheme string) bool {
	for _, s := range p.AllowedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// GetConfigDir returns the OS-appropriate configuration directory for the
// application:
//   - Linux: $XDG_CONFIG_HOME/linkreg or $HOME/.config/linkreg
//   - macOS: $HOME/.config/linkreg (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\linkreg
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// Load loads the policy from the given path. An empty path falls back to
// the policy file in the configuration directory; a missing file yields
// the default policy.
func Load(path string) (*Policy, error) {
	if path == "" {
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(configDir, policyFile)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	policy := Default()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	return policy, nil
}
