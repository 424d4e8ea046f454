// Package credentials loads the Voyage API key from standard locations.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/voyagekit/errors"
)

// EnvAPIKey is the environment variable consulted when no credentials file
// provides a key.
const EnvAPIKey = "VOYAGE_API_KEY"

// ErrInsecurePermissions is returned when credentials file has overly permissive permissions.
var ErrInsecurePermissions = fmt.Errorf("credentials file has insecure permissions")

// Credentials holds API keys loaded from credentials.toml
type Credentials struct {
	Voyage *Section `toml:"voyage"`
}

// Section holds credentials for a single service
type Section struct {
	APIKey string `toml:"api_key"`
}

// StandardPaths returns the standard credential file locations in order of priority
func StandardPaths() []string {
	paths := []string{}

	// 1. Current directory
	paths = append(paths, "credentials.toml")

	if home, err := os.UserHomeDir(); err == nil {
		// 2. ~/.config/voyage/credentials.toml
		paths = append(paths, filepath.Join(home, ".config", "voyage", "credentials.toml"))
		// 3. ~/.voyage/credentials.toml
		paths = append(paths, filepath.Join(home, ".voyage", "credentials.toml"))
	}

	return paths
}

// Load loads credentials from the first available standard location.
// A missing file is not an error; Load then returns nil credentials.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil
}

// LoadFile loads credentials from a specific file.
// Returns ErrInsecurePermissions if file is readable by group or others.
func LoadFile(path string) (*Credentials, error) {
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		mode := info.Mode().Perm()
		// Credentials must be 0400 (owner read-only)
		if mode != 0400 {
			return nil, fmt.Errorf("%w: %s has mode %04o (must be 0400)",
				ErrInsecurePermissions, path, mode)
		}
	}

	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &creds, nil
}

// APIKey returns the key from the [voyage] section, falling back to the
// VOYAGE_API_KEY environment variable. Safe to call on nil.
func (c *Credentials) APIKey() string {
	if c != nil && c.Voyage != nil && c.Voyage.APIKey != "" {
		return c.Voyage.APIKey
	}
	return os.Getenv(EnvAPIKey)
}

// Resolve finds an API key. An explicit path is loaded directly; otherwise
// the standard locations are searched. The environment variable is the
// last resort. Finding no key at all is INVALID_INPUT.
func Resolve(path string) (string, error) {
	var (
		creds *Credentials
		err   error
	)
	if path != "" {
		creds, err = LoadFile(path)
	} else {
		creds, _, err = Load()
	}
	if err != nil {
		return "", err
	}

	key := creds.APIKey()
	if key == "" {
		return "", errors.InvalidInput("no API key: set " + EnvAPIKey + " or add [voyage] api_key to credentials.toml")
	}
	return key, nil
}
