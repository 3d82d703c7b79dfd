// Package credentials loads embedding provider API keys from standard locations.
//
// A credentials file is TOML with one table per provider:
//
//	[openai]
//	api_key = "sk-..."
//
//	[google]
//	api_key = "..."
//
// A generic [embedding] table is used when no provider table matches. The file
// must be owner read-only (0400). Keys missing from the file fall back to the
// provider's environment variable.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInsecurePermissions is returned when the credentials file is readable or
// writable by anyone but the owner.
var ErrInsecurePermissions = errors.New("credentials file has insecure permissions")

// genericSection names the table used when no provider table matches.
const genericSection = "embedding"

// Credentials holds API keys loaded from credentials.toml.
type Credentials struct {
	generic string
	keys    map[string]string
}

// StandardPaths returns the credential file locations in priority order.
func StandardPaths() []string {
	paths := []string{"credentials.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "skillmatch", "credentials.toml"),
			filepath.Join(home, ".skillmatch", "credentials.toml"),
		)
	}
	return paths
}

// Load loads credentials from the first standard location that exists.
// A missing file is not an error: both return values are then empty.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		creds, err := LoadFile(path)
		if err != nil {
			return nil, path, err
		}
		return creds, path, nil
	}
	return nil, "", nil
}

// LoadFile loads credentials from a specific file.
// Returns ErrInsecurePermissions if the file mode is not 0400.
func LoadFile(path string) (*Credentials, error) {
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if mode := info.Mode().Perm(); mode != 0400 {
			return nil, fmt.Errorf("%w: %s has mode %04o (must be 0400)",
				ErrInsecurePermissions, path, mode)
		}
	}

	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	creds := &Credentials{keys: make(map[string]string)}
	for name, value := range raw {
		section, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		key, _ := section["api_key"].(string)
		if key == "" {
			continue
		}
		if name == genericSection {
			creds.generic = key
			continue
		}
		creds.keys[normalize(name)] = key
	}
	return creds, nil
}

// GetAPIKey returns the API key for a provider.
// Priority: [provider] table, then [embedding] table, then environment.
func (c *Credentials) GetAPIKey(provider string) string {
	if c != nil {
		if key := c.keys[normalize(provider)]; key != "" {
			return key
		}
		if c.generic != "" {
			return c.generic
		}
	}
	return os.Getenv(EnvVar(provider))
}

// EnvVar returns the environment variable consulted for a provider's key.
func EnvVar(provider string) string {
	switch normalize(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "google", "gemini":
		return "GOOGLE_API_KEY"
	default:
		return strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
	}
}

func normalize(provider string) string {
	return strings.ToLower(strings.ReplaceAll(provider, "-", ""))
}
