// Package apikey implements the cloud-provider API-key resolution order:
// explicit override, platform secure store, a per-provider file under the
// app's config directory, then an environment variable. A resolved key is
// only accepted once trimmed and at least 10 characters long.
package apikey

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/clipindex/internal/platform/logger"
)

const minKeyLen = 10

// SecureStore looks up a provider's key from a platform-managed secret
// store scoped to the signed-in user (e.g. a subscription-issued key held
// in Keychain/Credential Manager). No such store has a portable Go API, so
// the default resolver never supplies one; a host embedding this in an
// environment with one can plug it in via WithSecureStore.
type SecureStore func(provider string) (string, bool)

func noSecureStore(string) (string, bool) { return "", false }

type Resolver struct {
	appName     string
	configDir   string
	secureStore SecureStore
	log         *logger.Logger
}

func New(appName, configDir string, log *logger.Logger) *Resolver {
	return &Resolver{appName: appName, configDir: configDir, secureStore: noSecureStore, log: log.With("component", "APIKeyResolver")}
}

func (r *Resolver) WithSecureStore(s SecureStore) *Resolver {
	if s != nil {
		r.secureStore = s
	}
	return r
}

// Resolve walks the order for one provider ("openai", "google", ...):
// override, secure store, ~/.config/<AppName>/<provider>-api-key.txt, then
// envVar. It returns ok=false if nothing in the chain yields a valid key.
func (r *Resolver) Resolve(provider, envVar, override string) (string, bool) {
	if k, ok := valid(override); ok {
		return k, true
	}
	if raw, found := r.secureStore(provider); found {
		if k, ok := valid(raw); ok {
			return k, true
		}
	}
	if path := r.keyFilePath(provider); path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			if k, ok := valid(string(raw)); ok {
				return k, true
			}
		} else if !os.IsNotExist(err) {
			r.log.Warn("api key file unreadable", "provider", provider, "path", path, "err", err)
		}
	}
	if k, ok := valid(os.Getenv(envVar)); ok {
		return k, true
	}
	return "", false
}

func (r *Resolver) keyFilePath(provider string) string {
	dir := r.configDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config", r.appName)
	}
	return filepath.Join(dir, provider+"-api-key.txt")
}

func valid(raw string) (string, bool) {
	k := strings.TrimSpace(raw)
	if len(k) < minKeyLen {
		return "", false
	}
	return k, true
}
