// Package secrets implements the SecretStore against process
// environment variables, loaded once at startup via godotenv the same way
// config does.
package secrets

import (
	"fmt"
	"os"
)

// EnvStore reads secrets from environment variables, each prefixed to
// avoid collisions with unrelated process env.
type EnvStore struct {
	prefix string
}

// NewEnvStore returns an EnvStore that looks up prefix+key for each Get.
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{prefix: prefix}
}

// Get implements ports.SecretStore.
func (s *EnvStore) Get(key string) (string, error) {
	v, ok := os.LookupEnv(s.prefix + key)
	if !ok || v == "" {
		return "", fmt.Errorf("secrets.Get: %s%s not set", s.prefix, key)
	}
	return v, nil
}
