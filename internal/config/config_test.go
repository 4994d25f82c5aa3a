package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "PROVIDER", "PROVIDER_URL", "PROVIDER_HOST", "PROVIDER_MODEL", "PORT",
		"GREETING", "SESSION_IDLE_TTL", "CREDENTIAL_STORE", "CREDENTIAL_FILE")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderRapidAPI, cfg.Provider)
	assert.Equal(t, "https://unlimited-gpt-4.p.rapidapi.com/chat/completions", cfg.ProviderURL)
	assert.Equal(t, "unlimited-gpt-4.p.rapidapi.com", cfg.ProviderHost)
	assert.Equal(t, "gpt-4o-2024-05-13", cfg.ProviderModel)
	assert.Equal(t, "Hello! How can I help you today?", cfg.Greeting)
	assert.Equal(t, 2*time.Hour, cfg.SessionIdleTTL)
	assert.Equal(t, StoreMemory, cfg.CredentialStore)
	assert.True(t, strings.HasSuffix(cfg.CredentialFile, "credential.json"))
}

func TestLoad_ProviderSpecificModel(t *testing.T) {
	unsetEnv(t, "PROVIDER_MODEL")
	t.Setenv("PROVIDER", "OpenAI")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.ProviderModel)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Provider:        ProviderRapidAPI,
			CredentialStore: StoreMemory,
			SessionSecret:   "secret",
			WorkerCount:     1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Provider = "bard" }, "unsupported PROVIDER"},
		{"domain without url", func(c *Config) { c.Provider = ProviderDomain }, "requires PROVIDER_URL"},
		{"domain complete", func(c *Config) {
			c.Provider = ProviderDomain
			c.ProviderURL = "https://example.test/chat"
			c.ProviderHost = "example.test"
		}, ""},
		{"redis without url", func(c *Config) { c.CredentialStore = StoreRedis }, "requires REDIS_URL"},
		{"unknown store", func(c *Config) { c.CredentialStore = "sqlite" }, "unsupported CREDENTIAL_STORE"},
		{"bad seal key", func(c *Config) { c.CredentialSealKey = "abc" }, "CREDENTIAL_SEAL_KEY"},
		{"missing secret", func(c *Config) { c.SessionSecret = "" }, "SESSION_SECRET"},
		{"no workers", func(c *Config) { c.WorkerCount = 0 }, "WORKER_COUNT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSealKey(t *testing.T) {
	cfg := &Config{}
	key, err := cfg.SealKey()
	require.NoError(t, err)
	assert.Nil(t, key)

	cfg.CredentialSealKey = strings.Repeat("ab", 32)
	key, err = cfg.SealKey()
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, byte(0xab), key[0])
}

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}
