package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/loginkit/pkg/config"
)

type testConfig struct {
	Host string `env:"LOGINKIT_TEST_HOST" envDefault:"localhost"`
	Port int    `env:"LOGINKIT_TEST_PORT" envDefault:"8080"`
}

type overrideConfig struct {
	Value string `env:"LOGINKIT_TEST_VALUE" envDefault:"fallback"`
}

func TestLoadDefaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LOGINKIT_TEST_VALUE", "from-env")

	var cfg overrideConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "from-env", cfg.Value)
}

func TestLoadCachesPerType(t *testing.T) {
	var first testConfig
	require.NoError(t, config.Load(&first))

	// A changed environment must not affect an already-loaded type.
	t.Setenv("LOGINKIT_TEST_HOST", "changed")

	var second testConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, first, second)
}

func TestLoadNilPointer(t *testing.T) {
	var cfg *testConfig
	err := config.Load(cfg)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}
