package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 7.0, cfg.Attribution.HalfLifeDays)
	assert.Equal(t, 0.4, cfg.Attribution.FirstWeight)
	assert.Equal(t, 0.4, cfg.Attribution.LastWeight)
	assert.Equal(t, 100, cfg.Attribution.BatchSize)
	assert.Equal(t, 1.0, cfg.MMM.Regularization)
	assert.Equal(t, 2000, cfg.Optimizer.MaxEvaluations)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lumetric.yaml")
	body := `
attribution:
  half_life_days: 14
  batch_size: 25
storage:
  postgres_dsn: "postgres://localhost/lumetric?sslmode=disable"
metrics:
  listen_addr: ":9191"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 14.0, cfg.Attribution.HalfLifeDays)
	assert.Equal(t, 25, cfg.Attribution.BatchSize)
	assert.Equal(t, "postgres://localhost/lumetric?sslmode=disable", cfg.Storage.PostgresDSN)
	assert.Equal(t, ":9191", cfg.Metrics.ListenAddr)

	// untouched fields keep their defaults
	assert.Equal(t, 0.4, cfg.Attribution.FirstWeight)
	assert.Equal(t, 1e-6, cfg.Optimizer.Tolerance)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"zero half-life":   "attribution:\n  half_life_days: 0\n",
		"weights sum >= 1": "attribution:\n  first_weight: 0.6\n  last_weight: 0.5\n",
		"negative lambda":  "mmm:\n  regularization: -1\n",
		"zero tolerance":   "optimizer:\n  tolerance: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Storage.RedisAddr = "localhost:6379"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEngineAndSolverMapping(t *testing.T) {
	cfg := Default()
	cfg.Attribution.HalfLifeDays = 3
	cfg.Optimizer.MaxEvaluations = 500

	eng := cfg.EngineConfig()
	assert.Equal(t, 3.0, eng.HalfLifeDays)
	require.NoError(t, eng.Validate())

	sol := cfg.SolverConfig()
	assert.Equal(t, 500, sol.MaxEvaluations)
}
