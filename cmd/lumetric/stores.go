package main

import (
	"github.com/rs/zerolog/log"

	"github.com/lumetric/lumetric/internal/config"
	"github.com/lumetric/lumetric/internal/persistence"
	"github.com/lumetric/lumetric/internal/persistence/memory"
	"github.com/lumetric/lumetric/internal/persistence/postgres"
)

// storeSet is the repository bundle both backends expose
type storeSet interface {
	Touchpoints() persistence.TouchpointRepo
	Conversions() persistence.ConversionRepo
	Attributions() persistence.AttributionRepo
	Series() persistence.SeriesRepo
	Models() persistence.ModelRepo
	Optimizations() persistence.OptimizationRepo
}

// openStore picks PostgreSQL when a DSN is configured, otherwise the
// in-memory store. The returned closer is safe to call on either.
func openStore(cfg *config.Config) (storeSet, func() error, error) {
	if cfg.Storage.PostgresDSN == "" {
		log.Warn().Msg("no postgres DSN configured, using in-memory store")
		return memory.NewStore(), func() error { return nil }, nil
	}

	pg, err := postgres.NewStore(postgres.DefaultConfig(cfg.Storage.PostgresDSN))
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msg("connected to postgres")
	return pg, pg.Close, nil
}
