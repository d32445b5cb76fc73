package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lumetric/lumetric/internal/metrics"
)

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Metrics.ListenAddr
	}

	reg := metrics.NewRegistry()
	log.Info().Str("addr", addr).Msg("metrics server starting")
	return reg.Serve(addr)
}
