package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openalpha/disorderbook/internal/api"
	"github.com/openalpha/disorderbook/internal/matching"
	"github.com/openalpha/disorderbook/internal/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		logLevel string
		symbols  []string
	)

	cmd := &cobra.Command{
		Use:   "disorderbookd",
		Short: "Run the price-time-priority matching engine's HTTP server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
				Level(level).
				With().Timestamp().Logger()

			m := metrics.NewMetrics(prometheus.DefaultRegisterer)
			registry := matching.NewRegistry(log, m)

			for _, pair := range symbols {
				venue, symbol, ok := strings.Cut(pair, ":")
				if !ok {
					return fmt.Errorf("--symbol must be venue:SYMBOL, got %q", pair)
				}
				registry.BookFor(venue, symbol)
				log.Info().Str("venue", venue).Str("symbol", symbol).Msg("pre-warmed book")
			}

			srv := api.NewServer(registry, m, log)
			log.Info().Str("addr", addr).Msg("listening")
			return http.ListenAndServe(addr, srv.Handler())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "zerolog level (debug, info, warn, error)")
	cmd.Flags().StringArrayVar(&symbols, "symbol", nil, "venue:SYMBOL pair to pre-warm in the registry; may be repeated")

	return cmd
}
