package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/blueprint/internal/inspect"
	"github.com/vango-dev/blueprint/internal/metrics"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve plans, ownership and metrics over HTTP",
		Long: `Start a read-only inspection server.

Endpoints:
  GET /healthz
  GET /metrics
  GET /repositories
  GET /repositories/{title}/plan[?format=text][&all=true]
  GET /repositories/{title}/ownership

Examples:
  blueprint serve
  blueprint serve --addr=:9464`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = s.cfg.Serve.Addr
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			bp, err := s.blueprint(ctx, metrics.New(metrics.WithRegistry(registry)))
			if err != nil {
				return err
			}

			srv := inspect.New(bp, inspect.Options{Logger: s.logger, Registry: registry})
			success("Serving %s on http://%s", s.cfg.Name, addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from blueprint.json)")

	return cmd
}
