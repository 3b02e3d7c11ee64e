// sampler_server serves the exact and the simulated annealing QUBO samplers over HTTP,
// speaking the same protocol as the remote sampling service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tarstars/quantum_boosting/golang/qboost/config"
	"github.com/tarstars/quantum_boosting/golang/qboost/logger"
	"github.com/tarstars/quantum_boosting/golang/qboost/qbl"
	"github.com/tarstars/quantum_boosting/golang/qboost/solverapi"
)

func main() {
	seed := flag.Int64("seed", 0, "seed of the simulated annealing sampler, 0 for the current time")
	sweeps := flag.Int("sweeps", 1000, "sweeps of one annealing read")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	samplers := map[string]qbl.Sampler{
		"exact":  qbl.ExactSolver{},
		"anneal": qbl.SimulatedAnnealingSampler{Seed: *seed, NumSweeps: *sweeps},
	}
	defaultSolver := cfg.SamplerSolver
	if _, ok := samplers[defaultSolver]; !ok {
		defaultSolver = "anneal"
	}

	handler := solverapi.NewHandler(samplers, defaultSolver, cfg.SamplerToken, log)
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:     solverapi.NewRouter(handler, log),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("default_solver", defaultSolver).Msg("Starting sampler server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server stopped")
}
