// Command board serves the note board the players of a match post to.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/mental-arena/config"
	"github.com/luca-patrignani/mental-arena/network"
)

func main() {
	handler := pterm.NewSlogHandler(&pterm.DefaultLogger)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	cfg, err := config.LoadBoard()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("board stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Board, logger *slog.Logger) error {
	opts := []network.ServerOption{network.WithServerLogger(logger)}
	if cfg.TLS {
		cert, pem, err := network.GenerateSelfSignedCert(cfg.PublicAddr)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.CertFile, pem, 0o644); err != nil {
			return err
		}
		logger.Info("certificate written, share it with the players as ARENA_CA_FILE", "file", cfg.CertFile)
		opts = append(opts, network.WithCertificate(cert))
	}
	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := network.NewServer(network.NewBoard(), opts...)

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(l)
	}()
	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	if err := srv.Close(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-served
}
