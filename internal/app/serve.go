package app

import (
	"context"
	"os/signal"
	"syscall"

	"premarket-bias/internal/server"
)

// Serve runs the HTTP surface until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closeSvc, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	srv := server.New(svc, a.registry, server.Options{
		Host:            a.Config.Server.Host,
		Port:            a.Config.Server.Port,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
		DefaultModel:    a.Config.LLM.Model,
	}, a.Logger)

	return srv.Run(ctx)
}
