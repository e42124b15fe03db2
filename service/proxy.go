package service

import (
	"context"
	"log/slog"

	"postkeeper/app/config"
	"postkeeper/app/proxy"
)

// RunProxyServer serves the pass-through API until ctx is cancelled.
func RunProxyServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	client, err := proxy.NewClient(cfg.Proxy.Upstream, cfg.Proxy.Timeout)
	if err != nil {
		return err
	}
	e := proxy.New(client, logger)

	logger.Info("starting proxy", "addr", cfg.Proxy.Addr, "upstream", cfg.Proxy.Upstream)
	return serveUntilDone(ctx, logger, e, func() error {
		return e.Start(cfg.Proxy.Addr)
	})
}

// Proxy is the entry point of the proxy command.
func Proxy(args []string) int {
	return runWithConfig("proxy", args, RunProxyServer)
}
