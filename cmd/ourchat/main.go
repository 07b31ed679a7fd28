package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ourchat/ourchat-client/internal/client"
	"github.com/ourchat/ourchat-client/internal/config"
	"github.com/ourchat/ourchat-client/internal/logging"
	"github.com/ourchat/ourchat-client/internal/proto"
)

// tickInterval matches the short fixed cadence the desktop UI drives Tick at.
const tickInterval = 25 * time.Millisecond

// consoleNotifier stands in for the UI notification sink when running
// headless.
type consoleNotifier struct {
	log *zap.Logger
}

func (n consoleNotifier) Notify(kind, message string) {
	n.log.Warn("notice", zap.String("kind", kind), zap.String("message", message))
}

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Advanced.LogLevel)
	defer func() { _ = log.Sync() }()

	cl, err := client.New(cfg, consoleNotifier{log: log}, log)
	if err != nil {
		log.Fatal("client init failed", zap.Error(err))
	}

	cl.Listen(proto.CodeConnectionStatus, func(ev proto.Event) {
		cs := ev.(proto.ConnectionStatus)
		log.Info("connection status", zap.Stringer("status", cs.Status), zap.String("err", cs.Err))
	})

	if err := cl.Connect(); err != nil {
		log.Warn("initial connect failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Info("client started",
		zap.String("server", cfg.Server.IP),
		zap.Int("port", cfg.Server.Port))

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			if err := cl.Close(); err != nil {
				log.Warn("shutdown", zap.Error(err))
			}
			return
		case <-ticker.C:
			cl.Tick()
		}
	}
}
