package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nzcore-project/nzcore/internal/appctx"
	"github.com/nzcore-project/nzcore/internal/kademlia"
	"github.com/nzcore-project/nzcore/internal/nodeconfig"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to nzcore.yaml (optional)")
	envDir := flag.String("env-dir", "env", "directory holding the node's persisted identity/trust state")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nzcore-node version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := nodeconfig.LoadFromPath(*configPath)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var password []byte
	if v := os.Getenv("NZCORE_MASTER_PASSWORD"); v != "" {
		password = []byte(v)
	}

	ac, err := appctx.New(appctx.Options{
		EnvDir:   *envDir,
		Password: password,
		Cfg:      cfg,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("nzcore-node failed to initialize: %v", err)
	}
	defer ac.Close()

	logger.Info("nzcore-node.starting", "node_id", ac.NodeID.String(), "api_host", cfg.API.Host, "api_port", cfg.API.Port)

	go refreshLoop(ctx, ac)

	<-ctx.Done()
	logger.Info("nzcore-node.stopping")
}

// refreshLoop runs the Kademlia stale-bucket refresh task on its own
// cadence until ctx is cancelled.
func refreshLoop(ctx context.Context, ac *appctx.AppContext) {
	ticker := time.NewTicker(kademlia.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ac.Kademlia.RefreshStaleBuckets(ctx); err != nil {
				ac.Logger.Warn("kademlia.refresh.failed", "error", err.Error())
			}
		}
	}
}
