package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"purrbin/cfg"
	"purrbin/svc/api"
	"purrbin/svc/cache"
	"purrbin/svc/store"
	"purrbin/svc/svc"
	"purrbin/svc/util"
	"syscall"
	"time"
)

const staleTempAge = time.Hour

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-health" {
		os.Exit(healthCheck())
	}
	util.InitLog("info", false)

	if err := cfg.LoadEnvFile(envFile()); err != nil {
		util.Fatal().Err(err).Msg("failed to load env file")
		os.Exit(1)
	}
	c, err := cfg.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.ApplyFlags(c, os.Args[1:]); err != nil {
		util.Fatal().Err(err).Msg("invalid command line")
		os.Exit(1)
	}
	util.InitLog(c.LogLevel, c.Environment == "development")
	if err := cfg.Validate(c); err != nil {
		util.Fatal().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	defer c.Wipe()
	util.Info().Msg("starting purrbin")

	fs, err := store.NewFS(c.StorageDir)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to open storage directory")
		os.Exit(1)
	}
	fs.SetSync(c.SyncWrites)
	if n, err := fs.SweepTemp(staleTempAge); err != nil {
		util.Warn().Err(err).Msg("temp file sweep failed")
	} else if n > 0 {
		util.Info().Int("removed", n).Msg("removed stale temp files")
	}
	util.Info().Str("dir", fs.Dir()).Bool("sync", c.SyncWrites).Msg("storage initialized")

	var lruCache *cache.LRU
	if c.CacheSize > 0 {
		lruCache, err = cache.NewLRU(c.CacheSize, c.MaxPasteSize)
		if err != nil {
			util.Fatal().Err(err).Msg("failed to create LRU cache")
			os.Exit(1)
		}
		util.Info().Int("size", c.CacheSize).Msg("LRU cache initialized")
	}

	committer := svc.NewCommitter(fs, util.NewSlugGenerator(), c.Domain, c.SlugLength,
		c.CollisionPolicy == cfg.CollisionOverwrite)
	pasteSvc := svc.NewPaste(fs, lruCache, committer, c)
	util.Info().
		Int("slug_length", c.SlugLength).
		Int("max_paste_size", c.MaxPasteSize).
		Str("collision_policy", c.CollisionPolicy).
		Str("oversize_policy", c.OversizePolicy).
		Msg("paste service initialized")

	server := api.NewServer(c, pasteSvc)
	ln, err := net.Listen("tcp", c.Addr())
	if err != nil {
		util.Fatal().Err(err).Str("addr", c.Addr()).Msg("failed to bind")
		os.Exit(1)
	}

	util.Info().
		Str("addr", ln.Addr().String()).
		Str("domain", c.Domain).
		Str("environment", c.Environment).
		Msg("server starting")
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-serveErr:
		if err != nil {
			util.Fatal().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}
	util.Info().Msg("shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer shutdownCancel()
	pasteSvc.Shutdown(c.ShutdownTimeout)
	if err := server.Shutdown(shutdownCtx); err != nil {
		util.Error().Err(err).Msg("server shutdown error")
	}
	util.Info().Msg("Shutdown complete")
}

func envFile() string {
	if p := os.Getenv("ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}

// healthCheck probes the local server for container health checks.
func healthCheck() int {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://127.0.0.1:" + port + "/health")
	if err != nil {
		return 1
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
