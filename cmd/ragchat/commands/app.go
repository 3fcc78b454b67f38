package commands

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"ragchat/internal/config"
	"ragchat/internal/logger"
	"ragchat/internal/remote"
	"ragchat/internal/service"
)

// app is everything one invocation needs: the loaded config, its logger and
// a session bound to the remote service.
type app struct {
	cfg     *config.AppConfig
	log     *logger.ZapLogger
	session *service.Session
}

func loadConfig() (*config.AppConfig, string, error) {
	if cfgPath == "" {
		return config.LoadDefault()
	}
	cfg, err := config.Load(cfgPath)
	return cfg, cfgPath, err
}

// newApp wires config, logging, the HTTP client and a session. console
// mirrors logs to stderr; the chat TUI and the MCP stdio server leave it off
// when not verbose.
func newApp(console bool) (*app, error) {
	_ = godotenv.Load()

	cfg, path, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	lg := logger.New(logger.Options{
		FilePath: cfg.Log.File,
		Level:    level,
		Console:  console && verbose,
		Dev:      cfg.Log.Dev,
	})
	lg.Debug("App", "Config loaded", map[string]interface{}{"path": path, "base_url": cfg.Service.BaseURL})

	client := remote.NewClient(remote.Config{
		BaseURL: cfg.Service.BaseURL,
		Token:   token,
		Timeout: cfg.Timeout(),
	})
	sess := service.NewSession(client, service.SessionOptions{
		Config:       cfg.Bundle(),
		PollInterval: cfg.PollInterval(),
		MaxBackoff:   cfg.MaxBackoff(),
		MaxWait:      cfg.MaxWait(),
		Logger:       lg,
	})
	return &app{cfg: cfg, log: lg, session: sess}, nil
}

// restored is newApp followed by a session restore.
func restored(ctx context.Context, console bool) (*app, error) {
	a, err := newApp(console)
	if err != nil {
		return nil, err
	}
	if err := a.session.Restore(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return a, nil
}

func (a *app) close() {
	a.session.Close()
	_ = a.log.Sync()
}
