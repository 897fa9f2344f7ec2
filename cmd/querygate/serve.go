package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	querygate "github.com/querygate/querygate"
	"github.com/querygate/querygate/internal/store"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

const shutdownGrace = 15 * time.Second

func runServe() error {
	ctx := context.Background()

	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if serverConfig.Server.Port <= 0 {
		panic("querygate: server.port must be > 0")
	}
	if len(serverConfig.Auth.Tokens) == 0 {
		panic("querygate: auth.tokens must not be empty")
	}

	logger := setupLogger(serverConfig.Logging)

	st, err := store.NewFileStore(storeDir(serverConfig))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	auth := querygate.NewTokenAuthenticator(serverConfig.Auth.Tokens)
	s, err := querygate.New(ctx, serverConfig.Config, st, auth, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	// MCP server with session lifecycle mirrored into the registry.
	hooks := &server.Hooks{}
	s.RegisterSessionHooks(hooks)
	mcpServer := server.NewMCPServer("querygate", "1.0.0",
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)
	querygate.RegisterMCPTools(mcpServer, s)

	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity).
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("querygate: health_check_path must be set when health_check_enabled is true")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	mux.Handle("/api/", s.HTTPHandler())

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Stateful streamable server: the MCP layer mints session ids and the
	// registry hooks track them.
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStreamableHTTPServer(httpSrv),
		server.WithHTTPContextFunc(querygate.AuthFromRequest),
	)

	// Manually register the MCP handler — Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Int("port", serverConfig.Server.Port).Msg("starting querygate server")
		if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := streamableServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := s.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("pool shutdown failed")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

func loadServerConfig() (*querygate.ServerConfig, error) {
	configPath := os.Getenv("QUERYGATE_CONFIG_PATH")
	if configPath == "" {
		configPath = ".querygate/config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config querygate.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func storeDir(config *querygate.ServerConfig) string {
	if config.StoreDir != "" {
		return config.StoreDir
	}
	return ".querygate"
}

func setupLogger(config querygate.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
