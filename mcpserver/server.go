// Package mcpserver exposes the companion service to dialogue agents over the
// Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chrislearn/mofa-studio/client"
)

// Config holds all settings for the MCP server. Values come from environment
// variables with the COMPANION_MCP_ prefix.
type Config struct {
	ServiceURL       string        `envconfig:"SERVICE_URL" default:"http://localhost:11545"`
	ServerName       string        `envconfig:"SERVER_NAME" default:"companion-mcp-server"`
	ServerVersion    string        `envconfig:"SERVER_VERSION" default:"0.1.0"`
	Port             int           `envconfig:"PORT" default:"11546"`
	Transport        string        `envconfig:"TRANSPORT" default:"auto"` // auto | stdio | http
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"5s"`
	HTTPIdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"120s"`
	RequestRetries   int           `envconfig:"REQUEST_RETRIES" default:"2"`
	RequestRetryWait time.Duration `envconfig:"REQUEST_RETRY_WAIT" default:"200ms"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("COMPANION_MCP", &c); err != nil {
		return nil, err
	}
	switch c.Transport {
	case "auto", "stdio", "http":
	default:
		return nil, fmt.Errorf("invalid transport %q: want auto, stdio or http", c.Transport)
	}
	return &c, nil
}

type toolRegisterer interface {
	RegisterTools(s *server.MCPServer) error
}

// NewServer builds the MCP server with every tool registered against c.
func NewServer(cfg *Config, c *client.Client) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		server.WithToolCapabilities(true),
	)
	for _, h := range []toolRegisterer{NewPracticeHandler(c)} {
		if err := h.RegisterTools(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Run starts the MCP server and blocks until it exits.
func Run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	// stdout carries the protocol in stdio mode.
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", cfg.ServerName).Logger()

	c, err := client.New(cfg.ServiceURL, client.WithRetries(cfg.RequestRetries, cfg.RequestRetryWait))
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to create client")
		return err
	}
	s, err := NewServer(cfg, c)
	if err != nil {
		return err
	}

	if useStdio(cfg.Transport) {
		log.Info().Str("service_url", cfg.ServiceURL).Msg("Starting MCP server (stdio transport)")
		return server.ServeStdio(s)
	}
	return serveHTTP(cfg, s)
}

func serveHTTP(cfg *Config, s *server.MCPServer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	streamSrv := server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath("/mcp"),
		server.WithHeartbeatInterval(30*time.Second),
	)
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     streamSrv,
		ReadTimeout: cfg.HTTPReadTimeout,
		IdleTimeout: cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("service_url", cfg.ServiceURL).Msg("Starting MCP server (Streamable HTTP)")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server error")
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP server shutdown")
	}
	if err := streamSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during MCP server shutdown")
	}
	log.Info().Msg("MCP server shutdown complete")
	return nil
}

// useStdio resolves the transport; auto picks stdio when stdin is not a terminal.
func useStdio(transport string) bool {
	switch transport {
	case "stdio":
		return true
	case "http":
		return false
	}
	if fi, err := os.Stdin.Stat(); err == nil {
		return fi.Mode()&os.ModeCharDevice == 0
	}
	return false
}
