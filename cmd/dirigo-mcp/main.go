// Package main provides the Dirigo MCP server command-line interface
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dirigo-idm/dirigo/mcp"
	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/logger"
)

var (
	apiURL    = flag.String("api-url", "http://localhost:8080", "Dirigo API base URL")
	apiToken  = flag.String("token", "", "Access token for authentication")
	username  = flag.String("username", "", "Operator username (alternative to --token)")
	password  = flag.String("password", "", "Operator password (alternative to --token)")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	version   = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("Dirigo MCP Server v1.0.0")
		fmt.Println("Model Context Protocol server for the Dirigo identity console")
		os.Exit(0)
	}

	if *apiToken == "" {
		if envToken := os.Getenv("DIRIGO_API_TOKEN"); envToken != "" {
			*apiToken = envToken
		}
	}

	logLevel := "info"
	if *verbose {
		logLevel = "debug"
	}
	appLogger := logger.NewConsoleLogger(logLevel)

	cfg := config.NewCoreConfig()
	cfg.LogLevel = logLevel

	appLogger.Info("Starting Dirigo MCP server", map[string]interface{}{
		"api_url": *apiURL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiClient := NewAPIClient(*apiURL, *apiToken, appLogger)

	if *apiToken == "" && *username != "" {
		if err := apiClient.Login(ctx, *username, *password); err != nil {
			appLogger.Error("Failed to authenticate against Dirigo API", err, map[string]interface{}{
				"api_url":  *apiURL,
				"username": *username,
			})
			os.Exit(1)
		}
	}

	if err := apiClient.Initialize(ctx); err != nil {
		appLogger.Error("Failed to connect to Dirigo API", err, map[string]interface{}{
			"api_url": *apiURL,
		})
		os.Exit(1)
	}

	appLogger.Info("Connected to Dirigo API", map[string]interface{}{
		"api_url": *apiURL,
	})

	mcpServer := mcp.NewServer(apiClient, cfg, appLogger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		appLogger.Info("Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})
		cancel()
	}()

	appLogger.Info("MCP server ready, communicating via stdio")

	if err := mcpServer.Start(ctx); err != nil {
		appLogger.Error("MCP server error", err)
		os.Exit(1)
	}

	appLogger.Info("Dirigo MCP server shutdown complete")
}
