package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/furon-kuina/semleaf"
	"github.com/furon-kuina/semleaf/internal/log"
	"github.com/furon-kuina/semleaf/internal/mcp"
)

func mcpCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants look up and search the recorded phrases.
Configuration is loaded from environment variables and .env file.
Logs go to stderr because stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runMCP(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	slogger := log.NewLoggerWithWriter(os.Stderr, cfg.LogFormat(), cfg.LogLevel()).Slog()
	slog.SetDefault(slogger)

	opts, err := clientOptions(cfg, slogger, true)
	if err != nil {
		return err
	}

	slogger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
	)

	client, err := semleaf.New(opts...)
	if err != nil {
		return fmt.Errorf("create semleaf client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close semleaf client", slog.Any("error", err))
		}
	}()

	return mcp.NewServer(client.Search, client.Phrases, version, slogger).ServeStdio()
}
