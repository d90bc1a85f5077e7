package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/furon-kuina/semleaf"
	"github.com/furon-kuina/semleaf/infrastructure/export"
	"github.com/furon-kuina/semleaf/internal/log"
)

func exportCmd() *cobra.Command {
	var (
		envFile string
		format  string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every phrase as JSON or CSV",
		Long: `Export every phrase, newest first, as JSON or CSV.

CSV columns: id, phrase, meanings (joined with " | "), source, tags (joined
with ", "), memo, created_at, updated_at. No embedding provider is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" || output == "-" {
				return runExport(cmd.Context(), envFile, format, cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := runExport(cmd.Context(), envFile, format, f); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&format, "format", string(export.FormatJSON), "Output format: json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runExport(ctx context.Context, envFile, format string, w io.Writer) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	slogger := log.NewLoggerWithWriter(os.Stderr, cfg.LogFormat(), cfg.LogLevel()).Slog()

	opts, err := clientOptions(cfg, slogger, false)
	if err != nil {
		return err
	}

	client, err := semleaf.New(opts...)
	if err != nil {
		return fmt.Errorf("create semleaf client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close semleaf client", slog.Any("error", err))
		}
	}()

	phrases, err := client.Phrases.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list phrases: %w", err)
	}
	if err := export.Write(w, export.ParseFormat(format), phrases); err != nil {
		return err
	}

	slogger.Info("export complete", slog.Int("phrases", len(phrases)), slog.String("format", format))
	return nil
}
