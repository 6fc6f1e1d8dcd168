package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/docparse/internal/app"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		configPath string
		envFile    string
		flags      app.Config
	)
	fs := flag.CommandLine
	fs.StringVar(&configPath, "config", os.Getenv("DOCPARSE_CONFIG"), "Path to a YAML or JSON config file")
	fs.StringVar(&envFile, "env", ".env", "Dotenv file loaded before reading the environment")
	app.RegisterParseFlags(fs, &flags)
	app.RegisterCacheFlags(fs, &flags)
	fs.BoolVar(&flags.JSON, "json", false, "Print documents as JSON instead of a summary")
	fs.StringVar(&flags.ReportPDF, "pdf", "", "Also write a PDF digest of the parsed documents to this path")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] FILE...\n\n", os.Args[0])
		fs.PrintDefaults()
	}
	flag.Parse()

	if err := app.LoadEnvFiles(envFile); err != nil {
		log.Warn().Err(err).Str("file", envFile).Msg("dotenv load failed")
	}
	cfg, err := app.Resolve(fs, flags, configPath)
	if err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(1)
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if flag.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, flag.Args(), os.Stdout); err != nil {
		log.Error().Err(err).Msg("run failed")
		// Exit code policy: 2 when nothing could be parsed, 1 for setup errors.
		if errors.Is(err, app.ErrNoDocuments) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.Config, paths []string, out io.Writer) error {
	if err := app.ValidateConfig(cfg, false); err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	docs, failed, parseErr := a.ParseAll(ctx, paths)
	if failed > 0 {
		log.Warn().Int("failed", failed).Int("total", len(paths)).Msg("some inputs could not be parsed")
	}

	if cfg.JSON {
		err = app.WriteJSON(out, docs)
	} else {
		err = app.WriteSummary(out, docs)
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if cfg.ReportPDF != "" {
		if err := app.WriteReportPDF(docs, cfg.ReportPDF); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Info().Str("path", cfg.ReportPDF).Int("documents", len(docs)).Msg("report written")
	}
	return parseErr
}
