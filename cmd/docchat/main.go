package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/docparse/internal/app"
	"github.com/hyperifyio/docparse/internal/chat"
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
	app.RegisterLLMFlags(fs, &flags)
	app.RegisterCacheFlags(fs, &flags)
	fs.BoolVar(&flags.Verbose, "v", false, "Verbose logging")
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

	if err := run(ctx, cfg, flag.Args(), os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("chat failed")
		if errors.Is(err, app.ErrNoDocuments) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run seeds a session with paths and answers lines from in until an exit
// word or end of input.
func run(ctx context.Context, cfg app.Config, paths []string, in io.Reader, out io.Writer) error {
	if err := app.ValidateConfig(cfg, true); err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	s, atts, err := a.NewChat(ctx, paths)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Loaded %d file(s):\n", len(atts))
	for _, at := range atts {
		fmt.Fprintf(out, "  - %s (%s)\n", at.Name, at.MIMEType)
	}
	fmt.Fprintln(out, "Ask questions about the documents. Type 'exit', 'quit', 'end' or 'bye' to stop.")

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if chat.IsExit(line) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		reply, err := s.Send(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("chat turn failed")
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "AI: %s\n", reply)
	}
	fmt.Fprintln(out)
	return sc.Err()
}
