// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run loads the dotenv file before the app parses flags, so the file's
// variables reach every flag's EnvVars.
func run(args []string, out io.Writer) error {
	if err := loadEnv(envFile(args)); err != nil {
		return err
	}
	app := newApp()
	app.Writer = out
	return app.Run(args)
}

// envFile finds --env-file in args, falling back to DOCQA_ENV_FILE and
// then .env.
func envFile(args []string) string {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "env-file" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
		return ""
	}
	if path, ok := os.LookupEnv("DOCQA_ENV_FILE"); ok {
		return path
	}
	return ".env"
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docqa",
		Usage: "Ask questions about a collection of PDF documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML config file",
				EnvVars: []string{"DOCQA_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Dotenv file loaded before flags are parsed",
				Value:   ".env",
				EnvVars: []string{"DOCQA_ENV_FILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"DOCQA_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "storage-driver",
				Usage:   "Storage backend (postgres, badger)",
				EnvVars: []string{"DOCQA_STORAGE_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "postgres-url",
				Usage:   "Postgres connection string",
				EnvVars: []string{"DOCQA_POSTGRES_URL", "DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "badger-path",
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"DOCQA_BADGER_PATH"},
			},
			&cli.StringFlag{
				Name:    "embedding-url",
				Usage:   "Embedding service base URL",
				EnvVars: []string{"DOCQA_EMBEDDING_URL"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"DOCQA_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "generation-url",
				Usage:   "OpenAI-compatible chat completion base URL",
				EnvVars: []string{"DOCQA_GENERATION_URL"},
			},
			&cli.StringFlag{
				Name:    "generation-model",
				Usage:   "Chat model name",
				EnvVars: []string{"DOCQA_GENERATION_MODEL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Bearer token for the AI services",
				EnvVars: []string{"DOCQA_API_KEY", "OPENAI_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "pdf-dir",
				Usage:   "Directory uploaded and watched PDFs are kept in",
				EnvVars: []string{"DOCQA_PDF_DIR"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						EnvVars: []string{"DOCQA_ADDR"},
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Also ingest PDFs dropped into the PDF directory",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest PDF files or directories of PDFs",
				ArgsUsage: "<path>...",
				Action:    ingestCommand,
			},
			{
				Name:      "ask",
				Usage:     "Answer a question and list its sources",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of documents to retrieve",
					},
				},
			},
			{
				Name:      "chat",
				Usage:     "Stream an answer within a conversation",
				ArgsUsage: "<question>",
				Action:    chatCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "Conversation id to continue; a new one is started when empty",
					},
				},
			},
			{
				Name:      "history",
				Usage:     "Print a conversation",
				ArgsUsage: "<conversation-id>",
				Action:    historyCommand,
			},
			{
				Name:   "documents",
				Usage:  "List stored document chunks",
				Action: documentsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "skip",
						Usage: "Number of chunks to skip",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of chunks to list",
						Value: 10,
					},
				},
			},
			{
				Name:   "ingestions",
				Usage:  "List recent ingestions",
				Action: ingestionsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records to list",
						Value: 20,
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Ingest PDFs dropped into the PDF directory",
				Action: watchCommand,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the Postgres schema",
				Action: migrateCommand,
			},
			{
				Name:   "ping",
				Usage:  "Check that the storage backend is reachable",
				Action: pingCommand,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: configCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (yaml, toml)",
						Value: "yaml",
					},
				},
			},
		},
	}
}

// loadEnv reads a dotenv file. A missing file is not an error; variables
// already set in the environment win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	override := func(flag string, field *string) {
		if c.IsSet(flag) {
			*field = c.String(flag)
		}
	}
	override("storage-driver", &cfg.Storage.Driver)
	override("postgres-url", &cfg.Storage.URL)
	override("badger-path", &cfg.Storage.Path)
	override("embedding-url", &cfg.Embedding.URL)
	override("embedding-model", &cfg.Embedding.Model)
	override("generation-url", &cfg.Generation.URL)
	override("generation-model", &cfg.Generation.Model)
	override("pdf-dir", &cfg.Ingestion.PDFDir)
	if c.IsSet("api-key") {
		cfg.Embedding.APIKey = c.String("api-key")
		cfg.Generation.APIKey = c.String("api-key")
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("top-k") {
		cfg.Retrieval.TopK = c.Int("top-k")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openService(c *cli.Context) (*docqa.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	svc, err := docqa.Open(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func question(c *cli.Context) (string, error) {
	q := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if q == "" {
		return "", errors.New("a question is required")
	}
	return q, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
