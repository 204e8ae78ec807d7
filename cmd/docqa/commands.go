package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/server"
	"github.com/poiesic/docqa/storage/postgres"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func serveCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(svc, svc.Config().Server, nil).Run(ctx)
	})
	if c.Bool("watch") {
		g.Go(func() error {
			return svc.Watch(ctx)
		})
	}
	return g.Wait()
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one PDF file or directory is required")
	}
	paths, err := expandPDFs(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no PDF files found")
	}

	ctx, stop := signalContext(c)
	defer stop()

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Fprintf(os.Stderr, "Ingesting %d files\n", len(paths))
	total, err := svc.IngestFiles(ctx, paths, os.Stderr)
	fmt.Fprintf(c.App.Writer, "Inserted %d chunks\n", total)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

// expandPDFs replaces directories with the PDFs directly inside them.
func expandPDFs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && ingestion.IsPDF(entry.Name()) {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths, nil
}

func askCommand(c *cli.Context) error {
	q, err := question(c)
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	answer, err := svc.Answer(c.Context, q)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintln(out, answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for _, src := range answer.Sources {
			fmt.Fprintf(out, "  %.3f  %s  %v\n", src.Similarity, src.ID, src.Metadata["source"])
		}
	}
	return nil
}

func chatCommand(c *cli.Context) error {
	q, err := question(c)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c)
	defer stop()

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	stream, err := svc.Stream(ctx, c.String("conversation"), q)
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Fprintf(os.Stderr, "Conversation: %s\n", stream.ConversationID())
	out := c.App.Writer
	for token := range stream.Tokens() {
		fmt.Fprint(out, token)
	}
	fmt.Fprintln(out)
	return nil
}

func historyCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one conversation id is required")
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	turns, err := svc.History(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	out := c.App.Writer
	for _, turn := range turns {
		fmt.Fprintf(out, "[%s]\nUser: %s\nAssistant: %s\n\n",
			turn.CreatedAt.Format(time.RFC3339), turn.Question, turn.Answer)
	}
	return nil
}

func documentsCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	docs, err := svc.Documents(c.Context, c.Int("skip"), c.Int("limit"))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tCONTENT")
	for _, doc := range docs {
		fmt.Fprintf(tw, "%s\t%v\t%s\n", doc.ID, doc.Metadata["source"], preview(doc.Content, 60))
	}
	return tw.Flush()
}

func ingestionsCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	records, err := svc.Ingestions(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INGESTED\tFILE\tCHUNKS\tCHECKSUM")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			r.IngestedAt.Format(time.RFC3339), r.Filename, r.Metadata.ChunkCount, preview(r.Metadata.Checksum, 16))
	}
	return tw.Flush()
}

func watchCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Fprintf(os.Stderr, "Watching %s\n", svc.Config().Ingestion.PDFDir)
	return svc.Watch(ctx)
}

func migrateCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate only applies to the postgres driver, not %q", cfg.Storage.Driver)
	}
	if err := postgres.Migrate(c.Context, cfg.Storage.URL, cfg.Embedding.Dimension); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Schema applied (dimension %d)\n", cfg.Embedding.Dimension)
	return nil
}

func pingCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Ping(c.Context); err != nil {
		return fmt.Errorf("storage unreachable: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "ok")
	return nil
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	data, err := config.Encode(cfg, c.String("format"))
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
