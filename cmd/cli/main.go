package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/export"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/gcsuploader"
	"github.com/dvloznov/statement-extractor/internal/inference"
	infraBQ "github.com/dvloznov/statement-extractor/internal/infra/bigquery"
	"github.com/dvloznov/statement-extractor/internal/ingest"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/dvloznov/statement-extractor/internal/render"
)

const appName = "statement-extractor"

// app carries what every command needs.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	out io.Writer
}

type cli struct {
	LogLevel string        `help:"Log level (overrides LOG_LEVEL)." placeholder:"LEVEL"`
	Timeout  time.Duration `help:"Abort the command after this long." default:"5m"`

	Extract   extractCmd   `cmd:"" help:"Extract transactions from a local PDF or a gs:// URI."`
	Upload    uploadCmd    `cmd:"" help:"Archive a PDF in the statements bucket."`
	Inspect   inspectCmd   `cmd:"" help:"Show a warehouse document and its transactions."`
	Documents documentsCmd `cmd:"" help:"List recently processed warehouse documents."`
	Migrate   migrateCmd   `cmd:"" help:"Create or update the warehouse tables."`
	Layouts   layoutsCmd   `cmd:"" help:"List the registered statement layouts."`
}

type extractCmd struct {
	Source  string `arg:"" help:"Path to a PDF file or gs://bucket/object URI."`
	Format  string `help:"Output format: json or csv." default:"json" enum:"json,csv"`
	Output  string `short:"o" help:"Write the result here instead of stdout." type:"path"`
	Layout  string `help:"Statement layout (overrides STATEMENT_LAYOUT)."`
	Persist bool   `help:"Archive and export the statement when GCS_BUCKET and BIGQUERY_PROJECT are set."`
}

func (c *extractCmd) Run(ctx context.Context, a *app) error {
	format, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
	}

	layoutName := a.cfg.Layout
	if c.Layout != "" {
		layoutName = c.Layout
	}
	layout, err := extract.Lookup(layoutName)
	if err != nil {
		return err
	}

	var archive *gcsuploader.Archive
	if a.cfg.Storage.Bucket != "" || isGCSURI(c.Source) {
		archive, err = gcsuploader.NewArchive(ctx, a.cfg.Storage.Bucket)
		if err != nil {
			return err
		}
		defer archive.Close()
	}

	data, err := readSource(ctx, c.Source, archive)
	if err != nil {
		return err
	}

	classifier, err := inference.New(ctx, a.cfg.Model)
	if err != nil {
		return err
	}

	deps := ingest.Deps{
		Processor: pipeline.NewProcessor(render.NewRenderer(a.log), classifier, layout, nil, a.log),
		Layout:    layout.Name(),
		Backend:   classifier.Name(),
	}
	if c.Persist {
		if a.cfg.Storage.Bucket != "" && !isGCSURI(c.Source) {
			deps.Archive = archive
		}
		if a.cfg.Warehouse.Project != "" {
			sink, err := infraBQ.NewBigQuerySink(ctx, a.cfg.Warehouse.Project, a.cfg.Warehouse.Dataset)
			if err != nil {
				return err
			}
			defer sink.Close()
			deps.Sink = sink
		}
	}

	out, err := ingest.NewService(deps, a.log).Ingest(ctx, ingest.Statement{
		Filename: sourceFilename(c.Source),
		Data:     data,
	})
	if err != nil {
		return err
	}

	if err := writeOutput(c.Output, a.out, format, out.Results); err != nil {
		return err
	}

	a.log.Info().
		Str("document_id", out.DocumentID).
		Int("pages", len(out.Results)).
		Int("transactions", len(pipeline.Transactions(out.Results))).
		Msg("Extraction completed")
	return nil
}

type uploadCmd struct {
	File   string `arg:"" help:"Path to a local PDF file." type:"existingfile"`
	Bucket string `help:"Bucket name (overrides GCS_BUCKET)."`
}

func (c *uploadCmd) Run(ctx context.Context, a *app) error {
	bucket := c.Bucket
	if bucket == "" {
		bucket = a.cfg.Storage.Bucket
	}
	if bucket == "" {
		return errors.New("no bucket: set GCS_BUCKET or pass --bucket")
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.File, err)
	}
	if !render.LooksLikePDF(data) {
		return fmt.Errorf("%s is not a PDF", c.File)
	}

	archive, err := gcsuploader.NewArchive(ctx, bucket)
	if err != nil {
		return err
	}
	defer archive.Close()

	documentID := uuid.New().String()
	uri, err := archive.StorePDF(ctx, documentID, data)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Uploaded %s as document %s to %s\n", c.File, documentID, uri)
	return nil
}

type inspectCmd struct {
	DocumentID string `arg:"" help:"Document ID to inspect."`
}

func (c *inspectCmd) Run(ctx context.Context, a *app) error {
	sink, err := openSink(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	txns, err := sink.QueryTransactionsByDocument(ctx, c.DocumentID)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		return fmt.Errorf("no transactions stored for document %s", c.DocumentID)
	}

	fmt.Fprintf(a.out, "\n=== Transactions of %s (%d) ===\n", c.DocumentID, len(txns))
	for i, txn := range txns {
		fmt.Fprintf(a.out, "\n%d. %s\n", i+1, txn.RawDescription)
		fmt.Fprintf(a.out, "   Date:     %s\n", txn.RawDate)
		fmt.Fprintf(a.out, "   Amount:   %s %s\n", txn.Amount.FloatString(2), txn.Currency)
		fmt.Fprintf(a.out, "   Status:   %s\n", txn.Status)
		fmt.Fprintf(a.out, "   Position: page %d, line %d\n", txn.StatementPageNo, txn.StatementLineNo)
	}
	fmt.Fprintln(a.out)
	return nil
}

type documentsCmd struct {
	Limit int `help:"Number of documents to show." default:"20"`
}

func (c *documentsCmd) Run(ctx context.Context, a *app) error {
	sink, err := openSink(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	docs, err := sink.ListDocuments(ctx, c.Limit)
	if err != nil {
		return err
	}

	for _, d := range docs {
		fmt.Fprintf(a.out, "%s  %s  %-24s pages=%d transactions=%d degraded=%d\n",
			d.ProcessedTS.Format(time.RFC3339),
			d.DocumentID,
			d.OriginalFilename,
			d.PageCount,
			d.TransactionCount,
			d.DegradedPageCount,
		)
	}
	return nil
}

type migrateCmd struct {
	AppliedBy string `help:"Recorded in schema_migrations." default:"statement-extractor-cli"`
}

func (c *migrateCmd) Run(ctx context.Context, a *app) error {
	sink, err := openSink(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	applied, err := sink.Migrate(ctx, c.AppliedBy, a.log)
	if err != nil {
		return err
	}

	if applied == 0 {
		fmt.Fprintln(a.out, "No new migrations to apply. Warehouse is up to date.")
	} else {
		fmt.Fprintf(a.out, "Successfully applied %d migration(s)\n", applied)
	}
	return nil
}

type layoutsCmd struct{}

func (c *layoutsCmd) Run(a *app) error {
	for _, name := range extract.Names() {
		marker := " "
		if name == a.cfg.Layout {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s\n", marker, name)
	}
	return nil
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name(appName),
		kong.Description("Extract transactions from bank statement PDFs."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Invalid configuration")
	}

	level := cfg.LogLevel
	if c.LogLevel != "" {
		level = c.LogLevel
	}
	log := logger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(logger.ParseLevel(level))

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(&app{cfg: cfg, log: log, out: os.Stdout})
	if err != nil {
		log.Error().Err(err).Str("command", kctx.Command()).Msg("Command failed")
		cancel()
		os.Exit(1)
	}
}

func isGCSURI(source string) bool {
	return strings.HasPrefix(source, "gs://")
}

// readSource loads the statement from disk or, for gs:// URIs, from GCS.
func readSource(ctx context.Context, source string, archive gcsuploader.StorageService) ([]byte, error) {
	if isGCSURI(source) {
		if archive == nil {
			return nil, fmt.Errorf("cannot read %s: storage is not configured", source)
		}
		return archive.FetchFromGCS(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return data, nil
}

func sourceFilename(source string) string {
	if isGCSURI(source) {
		return gcsuploader.ExtractFilenameFromGCSURI(source)
	}
	return filepath.Base(source)
}

// openOutput returns path opened for writing, or fallback when path is empty.
// The returned close function reports errors from closing the file.
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, func() error {
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		return nil
	}, nil
}

// writeOutput encodes results to path, or to fallback when path is empty.
func writeOutput(path string, fallback io.Writer, format export.Format, results []pipeline.PageResult) error {
	w, closeOut, err := openOutput(path, fallback)
	if err != nil {
		return err
	}
	if err := export.Write(w, format, results); err != nil {
		_ = closeOut()
		return fmt.Errorf("write result: %w", err)
	}
	return closeOut()
}

func openSink(ctx context.Context, cfg *config.Config) (*infraBQ.BigQuerySink, error) {
	if cfg.Warehouse.Project == "" {
		return nil, errors.New("no warehouse: set BIGQUERY_PROJECT")
	}
	return infraBQ.NewBigQuerySink(ctx, cfg.Warehouse.Project, cfg.Warehouse.Dataset)
}
