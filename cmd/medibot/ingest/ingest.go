// Package ingestcmder provides the ingest command that loads reference
// documents into the vector store.
package ingestcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/medibot/pkg/cliui"
	"github.com/papercomputeco/medibot/pkg/config"
	"github.com/papercomputeco/medibot/pkg/ingest"
	"github.com/papercomputeco/medibot/pkg/logger"
	"github.com/papercomputeco/medibot/pkg/services"
)

type ingestCommander struct {
	retrievalProvider string
	retrievalTarget   string
	collection        string
	retrievalSQLite   string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint

	chunkSize    int
	chunkOverlap int
	batchSize    int

	configDir string
	debug     bool
	cfg       *config.Config
	out       io.Writer
	logger    *slog.Logger
}

var ingestFlags = []string{
	config.FlagRetrievalProvider,
	config.FlagRetrievalTarget,
	config.FlagCollection,
	config.FlagRetrievalSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const ingestLongDesc string = `Load medical reference documents into the vector store.

Supported files:
  .json       An array of {"content", "condition", "category"} objects
  .csv        One document per row; the first row is a header
  .txt, .md   The whole file is one document

Documents are split on medical section headings (SYMPTOMS:, TREATMENT:,
CAUSES:, PREVENTION:, WHEN TO SEE DOCTOR:) and then on paragraphs, embedded
with the configured embedding provider and stored in the configured
collection. Re-ingesting a file overwrites its chunks.

Examples:
  medibot ingest data/medical_knowledge.json
  medibot ingest notes/*.txt --collection first_aid
  medibot ingest data.csv --retrieval-provider sqlite --retrieval-sqlite kb.db`

const ingestShortDesc string = "Load documents into the vector store"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <files...>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, ingestFlags)
			cmder.cfg = config.Unmarshal(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.out = cmd.OutOrStdout()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, args)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagRetrievalProvider, &cmder.retrievalProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagRetrievalTarget, &cmder.retrievalTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagCollection, &cmder.collection)
	config.AddStringFlag(cmd, config.Registry, config.FlagRetrievalSQLite, &cmder.retrievalSQLite)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Registry, config.FlagEmbeddingDims, &cmder.embeddingDims)
	cmd.Flags().IntVar(&cmder.chunkSize, "chunk-size", ingest.DefaultChunkSize, "Maximum chunk length in bytes")
	cmd.Flags().IntVar(&cmder.chunkOverlap, "chunk-overlap", ingest.DefaultChunkOverlap, "Bytes shared by consecutive chunks")
	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", ingest.DefaultBatchSize, "Chunks embedded per request")

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, files []string) error {
	if c.chunkOverlap >= c.chunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", c.chunkOverlap, c.chunkSize)
	}

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
		logger.WithFile(c.cfg.Log.File),
	)

	fmt.Fprintln(c.out)

	var svc *services.Services
	err := cliui.Step(c.out, fmt.Sprintf("Connecting to %s", c.cfg.Retrieval.Provider), func() error {
		var err error
		svc, err = services.BuildIngester(ctx, c.cfg, services.Options{
			ConfigDir: c.configDir,
			Chunking: ingest.ChunkOptions{
				Size:       c.chunkSize,
				Overlap:    c.chunkOverlap,
				Separators: ingest.MedicalSeparators,
			},
			BatchSize: c.batchSize,
			Logger:    c.logger,
		})
		return err
	})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close(ctx) }()

	var res *ingest.Result
	err = cliui.Step(c.out, fmt.Sprintf("Ingesting %d file(s)", len(files)), func() error {
		var err error
		res, err = svc.Ingester.IngestFiles(ctx, files)
		return err
	})
	if res != nil {
		c.report(res)
	}
	return err
}

func (c *ingestCommander) report(res *ingest.Result) {
	fmt.Fprintln(c.out)
	rows := []struct {
		key   string
		value int
	}{
		{"Files:", res.FilesProcessed},
		{"Documents:", res.DocumentsLoaded},
		{"Chunks:", res.ChunksCreated},
		{"Stored:", res.DocumentsStored},
	}
	for _, r := range rows {
		fmt.Fprintf(c.out, "  %-12s %s\n", cliui.KeyStyle.Render(r.key), cliui.ValueStyle.Render(fmt.Sprint(r.value)))
	}
	for _, e := range res.Errors {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.FailMark, cliui.DimStyle.Render(e))
	}
	fmt.Fprintln(c.out)
}
