package cli

import (
	"fmt"
	"os"
	"sync"

	"fatwa-rag-go/internal/bootstrap"
	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/internal/pipeline"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	ingestPattern string
	ingestLang    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Import local Q&A dumps into the chunk store and vector index",
	Long: `Import JSON Q&A dumps found under <dir>. The language of each file is taken
from its first directory (en/, ar/); --lang applies to files outside those.

Examples:
  fatwactl ingest ./dumps
  fatwactl ingest ./scraped --pattern "*.json" --lang ar`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestPattern, "pattern", pipeline.DefaultDumpPattern, "doublestar pattern relative to <dir>")
	ingestCmd.Flags().StringVar(&ingestLang, "lang", "", "language for files outside en/ and ar/")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	var fallback model.Language
	if ingestLang != "" {
		l, err := model.ParseLanguage(ingestLang)
		if err != nil {
			return err
		}
		fallback = l
	}

	files, err := pipeline.FindDumps(args[0], ingestPattern, fallback)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no dump files matched %q under %s", ingestPattern, args[0])
	}

	dumps := make([]model.QADump, len(files))
	total := 0
	for i, f := range files {
		if dumps[i], err = pipeline.LoadDumpFile(f.Path); err != nil {
			return err
		}
		total += len(dumps[i].Data)
	}

	ctx := cmd.Context()
	backends, err := bootstrap.Open(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer backends.Close()
	if err := backends.EnsureIndices(ctx); err != nil {
		return err
	}
	processor := backends.NewProcessor(nil)

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
	var barMu sync.Mutex
	onProgress := func() {
		barMu.Lock()
		_ = bar.Add(1)
		barMu.Unlock()
	}

	var sum pipeline.Stats
	for i, f := range files {
		stats, err := processor.Ingest(ctx, f.Language, dumps[i].Data, onProgress)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
		sum.Documents += stats.Documents
		sum.Skipped += stats.Skipped
		sum.Chunks += stats.Chunks
	}
	_ = bar.Finish()

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents (%d chunks) from %d files, skipped %d items\n",
		sum.Documents, sum.Chunks, len(files), sum.Skipped)
	return nil
}
