package cli

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/RigorAudit/internal/application/audit"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/ingestion"
	"github.com/turtacn/RigorAudit/pkg/errors"
)

type batchOptions struct {
	input   string
	outDir  string
	workers int
	summary bool
	enhance bool
	persist bool
}

func newBatchCmd() *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Audit every manuscript in a directory",
		Long: "Audit every supported file (.xml, .nxml, .md, .markdown, .txt, .pdf) in a\n" +
			"directory and print per-document scores plus an aggregate summary: mean\n" +
			"score, rating distribution, category prevalence and the most frequent gaps.",
		Example: `  rigoraudit batch --input ./articles
  rigoraudit batch --input ./articles --out-dir ./reports --workers 8 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "directory of manuscripts (required)")
	f.StringVar(&opts.outDir, "out-dir", "", "write one JSON report per document and summary.json here")
	f.IntVarP(&opts.workers, "workers", "w", 0, "concurrent audits (default: audit.workers from config)")
	f.BoolVar(&opts.summary, "summary", true, "include the aggregate summary")
	f.BoolVar(&opts.enhance, "enhance", false, "request a language-model narrative review per document")
	f.BoolVar(&opts.persist, "persist", false, "store the audits in the configured backends")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runBatch(cmd *cobra.Command, opts *batchOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	log := cliCtx.Logger

	paths, err := listManuscripts(opts.input)
	if err != nil {
		return err
	}

	view := &batchView{}
	reqs := make([]*audit.Request, 0, len(paths))
	for _, p := range paths {
		doc, err := ingestion.Load(p)
		if err != nil {
			log.Warn("Skipping document", logging.String("file", p), logging.Err(err))
			view.Skipped = append(view.Skipped, skippedFile{Name: filepath.Base(p), Reason: err.Error()})
			continue
		}
		reqs = append(reqs, audit.RequestFromDocument(doc, opts.enhance))
	}
	if len(reqs) == 0 {
		return errors.New(errors.ErrCodeAuditBatchEmpty, "no auditable documents found").WithDetail(opts.input)
	}

	workers := opts.workers
	if workers <= 0 {
		workers = cliCtx.Config.Audit.Workers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	rt, err := Bootstrap(ctx, cliCtx.Config, log, BootstrapOptions{Backends: opts.persist})
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Info("Batch started", logging.Int("documents", len(reqs)), logging.Int("workers", workers))
	items, err := audit.NewBatchRunner(rt.Service, log).Run(ctx, reqs, workers)
	if err != nil {
		return err
	}
	view.Items = items

	if opts.summary {
		s := audit.Summarize(items)
		view.Summary = &s
	}

	if opts.outDir != "" {
		if err := writeBatchReports(opts.outDir, view); err != nil {
			return err
		}
		log.Info("Reports written", logging.String("dir", opts.outDir))
	}
	return PrintResult(cmd, view)
}

// listManuscripts returns the supported files directly under dir, sorted by
// name.
func listManuscripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeObjectNotFound, "input directory not found").WithDetail(dir)
		}
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read input directory").WithDetail(dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !ingestion.IsSupported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func writeBatchReports(dir string, view *batchView) error {
	for _, it := range view.Items {
		if it.Result == nil {
			continue
		}
		name := strings.TrimSuffix(it.Name, filepath.Ext(it.Name)) + ".json"
		if err := writeJSONFile(filepath.Join(dir, name), &auditView{Record: &it.Result.Record, Cached: it.Result.Cached}); err != nil {
			return err
		}
	}
	if view.Summary != nil {
		return writeJSONFile(filepath.Join(dir, "summary.json"), view.Summary)
	}
	return nil
}
