package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/RigorAudit/internal/application/audit"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/ingestion"
	"github.com/turtacn/RigorAudit/pkg/client"
	"github.com/turtacn/RigorAudit/pkg/errors"
)

var formatExtensions = map[string]string{
	"text":     ".txt",
	"jats":     ".xml",
	"markdown": ".md",
	"pdf":      ".pdf",
}

type auditOptions struct {
	file      string
	text      string
	title     string
	format    string
	enhance   bool
	persist   bool
	out       string
	failUnder float64
}

func newAuditCmd() *cobra.Command {
	opts := &auditOptions{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit one manuscript or a block of Methods text",
		Long: "Audit the Methods and statistics sections of a single article.\n\n" +
			"The input is either a file (JATS XML, Markdown, PDF or plain text, chosen\n" +
			"by extension or --format) or raw text given with --text. Use --file - to\n" +
			"read from stdin.",
		Example: `  rigoraudit audit --file PMC1234567.xml
  rigoraudit audit --text "Participants were randomly assigned..." -o json
  cat paper.md | rigoraudit audit --file - --format markdown --fail-under 6`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "manuscript to audit (- for stdin)")
	f.StringVar(&opts.text, "text", "", "raw Methods text to audit")
	f.StringVar(&opts.title, "title", "", "title stored with the audit (default: document title or file name)")
	f.StringVar(&opts.format, "format", "auto", "input format (auto, text, jats, markdown, pdf)")
	f.BoolVar(&opts.enhance, "enhance", false, "request a language-model narrative review")
	f.BoolVar(&opts.persist, "persist", false, "store the audit in the configured backends")
	f.StringVar(&opts.out, "out", "", "also write the JSON report to this file")
	f.Float64Var(&opts.failUnder, "fail-under", 0, "exit non-zero when the overall score is below this value")
	return cmd
}

func runAudit(cmd *cobra.Command, opts *auditOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if (opts.file == "") == (opts.text == "") {
		return errors.New(errors.ErrCodeBadRequest, "exactly one of --file or --text is required")
	}
	if _, ok := formatExtensions[opts.format]; !ok && opts.format != "auto" {
		return errors.Newf(errors.ErrCodeBadRequest, "invalid --format %q (auto, %s)",
			opts.format, strings.Join(sortedKeys(formatExtensions), ", "))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	var view *auditView
	if cliCtx.Client != nil {
		view, err = auditRemote(ctx, cmd, cliCtx.Client, opts)
	} else {
		view, err = auditLocal(ctx, cmd, cliCtx, opts)
	}
	if err != nil {
		return err
	}

	if opts.out != "" {
		if err := writeJSONFile(opts.out, view); err != nil {
			return err
		}
		cliCtx.Logger.Info("Report written", logging.String("path", opts.out))
	}
	if err := PrintResult(cmd, view); err != nil {
		return err
	}

	if opts.failUnder > 0 && view.Report.OverallScore < opts.failUnder {
		return fmt.Errorf("overall score %.1f is below --fail-under %.1f", view.Report.OverallScore, opts.failUnder)
	}
	return nil
}

// readInput returns the input file name (with the forced extension applied)
// and its bytes.
func readInput(cmd *cobra.Command, opts *auditOptions) (string, []byte, error) {
	name := opts.file
	var (
		data []byte
		err  error
	)
	if name == "-" {
		name = "stdin"
		data, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), ingestion.MaxDocumentBytes+1))
		if opts.format == "auto" {
			opts.format = "text"
		}
	} else {
		data, err = os.ReadFile(name)
		name = filepath.Base(name)
	}
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrCodeIngestMalformed, "failed to read input").WithDetail(opts.file)
	}
	if ext, ok := formatExtensions[opts.format]; ok {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ext
	}
	return name, data, nil
}

func auditLocal(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, opts *auditOptions) (*auditView, error) {
	rt, err := Bootstrap(ctx, cliCtx.Config, cliCtx.Logger, BootstrapOptions{Backends: opts.persist})
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	var req *audit.Request
	if opts.text != "" {
		req = &audit.Request{Title: opts.title, Text: opts.text, Source: "cli", Enhance: opts.enhance}
	} else {
		name, data, err := readInput(cmd, opts)
		if err != nil {
			return nil, err
		}
		doc, err := ingestion.LoadReader(name, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if !doc.Isolated {
			cliCtx.Logger.Warn("No Methods heading found, auditing the full text", logging.String("file", name))
		}
		req = audit.RequestFromDocument(doc, opts.enhance)
		if opts.title != "" {
			req.Title = opts.title
		}
		if opts.persist {
			req.Document = &audit.Upload{
				Filename:    name,
				ContentType: mime.TypeByExtension(filepath.Ext(name)),
				Data:        data,
			}
		}
	}

	res, err := rt.Service.Audit(ctx, req)
	if err != nil {
		return nil, err
	}
	return &auditView{Record: &res.Record, Cached: res.Cached}, nil
}

func auditRemote(ctx context.Context, cmd *cobra.Command, c *client.Client, opts *auditOptions) (*auditView, error) {
	var (
		res *client.AuditResult
		err error
	)
	if opts.text != "" {
		res, err = c.Audits().Create(ctx, &client.CreateAuditRequest{
			Title:   opts.title,
			Text:    opts.text,
			Source:  "cli",
			Enhance: opts.enhance,
		})
	} else {
		name, data, rerr := readInput(cmd, opts)
		if rerr != nil {
			return nil, rerr
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".xml", ".nxml":
			res, err = c.Audits().CreateFromJATS(ctx, bytes.NewReader(data), name, opts.enhance)
		default:
			res, err = c.Audits().Upload(ctx, &client.UploadRequest{
				Filename: name,
				Data:     data,
				Title:    opts.title,
				Enhance:  opts.enhance,
			})
		}
	}
	if err != nil {
		return nil, err
	}
	return &auditView{Record: &res.Record, Cached: res.Cached}, nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
