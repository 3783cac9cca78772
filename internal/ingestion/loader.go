package ingestion

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/RigorAudit/pkg/errors"
)

// MaxDocumentBytes bounds what Load and LoadReader will read.
const MaxDocumentBytes = 32 << 20

// SupportedExtensions lists the file types Load understands.
var SupportedExtensions = []string{".xml", ".nxml", ".md", ".markdown", ".txt", ".pdf"}

// IsSupported reports whether name has a loadable extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Load reads and ingests the file at path.
func Load(path string) (*Document, error) {
	if !IsSupported(path) {
		return nil, errors.New(errors.ErrCodeIngestUnsupported, "unsupported document format").WithDetail(path)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeObjectNotFound, "document not found").WithDetail(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeIngestMalformed, "failed to open document").WithDetail(path)
	}
	defer f.Close()
	return LoadReader(filepath.Base(path), f)
}

// LoadReader ingests r, choosing the parser by the extension of name. The
// returned document always has Methods or statistics text.
func LoadReader(name string, r io.Reader) (*Document, error) {
	if !IsSupported(name) {
		return nil, errors.New(errors.ErrCodeIngestUnsupported, "unsupported document format").WithDetail(name)
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIngestMalformed, "failed to read document").WithDetail(name)
	}
	if len(data) > MaxDocumentBytes {
		return nil, errors.New(errors.ErrCodeAuditTooLarge, "document exceeds size limit").WithDetail(name)
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	var doc *Document
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xml", ".nxml":
		doc, err = ParseJATS(bytes.NewReader(data))
		if err == nil && doc.PMCID == "" {
			doc.PMCID = base
		}
	case ".md", ".markdown":
		doc = ParseMarkdown(data)
	case ".pdf":
		doc, err = ParsePDF(base, data)
	default:
		doc = ParseLayoutText(base, string(data))
	}
	if err != nil {
		return nil, err
	}
	if doc.Title == "" {
		doc.Title = base
	}
	doc.Source = name
	if !doc.HasAnalysisText() {
		return nil, errors.New(errors.ErrCodeIngestNoMethods, "no methods section found").WithDetail(name)
	}
	return doc, nil
}
