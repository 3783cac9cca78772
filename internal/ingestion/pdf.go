package ingestion

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/turtacn/RigorAudit/pkg/errors"
)

// PDFText extracts the plain page text of a PDF held in r.
func PDFText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeIngestMalformed, "invalid PDF")
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeIngestMalformed, "failed to extract PDF text")
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeIngestMalformed, "failed to read PDF text")
	}
	return buf.String(), nil
}

// ParsePDF extracts the page text and isolates Methods like ParseLayoutText.
func ParsePDF(title string, data []byte) (*Document, error) {
	text, err := PDFText(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	doc := ParseLayoutText(title, text)
	doc.Format = "pdf"
	return doc, nil
}
