package repairclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

var maxPDFBytes int64 = 32 << 20

// ErrResponseTooLarge is returned when a report body exceeds the read limit.
var ErrResponseTooLarge = errors.New("response too large")

// PDFDocument is an exported repair request report.
type PDFDocument struct {
	Data []byte
	// Pages is the page count when the document parses, 0 otherwise.
	Pages int
}

// ExportPDF downloads the PDF report of a repair request.
func (c *Client) ExportPDF(ctx context.Context, token, id string) (PDFDocument, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/%s/pdf", basePath, url.PathEscape(id)), token, nil)
	if err != nil {
		return PDFDocument{}, err
	}
	req.Header.Set("Accept", "application/pdf")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PDFDocument{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return PDFDocument{}, fmt.Errorf("read pdf: %w", err)
	}
	if int64(len(data)) > maxPDFBytes {
		return PDFDocument{}, fmt.Errorf("%w: pdf report exceeds %dMB", ErrResponseTooLarge, maxPDFBytes>>20)
	}
	if resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(data, &env)
		return PDFDocument{}, apiErrorFrom(resp, env)
	}
	if detected := mimetype.Detect(data); !detected.Is("application/pdf") {
		var env envelope
		if json.Unmarshal(data, &env) == nil && strings.TrimSpace(env.Message) != "" {
			return PDFDocument{}, apiErrorFrom(resp, env)
		}
		return PDFDocument{}, fmt.Errorf("unexpected export content type %s", detected.String())
	}
	return PDFDocument{Data: data, Pages: countPages(data)}, nil
}

func countPages(data []byte) (pages int) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return reader.NumPage()
}
