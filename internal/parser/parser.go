package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"pdf-form-rag/internal/models"
)

const pageSeparator = "\n"

// ExtractText concatenates the plain text of every page of every document,
// in document-then-page order. Any unreadable document or page fails the whole batch.
func ExtractText(docs []models.Document) (string, error) {
	var corpus strings.Builder
	for i, doc := range docs {
		text, err := extractPDF(i, doc)
		if err != nil {
			return "", err
		}
		if corpus.Len() > 0 && text != "" {
			corpus.WriteString(pageSeparator)
		}
		corpus.WriteString(text)
		log.Debug().Str("document", doc.Name).Int("chars", len(text)).Msg("Extracted document text")
	}
	return corpus.String(), nil
}

func extractPDF(docIdx int, doc models.Document) (text string, err error) {
	page := 0
	// ledongthuc/pdf panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			err = &models.ExtractionError{Document: docIdx, Name: doc.Name, Page: page, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return "", &models.ExtractionError{Document: docIdx, Name: doc.Name, Err: err}
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	for page = 1; page <= numPages; page++ {
		p := reader.Page(page)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", &models.ExtractionError{Document: docIdx, Name: doc.Name, Page: page, Err: err}
		}
		if buf.Len() > 0 && pageText != "" {
			buf.WriteString(pageSeparator)
		}
		buf.WriteString(pageText)
	}
	return buf.String(), nil
}
