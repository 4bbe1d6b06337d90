// Package file loads documents from the local filesystem. Markdown
// and HTML sources are reduced to prose, DOCX archives are unpacked
// to their paragraph text, and anything else is read as plain text.
package file

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/loader"
	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader reads local files. Sources are bare paths or file:// URIs.
type Loader struct{}

// NewLoader creates a local file loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the file named by source and returns its cleaned text.
func (l *Loader) Load(_ context.Context, source string) (*domain.SourceDocument, error) {
	path := strings.TrimPrefix(strings.TrimSpace(source), "file://")
	if path == "" {
		return nil, domain.ConfigErrorf("empty file path")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ConfigErrorf("document not found: %s", path)
		}
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.IsDir() {
		return nil, domain.ConfigErrorf("%s is a directory, not a document", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	title := loader.TitleFromPath(path)
	var text string

	if strings.EqualFold(filepath.Ext(path), ".docx") {
		docText, docTitle, err := parseDocx(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		text = docText
		if docTitle != "" {
			title = docTitle
		}
	} else {
		cleaned, docTitle := loader.CleanDocument(path, string(data))
		text = cleaned
		if docTitle != "" {
			title = docTitle
		}
	}

	return &domain.SourceDocument{
		Title: title,
		URI:   source,
		Text:  text,
	}, nil
}

// parseDocx extracts paragraph text from a DOCX archive plus the title
// stored in its core properties, when present.
func parseDocx(data []byte) (text, title string, err error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", fmt.Errorf("open docx archive: %w", err)
	}

	for _, f := range reader.File {
		switch f.Name {
		case "word/document.xml":
			content, err := readZipFile(f)
			if err != nil {
				return "", "", fmt.Errorf("read document.xml: %w", err)
			}
			text = paragraphText(content)
		case "docProps/core.xml":
			content, err := readZipFile(f)
			if err != nil {
				continue
			}
			var core struct {
				Title string `xml:"title"`
			}
			if xml.Unmarshal(content, &core) == nil {
				title = strings.TrimSpace(core.Title)
			}
		}
	}

	if text == "" {
		return "", "", fmt.Errorf("docx archive holds no document text")
	}
	return text, title, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// wordDocument mirrors the part of word/document.xml we read.
type wordDocument struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []struct {
					Content string `xml:",chardata"`
				} `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

// paragraphText joins the document's paragraphs with newlines.
func paragraphText(content []byte) string {
	var doc wordDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var sb strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			sb.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, t := range run.Text {
				sb.WriteString(t.Content)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
