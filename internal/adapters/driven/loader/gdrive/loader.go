// Package gdrive loads Google Drive files. Native files are downloaded
// as-is, Google Workspace documents are exported to plain text, with
// spreadsheets exported as CSV.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/loader"
	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Workspace MIME types that need exporting.
const (
	mimeGoogleDoc    = "application/vnd.google-apps.document"
	mimeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	mimeGoogleSlides = "application/vnd.google-apps.presentation"
	mimeFolder       = "application/vnd.google-apps.folder"

	exportMimeText = "text/plain"
	exportMimeCSV  = "text/csv"
)

// MaxContentSize caps downloaded and exported content (5 MB).
const MaxContentSize = 5 * 1024 * 1024

// Config holds Drive loader settings.
type Config struct {
	// Token is the OAuth access token. Required.
	Token string

	// Endpoint overrides the API base URL. Tests point it at a fake.
	Endpoint string
}

// Loader fetches files addressed as gdrive://fileID.
type Loader struct {
	svc *drive.Service
}

// NewLoader creates a Drive loader.
func NewLoader(ctx context.Context, cfg Config) (*Loader, error) {
	if cfg.Token == "" {
		return nil, domain.ConfigErrorf("google drive token is not set")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Loader{svc: svc}, nil
}

// Load fetches the file named by source.
func (l *Loader) Load(ctx context.Context, source string) (*domain.SourceDocument, error) {
	id := fileID(source)
	if id == "" {
		return nil, domain.ConfigErrorf("gdrive source must be gdrive://fileID, got %q", source)
	}

	file, err := l.svc.Files.Get(id).Fields("id", "name", "mimeType", "size").Context(ctx).Do()
	if err != nil {
		return nil, classify("get file", err)
	}
	if file.MimeType == mimeFolder {
		return nil, domain.ConfigErrorf("gdrive source %s is a folder, not a file", id)
	}

	content, err := l.fileContent(ctx, file)
	if err != nil {
		return nil, err
	}

	text, title := loader.CleanDocument(file.Name, content)
	if title == "" {
		title = loader.TitleFromPath(file.Name)
	}
	return &domain.SourceDocument{Title: title, URI: source, Text: text}, nil
}

// fileContent downloads or exports the file's text.
func (l *Loader) fileContent(ctx context.Context, file *drive.File) (string, error) {
	switch file.MimeType {
	case mimeGoogleDoc, mimeGoogleSlides:
		return l.export(ctx, file.Id, exportMimeText)
	case mimeGoogleSheet:
		return l.export(ctx, file.Id, exportMimeCSV)
	}

	if !isTextMime(file.MimeType) {
		return "", domain.ConfigErrorf("gdrive file %s has unsupported type %s", file.Id, file.MimeType)
	}
	if file.Size > MaxContentSize {
		return "", domain.ConfigErrorf("gdrive file %s is %d bytes, over the %d byte limit", file.Id, file.Size, MaxContentSize)
	}

	resp, err := l.svc.Files.Get(file.Id).Context(ctx).Download()
	if err != nil {
		return "", classify("download file", err)
	}
	defer resp.Body.Close()
	return readCapped(resp.Body)
}

// export converts a Google Workspace file to the requested format.
func (l *Loader) export(ctx context.Context, fileID, exportMime string) (string, error) {
	resp, err := l.svc.Files.Export(fileID, exportMime).Context(ctx).Download()
	if err != nil {
		return "", classify("export file", err)
	}
	defer resp.Body.Close()
	return readCapped(resp.Body)
}

func readCapped(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxContentSize))
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(data), nil
}

// fileID strips the scheme and an optional files/ segment.
func fileID(source string) string {
	s := strings.TrimPrefix(strings.TrimSpace(source), "gdrive://")
	s = strings.TrimPrefix(s, "files/")
	return strings.Trim(s, "/")
}

// isTextMime reports whether a MIME type is worth reading as text.
func isTextMime(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/javascript",
		"application/x-yaml", "application/x-sh", "application/sql":
		return true
	}
	return false
}

// classify maps API failures onto the error taxonomy.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden || gerr.Code == http.StatusNotFound:
			return domain.ConfigErrorf("gdrive: %s: %v", op, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return domain.TransientErrorf("gdrive: %s: %v", op, err)
		default:
			return fmt.Errorf("gdrive: %s: %w", op, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"), strings.Contains(msg, "timeout"), strings.Contains(msg, "eof"):
		return domain.TransientErrorf("gdrive: %s: %v", op, err)
	default:
		return fmt.Errorf("gdrive: %s: %w", op, err)
	}
}
