// Package github loads documents from GitHub repositories through the
// contents API. A source names a single file or a directory; directory
// sources concatenate every readable text file under the tree into one
// document.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/loader"
	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

const (
	// DefaultTimeout bounds each API request.
	DefaultTimeout = 30 * time.Second

	// maxFileSize caps per-file content. The API inlines blobs up to
	// this size; anything larger is skipped in tree mode.
	maxFileSize = 1 << 20
)

// Config holds GitHub loader settings.
type Config struct {
	// Token authenticates API requests. Empty means unauthenticated
	// access, which works for public repositories at a lower rate limit.
	Token string

	// BaseURL overrides the API endpoint, for GitHub Enterprise or tests.
	BaseURL string

	// Timeout bounds each API request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Loader fetches repository content addressed as
// github://owner/repo[/path][@ref].
type Loader struct {
	gh *gh.Client
}

// NewLoader creates a GitHub loader.
func NewLoader(ctx context.Context, cfg Config) (*Loader, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = timeout

	client := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, domain.ConfigErrorf("github base URL: %v", err)
		}
	}

	return &Loader{gh: client}, nil
}

// Load fetches source. A file path yields that file; a directory path,
// or no path at all, yields the repository tree under it.
func (l *Loader) Load(ctx context.Context, source string) (*domain.SourceDocument, error) {
	owner, repo, path, ref, err := parseSource(source)
	if err != nil {
		return nil, err
	}

	opts := &gh.RepositoryContentGetOptions{Ref: ref}
	fileContent, _, _, err := l.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, classify("get contents", err)
	}

	if fileContent != nil {
		content, err := fileContent.GetContent()
		if err != nil {
			return nil, fmt.Errorf("github: decode content: %w", err)
		}
		text, title := loader.CleanDocument(path, content)
		if title == "" {
			title = loader.TitleFromPath(path)
		}
		return &domain.SourceDocument{Title: title, URI: source, Text: text}, nil
	}

	return l.loadTree(ctx, source, owner, repo, path, ref)
}

// loadTree concatenates the readable text files under dir into one
// document, each preceded by its repository path.
func (l *Loader) loadTree(ctx context.Context, source, owner, repo, dir, ref string) (*domain.SourceDocument, error) {
	if ref == "" {
		repository, _, err := l.gh.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, classify("get repository", err)
		}
		ref = repository.GetDefaultBranch()
	}

	tree, _, err := l.gh.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, classify("get tree", err)
	}

	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	var sb strings.Builder
	files := 0
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		if prefix != "" && !strings.HasPrefix(path, prefix) {
			continue
		}
		if isBinaryPath(path) || entry.GetSize() > maxFileSize {
			continue
		}

		content, err := l.blobContent(ctx, owner, repo, entry.GetSHA())
		if err != nil {
			// Unreadable blobs are skipped, not fatal.
			continue
		}

		text, _ := loader.CleanDocument(path, content)
		if text == "" {
			continue
		}
		if files > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s\n\n%s", path, text)
		files++
	}

	if files == 0 {
		return nil, fmt.Errorf("%w: no readable text files under %s", domain.ErrNotFound, source)
	}

	title := repo
	if dir != "" {
		title = loader.TitleFromPath(dir)
	}
	return &domain.SourceDocument{Title: title, URI: source, Text: sb.String()}, nil
}

// blobContent fetches and decodes one blob.
func (l *Loader) blobContent(ctx context.Context, owner, repo, sha string) (string, error) {
	blob, _, err := l.gh.Git.GetBlob(ctx, owner, repo, sha)
	if err != nil {
		return "", classify("get blob", err)
	}

	if blob.GetEncoding() == "base64" {
		raw := strings.ReplaceAll(blob.GetContent(), "\n", "")
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return "", fmt.Errorf("decode blob: %w", err)
		}
		return string(decoded), nil
	}
	return blob.GetContent(), nil
}

// parseSource splits github://owner/repo[/path][@ref].
func parseSource(source string) (owner, repo, path, ref string, err error) {
	s := strings.TrimPrefix(strings.TrimSpace(source), "github://")
	if at := strings.LastIndex(s, "@"); at >= 0 {
		ref = s[at+1:]
		s = s[:at]
	}

	parts := strings.SplitN(strings.Trim(s, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", "", domain.ConfigErrorf("github source must be github://owner/repo[/path][@ref], got %q", source)
	}

	owner, repo = parts[0], parts[1]
	if len(parts) == 3 {
		path = strings.Trim(parts[2], "/")
	}
	return owner, repo, path, ref, nil
}

// binaryExts lists extensions never worth fetching as document text.
var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".webp": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".bin": true, ".dat": true, ".db": true, ".sqlite": true,
	".pyc": true, ".class": true, ".o": true, ".a": true,
}

func isBinaryPath(path string) bool {
	return binaryExts[strings.ToLower(filepath.Ext(path))]
}

// classify maps API failures onto the error taxonomy: auth and missing
// paths are configuration, rate limits and server errors transient.
func classify(op string, err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return domain.TransientErrorf("github: %s: %v", op, err)
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return domain.TransientErrorf("github: %s: %v", op, err)
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status := ghErr.Response.StatusCode
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound:
			return domain.ConfigErrorf("github: %s: %v", op, err)
		case status == http.StatusTooManyRequests || status >= 500:
			return domain.TransientErrorf("github: %s: %v", op, err)
		default:
			return fmt.Errorf("github: %s: %w", op, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"), strings.Contains(msg, "timeout"), strings.Contains(msg, "eof"):
		return domain.TransientErrorf("github: %s: %v", op, err)
	default:
		return fmt.Errorf("github: %s: %w", op, err)
	}
}
