package file

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeDocx(t *testing.T, dir, name string, parts map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for partName, content := range parts {
		w, err := zw.Create(partName)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

const docxBody = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
<w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
</w:body>
</w:document>`

const docxCore = `<?xml version="1.0"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Quarterly Report</dc:title>
</cp:coreProperties>`

func TestLoadPlainText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hello_world.txt", "Line one.\r\nLine two.\n")

	doc, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Line one.\nLine two.\n", doc.Text)
	assert.Equal(t, "hello world", doc.Title)
	assert.Equal(t, path, doc.URI)
}

func TestLoadFileURI(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "content")

	doc, err := NewLoader().Load(context.Background(), "file://"+path)
	require.NoError(t, err)

	assert.Equal(t, "content", doc.Text)
	assert.Equal(t, "file://"+path, doc.URI)
}

func TestLoadMarkdown(t *testing.T) {
	dir := t.TempDir()
	content := "---\ntitle: Router Guide\nauthor: ops\n---\n# Heading\n\nBody text with [link](https://example.com).\n"
	path := writeFile(t, dir, "guide.md", content)

	doc, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Router Guide", doc.Title)
	assert.Equal(t, "Heading\n\nBody text with link.", doc.Text)
}

func TestLoadMarkdownTitleFromHeading(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.md", "# Install Steps\n\nMount the bracket.\n")

	doc, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Install Steps", doc.Title)
}

func TestLoadMarkdownTitleFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "setup_guide.md", "no headings here\n")

	doc, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "setup guide", doc.Title)
}

func TestLoadDocx(t *testing.T) {
	dir := t.TempDir()
	path := writeDocx(t, dir, "report.docx", map[string]string{
		"word/document.xml": docxBody,
		"docProps/core.xml": docxCore,
	})

	doc, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "First paragraph.\nSecond paragraph.", doc.Text)
	assert.Equal(t, "Quarterly Report", doc.Title)
}

func TestLoadDocxTitleFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := writeDocx(t, dir, "annual-summary.docx", map[string]string{
		"word/document.xml": docxBody,
	})

	doc, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "annual summary", doc.Title)
}

func TestLoadDocxCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.docx", "not a zip archive")

	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestLoadDirectory(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
	assert.Contains(t, err.Error(), "directory")
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), "file://")
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}
