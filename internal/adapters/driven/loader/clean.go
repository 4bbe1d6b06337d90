package loader

import (
	"html"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	imageRe        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	linkRe         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headingRe      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	fenceRe        = regexp.MustCompile("(?m)^(```|~~~).*$")
	blockquoteRe   = regexp.MustCompile(`(?m)^>\s*`)
	hrRe           = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkerRe   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedListRe = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)

	titleTagRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTagRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTagRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headTagRe    = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTagRe     = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockCloseRe = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	blockOpenRe  = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTagRe      = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	anyTagRe     = regexp.MustCompile(`<[^>]+>`)
	multiSpaceRe = regexp.MustCompile(`[ \t]+`)
)

// MarkdownExt reports whether path names a markdown file.
func MarkdownExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// HTMLExt reports whether path names an HTML file.
func HTMLExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

// NormaliseNewlines converts Windows line endings to Unix ones so rune
// offsets downstream are stable across platforms.
func NormaliseNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// SplitFrontMatter removes a leading front matter block delimited by
// "---" lines and returns the body plus the block's title value, if
// any. Content without a complete block passes through unchanged.
func SplitFrontMatter(content string) (body, title string) {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return content, ""
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[i+1:], "\n"), title
		}
		if k, v, ok := strings.Cut(lines[i], ":"); ok && strings.EqualFold(strings.TrimSpace(k), "title") {
			title = strings.Trim(strings.TrimSpace(v), `"'`)
		}
	}

	// No closing delimiter; treat the whole thing as content.
	return content, ""
}

// MarkdownTitle returns the first H1 heading text, or "" when the
// content has none.
func MarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}

// StripMarkdown reduces markdown to plain prose: markup removed, link
// and heading text kept, code block content kept without its fences.
func StripMarkdown(content string) string {
	content = fenceRe.ReplaceAllString(content, "")
	content = imageRe.ReplaceAllString(content, "")
	content = linkRe.ReplaceAllString(content, "$1")
	content = headingRe.ReplaceAllString(content, "")
	content = blockquoteRe.ReplaceAllString(content, "")
	content = hrRe.ReplaceAllString(content, "")
	content = listMarkerRe.ReplaceAllString(content, "")
	content = numberedListRe.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")
	content = strings.ReplaceAll(content, "`", "")

	content = multiNewlineRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// HTMLTitle returns the text of the document's <title> element, or ""
// when there is none.
func HTMLTitle(content string) string {
	m := titleTagRe.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// StripHTML reduces an HTML document to readable plain text. Script,
// style and head content is dropped entirely, block boundaries become
// newlines, and entities are decoded.
func StripHTML(content string) string {
	content = scriptTagRe.ReplaceAllString(content, "")
	content = styleTagRe.ReplaceAllString(content, "")
	content = headTagRe.ReplaceAllString(content, "")
	content = svgTagRe.ReplaceAllString(content, "")
	content = htmlComment.ReplaceAllString(content, "")

	content = blockOpenRe.ReplaceAllString(content, "\n")
	content = blockCloseRe.ReplaceAllString(content, "\n")
	content = brTagRe.ReplaceAllString(content, "\n")
	content = anyTagRe.ReplaceAllString(content, "")

	content = html.UnescapeString(content)
	content = multiSpaceRe.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	var kept []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// CleanDocument normalises document text by file name: markdown files
// lose front matter and markup, HTML files lose their tags, everything
// else just gets its line endings normalised.
func CleanDocument(path, content string) (text, title string) {
	content = NormaliseNewlines(content)

	if HTMLExt(path) {
		return StripHTML(content), HTMLTitle(content)
	}
	if !MarkdownExt(path) {
		return content, ""
	}

	body, fmTitle := SplitFrontMatter(content)
	title = fmTitle
	if title == "" {
		title = MarkdownTitle(body)
	}
	return StripMarkdown(body), title
}

// TitleFromPath derives a display title from a file name: extension
// trimmed, separators spaced out.
func TitleFromPath(path string) string {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return name
}
