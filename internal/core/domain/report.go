package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReportStatus is the completion status a finished run always carries.
type ReportStatus string

const (
	// ReportStatusComplete means every section synthesized successfully.
	ReportStatusComplete ReportStatus = "complete"

	// ReportStatusPartial means at least one section failed synthesis
	// and was emitted as a placeholder; the rest rendered normally.
	ReportStatusPartial ReportStatus = "partial"

	// ReportStatusFailed means the run aborted before a usable report.
	ReportStatusFailed ReportStatus = "failed"
)

// Citation records one chunk used as evidence for a rendered section.
type Citation struct {
	// ChunkIndex is the cited chunk's SequenceIndex.
	ChunkIndex int `json:"chunk_index"`

	// Score is the rerank (or similarity) score at synthesis time.
	Score float64 `json:"score"`

	// Snippet is a short excerpt of the cited chunk.
	Snippet string `json:"snippet,omitempty"`
}

// ReportSection is one rendered section of the final report.
type ReportSection struct {
	// Title matches the skeleton section title.
	Title string `json:"title"`

	// Content is the synthesized prose. For failed sections it holds
	// the failure placeholder.
	Content string `json:"content"`

	// Citations list the chunks the prose was grounded on.
	Citations []Citation `json:"citations,omitempty"`

	// Failed marks a section whose synthesis failed after retries.
	Failed bool `json:"failed,omitempty"`

	// Error is the failure reason for a failed section.
	Error string `json:"error,omitempty"`
}

// Report is the final output: sections in skeleton order, each with
// synthesized prose and citations. Immutable once produced; a new run
// produces a new report, never an update.
type Report struct {
	// DocumentID identifies the source document.
	DocumentID string `json:"document_id"`

	// Title is the document title from the sealed skeleton.
	Title string `json:"title"`

	// SkeletonVersion records the sealed skeleton version the report
	// was synthesized from, for traceability.
	SkeletonVersion int `json:"skeleton_version"`

	// Status is complete, partial, or failed.
	Status ReportStatus `json:"status"`

	// Sections are the rendered sections in skeleton order.
	Sections []ReportSection `json:"sections"`

	// FailedSections lists the titles of sections that failed.
	FailedSections []string `json:"failed_sections,omitempty"`

	// GeneratedAt is when synthesis finished.
	GeneratedAt time.Time `json:"generated_at"`
}

// FailedPlaceholder is the content emitted for a section whose
// synthesis failed.
const FailedPlaceholder = "[section synthesis failed]"

// Markdown renders the report as a standalone markdown document:
// title, status header, sections in order, citations per section.
func (r *Report) Markdown() string {
	var sb strings.Builder

	title := r.Title
	if title == "" {
		title = r.DocumentID
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "Status: %s", r.Status)
	if len(r.FailedSections) > 0 {
		fmt.Fprintf(&sb, " (failed: %s)", strings.Join(r.FailedSections, ", "))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Generated: %s | Skeleton v%d\n", r.GeneratedAt.Format(time.RFC3339), r.SkeletonVersion)

	for _, sec := range r.Sections {
		fmt.Fprintf(&sb, "\n## %s\n\n", sec.Title)
		if sec.Failed {
			fmt.Fprintf(&sb, "%s\n", FailedPlaceholder)
			if sec.Error != "" {
				fmt.Fprintf(&sb, "\n> %s\n", sec.Error)
			}
			continue
		}
		sb.WriteString(sec.Content)
		sb.WriteString("\n")
		if len(sec.Citations) > 0 {
			sb.WriteString("\nSources: ")
			refs := make([]string, len(sec.Citations))
			for i, c := range sec.Citations {
				refs[i] = fmt.Sprintf("chunk %d", c.ChunkIndex)
			}
			sb.WriteString(strings.Join(refs, ", "))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
