package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Section is one entry of a document skeleton: a title, a revisable
// summary, open questions the section should answer, and the set of
// chunk indices that support it.
type Section struct {
	// Title is the section heading.
	Title string `json:"title"`

	// Summary is the revisable description of the section's content.
	Summary string `json:"summary"`

	// Questions are open questions the final section should answer.
	Questions []string `json:"questions,omitempty"`

	// SupportingChunkIndices are the chunk SequenceIndexes cited as
	// evidence. Always sorted ascending, no duplicates, every entry a
	// valid index into the document's chunk sequence.
	SupportingChunkIndices []int `json:"supporting_chunk_indices,omitempty"`
}

// Skeleton is the evolving structured outline of a document, built
// incrementally across batches. It is exclusively owned by the skeleton
// build loop: one transition per batch, each bumping Version by exactly
// one. Sealing freezes it for hand-off to report synthesis; any
// mutation afterwards fails with ErrSkeletonSealed.
type Skeleton struct {
	// DocumentID identifies the document this outline describes.
	DocumentID string `json:"document_id"`

	// Title is the document title, possibly suggested by the first
	// reasoning step.
	Title string `json:"title"`

	// DocumentType classifies the document (report, paper, manual...).
	DocumentType string `json:"document_type,omitempty"`

	// Version counts applied transitions. A fresh skeleton is version 0;
	// after N batches it is exactly N.
	Version int `json:"version"`

	// Sections is the ordered outline.
	Sections []Section `json:"sections"`

	// CreatedAt is when the skeleton was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the last transition was applied.
	UpdatedAt time.Time `json:"updated_at"`

	sealed bool
}

// NewSkeleton returns an empty unsealed skeleton at version 0.
func NewSkeleton(documentID string) *Skeleton {
	now := time.Now().UTC()
	return &Skeleton{
		DocumentID: documentID,
		Sections:   []Section{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Sealed reports whether the skeleton has been frozen.
func (s *Skeleton) Sealed() bool {
	return s.sealed
}

// Seal freezes the skeleton. Idempotent.
func (s *Skeleton) Seal() {
	s.sealed = true
}

// Clone returns a deep copy, including the sealed flag.
func (s *Skeleton) Clone() *Skeleton {
	cp := *s
	cp.Sections = make([]Section, len(s.Sections))
	for i, sec := range s.Sections {
		cp.Sections[i] = sec
		cp.Sections[i].Questions = append([]string(nil), sec.Questions...)
		cp.Sections[i].SupportingChunkIndices = append([]int(nil), sec.SupportingChunkIndices...)
	}
	return &cp
}

// SectionProposal is one proposed outline entry from the reasoning step.
type SectionProposal struct {
	Title                  string   `json:"title"`
	Description            string   `json:"description"`
	Order                  int      `json:"order"`
	Questions              []string `json:"questions"`
	SupportingChunkIndices []int    `json:"supporting_chunk_indices"`
}

// SkeletonProposal is the reasoning output for the first batch: an
// initial outline plus document classification.
type SkeletonProposal struct {
	DocumentType   string            `json:"document_type"`
	SuggestedTitle string            `json:"suggested_title"`
	Sections       []SectionProposal `json:"sections"`
}

// SectionUpdate revises one existing section, matched by title.
type SectionUpdate struct {
	Title                  string   `json:"title"`
	UpdatedDescription     string   `json:"updated_description"`
	AdditionalQuestions    []string `json:"additional_questions"`
	SupportingChunkIndices []int    `json:"supporting_chunk_indices"`
}

// SkeletonRevision is the reasoning output for every batch after the
// first. A revision may add sections, update existing ones, and
// explicitly reorder the outline. An empty revision is still a valid
// transition (the batch contributed nothing new).
type SkeletonRevision struct {
	ShouldUpdateStructure bool              `json:"should_update_structure"`
	NewSections           []SectionProposal `json:"new_sections"`
	UpdatedSections       []SectionUpdate   `json:"updated_sections"`
	ReorderedTitles       []string          `json:"reordered_titles"`
}

// ApplyStats summarises what a transition changed, for logging.
type ApplyStats struct {
	SectionsAdded   int
	SectionsUpdated int
	IndicesDropped  int
	Reordered       bool
}

// ApplyProposal applies the first-batch reasoning output. Exactly one
// version bump. chunkCount bounds supporting-index validation:
// out-of-range citations are dropped, not fatal.
func (s *Skeleton) ApplyProposal(p SkeletonProposal, chunkCount int) (ApplyStats, error) {
	if s.sealed {
		return ApplyStats{}, ErrSkeletonSealed
	}

	var stats ApplyStats

	proposals := append([]SectionProposal(nil), p.Sections...)
	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].Order < proposals[j].Order
	})

	for _, sp := range proposals {
		if strings.TrimSpace(sp.Title) == "" {
			continue
		}
		indices, dropped := clampIndices(sp.SupportingChunkIndices, chunkCount)
		stats.IndicesDropped += dropped
		s.Sections = append(s.Sections, Section{
			Title:                  sp.Title,
			Summary:                sp.Description,
			Questions:              dedupeStrings(sp.Questions),
			SupportingChunkIndices: indices,
		})
		stats.SectionsAdded++
	}

	if s.Title == "" && p.SuggestedTitle != "" {
		s.Title = p.SuggestedTitle
	}
	if p.DocumentType != "" {
		s.DocumentType = p.DocumentType
	}

	s.bump()
	return stats, nil
}

// ApplyRevision applies a later-batch reasoning output. Exactly one
// version bump, even for an empty revision. Updates match sections by
// case-insensitive title containment; unmatched updates are ignored.
// An explicit reorder is honoured only when it names every current
// section exactly once.
func (s *Skeleton) ApplyRevision(r SkeletonRevision, chunkCount int) (ApplyStats, error) {
	if s.sealed {
		return ApplyStats{}, ErrSkeletonSealed
	}

	var stats ApplyStats

	for _, up := range r.UpdatedSections {
		idx := s.findSection(up.Title)
		if idx < 0 {
			continue
		}
		sec := &s.Sections[idx]
		if strings.TrimSpace(up.UpdatedDescription) != "" {
			sec.Summary = up.UpdatedDescription
		}
		sec.Questions = dedupeStrings(append(sec.Questions, up.AdditionalQuestions...))
		indices, dropped := clampIndices(append(sec.SupportingChunkIndices, up.SupportingChunkIndices...), chunkCount)
		stats.IndicesDropped += dropped
		sec.SupportingChunkIndices = indices
		stats.SectionsUpdated++
	}

	newSections := append([]SectionProposal(nil), r.NewSections...)
	sort.SliceStable(newSections, func(i, j int) bool {
		return newSections[i].Order < newSections[j].Order
	})
	for _, sp := range newSections {
		if strings.TrimSpace(sp.Title) == "" || s.findSection(sp.Title) >= 0 {
			continue
		}
		indices, dropped := clampIndices(sp.SupportingChunkIndices, chunkCount)
		stats.IndicesDropped += dropped
		s.Sections = append(s.Sections, Section{
			Title:                  sp.Title,
			Summary:                sp.Description,
			Questions:              dedupeStrings(sp.Questions),
			SupportingChunkIndices: indices,
		})
		stats.SectionsAdded++
	}

	if len(r.ReorderedTitles) > 0 {
		stats.Reordered = s.reorder(r.ReorderedTitles)
	}

	s.bump()
	return stats, nil
}

// ValidateReferences checks that every supporting index cites an
// existing chunk. Used as the post-transition invariant.
func (s *Skeleton) ValidateReferences(chunkCount int) error {
	for _, sec := range s.Sections {
		for _, idx := range sec.SupportingChunkIndices {
			if idx < 0 || idx >= chunkCount {
				return fmt.Errorf("section %q cites chunk %d outside [0,%d)", sec.Title, idx, chunkCount)
			}
		}
	}
	return nil
}

// SectionTitles returns the titles in outline order.
func (s *Skeleton) SectionTitles() []string {
	titles := make([]string, len(s.Sections))
	for i, sec := range s.Sections {
		titles[i] = sec.Title
	}
	return titles
}

func (s *Skeleton) bump() {
	s.Version++
	s.UpdatedAt = time.Now().UTC()
}

// findSection locates a section by case-insensitive title containment
// in either direction, so a model referring to "Methods" still matches
// "3. Methods and Materials".
func (s *Skeleton) findSection(title string) int {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" {
		return -1
	}
	for i, sec := range s.Sections {
		have := strings.ToLower(sec.Title)
		if have == needle || strings.Contains(have, needle) || strings.Contains(needle, have) {
			return i
		}
	}
	return -1
}

// reorder applies an explicit ordering. Returns false (no change) unless
// titles is a permutation naming every current section exactly once.
func (s *Skeleton) reorder(titles []string) bool {
	if len(titles) != len(s.Sections) {
		return false
	}
	used := make([]bool, len(s.Sections))
	ordered := make([]Section, 0, len(s.Sections))
	for _, t := range titles {
		found := -1
		needle := strings.ToLower(strings.TrimSpace(t))
		for i, sec := range s.Sections {
			if !used[i] && strings.ToLower(sec.Title) == needle {
				found = i
				break
			}
		}
		if found < 0 {
			return false
		}
		used[found] = true
		ordered = append(ordered, s.Sections[found])
	}
	s.Sections = ordered
	return true
}

// clampIndices dedupes, drops out-of-range entries and returns the kept
// indices sorted ascending plus the dropped count.
func clampIndices(indices []int, chunkCount int) ([]int, int) {
	seen := make(map[int]bool, len(indices))
	kept := make([]int, 0, len(indices))
	dropped := 0
	for _, idx := range indices {
		if idx < 0 || idx >= chunkCount {
			dropped++
			continue
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		kept = append(kept, idx)
	}
	sort.Ints(kept)
	return kept, dropped
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
