package openai

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

const analystInstructions = `You are an assistant that analyzes long documents and builds structured report outlines. Work strictly from the text you are given. Accuracy matters more than completeness: never invent sections, facts, or questions the text does not support.`

const writerInstructions = `You are an assistant that writes report prose from retrieved source passages. Work strictly from the passages you are given. If the passages do not support a statement, leave it out.`

// proposePrompt asks for the initial skeleton from the first batch.
// Chunks in the passage are labelled [Chunk N]; the model cites those
// numbers as supporting_chunk_indices.
func proposePrompt(batchText string) string {
	var b strings.Builder
	b.WriteString(`Analyze the passage below and draft the skeleton of a report about it. Focus on content the passage actually contains.

PASSAGE:
`)
	b.WriteString(batchText)
	b.WriteString(`

Tasks:
1. Identify the document type and suggest a main title based on the content.
2. Identify the MAIN SECTIONS genuinely covered by the passage.
3. For each section, write 2-3 DIRECT questions answerable from the passage.
4. For each section, cite the chunk numbers (the [Chunk N] labels) that support it in supporting_chunk_indices.

IMPORTANT:
- Only create a section if the passage actually covers it.
- Questions must be grounded in specific statements, never inferred.
- Keep questions short and focused on the main content.
- order starts at 1 and follows the reading order of the document.
- supporting_chunk_indices may only contain numbers that appear as [Chunk N] labels in the passage.`)
	return b.String()
}

// revisePrompt asks for a revision of the current skeleton given the
// next batch. The full outline goes into the prompt so the model can
// reference existing sections by their exact titles.
func revisePrompt(current *domain.Skeleton, batchText string) string {
	var b strings.Builder
	b.WriteString(`UPDATE the report skeleton with the new passage below. Focus on factual content.

CURRENT SKELETON:
`)
	b.WriteString(skeletonOutline(current))
	b.WriteString(`
NEW PASSAGE:
`)
	b.WriteString(batchText)
	b.WriteString(`

Tasks:
1. Add a new section only if the passage genuinely introduces new material.
2. For each new section, write 2-3 direct questions from the passage.
3. Update an existing section's description when the passage adds to it.
4. Cite the chunk numbers (the [Chunk N] labels) supporting anything you add or update.
5. If the document's own structure implies a different section order, list every section title in the corrected order in reordered_titles. Otherwise leave reordered_titles empty.

IMPORTANT:
- Reference existing sections by their exact titles.
- Leave new_sections and updated_sections empty when the passage changes nothing, and set should_update_structure to false.
- Do not add too many questions.
- When reordered_titles is used it must contain every section title exactly once.`)
	return b.String()
}

// skeletonOutline renders the current skeleton for the revision prompt.
func skeletonOutline(sk *domain.Skeleton) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n", sk.Title)
	fmt.Fprintf(&b, "Sections: %d\n\n", len(sk.Sections))
	for i, sec := range sk.Sections {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, sec.Title, sec.Summary)
		for _, q := range sec.Questions {
			fmt.Fprintf(&b, "   - %s\n", q)
		}
	}
	return b.String()
}

// composePrompt asks for the prose of one report section from its
// reranked supporting passages.
func composePrompt(section domain.Section, passages []domain.ScoredChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the report section %q.\n\nSECTION BRIEF:\n%s\n", section.Title, section.Summary)
	if len(section.Questions) > 0 {
		b.WriteString("\nThe section should answer:\n")
		for _, q := range section.Questions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	b.WriteString("\nSOURCE PASSAGES:\n")
	for _, p := range passages {
		fmt.Fprintf(&b, "\n[Passage %d]\n%s\n", p.Metadata.ChunkIndex, p.Metadata.Text)
	}
	b.WriteString(`
IMPORTANT:
- Use only facts from the source passages.
- Write flowing prose without a heading; the section title is added elsewhere.
- If the passages cover only part of the brief, write the supported part and nothing more.`)
	return b.String()
}

// answerPrompt asks for an answer to an ad-hoc question from retrieved
// passages.
func answerPrompt(question string, passages []domain.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the passages below.\n\nQUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nPASSAGES:\n")
	for _, p := range passages {
		fmt.Fprintf(&b, "\n[Passage %d]\n%s\n", p.Metadata.ChunkIndex, p.Metadata.Text)
	}
	b.WriteString(`
IMPORTANT:
- Answer concisely and directly.
- If the passages do not contain the answer, say so plainly instead of guessing.`)
	return b.String()
}
