package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
)

var (
	processOutput       string
	processCollection   string
	processMaxChars     int
	processTopK         int
	processContextLimit int
	processStoreKind    string
	processFixedChunks  bool
	processJSON         bool
	processResume       string
	processFromBatch    int
)

var processCmd = &cobra.Command{
	Use:   "process [source]",
	Short: "Run a document through the report pipeline",
	Long: `Process loads a document, chunks and indexes it into a vector
collection, grows a report skeleton over the batches, and synthesizes
each section from retrieved passages.

The source is a local path, github://owner/repo[/path][@ref], or
gdrive://fileID. The report markdown goes to stdout unless --output is
given. When a batch fails mid-run the last good skeleton is saved next
to the output so the run can be resumed with --resume.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "write the report markdown to this path")
	processCmd.Flags().StringVarP(&processCollection, "collection", "c", "", "vector collection name (default derived from the source)")
	processCmd.Flags().IntVar(&processMaxChars, "max-chars", 0, "reasoning batch character budget")
	processCmd.Flags().IntVar(&processTopK, "top-k", 0, "passages retrieved per section")
	processCmd.Flags().IntVar(&processContextLimit, "context-limit", 0, "passages kept after reranking")
	processCmd.Flags().StringVar(&processStoreKind, "store", "", "vector store backend, qdrant or sqlite (default: qdrant when qdrant.url is set, else sqlite)")
	processCmd.Flags().BoolVar(&processFixedChunks, "fixed-chunking", false, "split on fixed-size windows instead of semantic boundaries")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the report as JSON")
	processCmd.Flags().StringVar(&processResume, "resume", "", "skeleton snapshot file to resume from")
	processCmd.Flags().IntVar(&processFromBatch, "from-batch", 0, "first batch index to apply when resuming")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	comps, err := buildComponents(ctx, processStoreKind, processFixedChunks)
	if err != nil {
		return err
	}
	pipeline := comps.pipelineService()

	req := domain.ProcessRequest{
		Source:       args[0],
		Collection:   resolveCollection(processCollection, args[0]),
		MaxChars:     tunable(processMaxChars, "pipeline.max_chars"),
		TopK:         tunable(processTopK, "pipeline.top_k"),
		ContextLimit: tunable(processContextLimit, "pipeline.context_limit"),
	}

	var report *domain.Report
	var runErr error
	if processResume != "" {
		skeleton, err := readSkeletonSnapshot(processResume)
		if err != nil {
			return err
		}
		report, runErr = pipeline.ResumeSkeleton(ctx, domain.ResumeRequest{
			ProcessRequest: req,
			Skeleton:       skeleton,
			FromBatch:      processFromBatch,
		})
	} else {
		report, runErr = pipeline.ProcessDocument(ctx, req)
	}
	if runErr != nil {
		saveSnapshotOnFailure(cmd, args[0], req.Collection, runErr)
		return fmt.Errorf("failed to process %s: %w", args[0], runErr)
	}

	return emitReport(cmd, report)
}

// saveSnapshotOnFailure persists the last good skeleton carried by a
// batch-scoped processing error and prints the command that resumes
// the run. Errors without a snapshot leave nothing behind.
func saveSnapshotOnFailure(cmd *cobra.Command, source, collection string, runErr error) {
	var perr *domain.ProcessingError
	if !errors.As(runErr, &perr) || perr.Snapshot == nil {
		return
	}

	data, err := json.MarshalIndent(perr.Snapshot, "", "  ")
	if err != nil {
		logger.Warn("Could not encode skeleton snapshot: %v", err)
		return
	}

	dir := "."
	if processOutput != "" {
		dir = filepath.Dir(processOutput)
	}
	path := filepath.Join(dir, collection+".skeleton.json")
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		logger.Warn("Could not save skeleton snapshot: %v", err)
		return
	}

	cmd.PrintErrf("Saved skeleton v%d to %s\n", perr.LastGoodVersion, path)
	cmd.PrintErrf("Resume with: longdoc process %s --resume %s --from-batch %d\n",
		source, path, perr.BatchIndex)
}

func readSkeletonSnapshot(path string) (*domain.Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skeleton snapshot: %w", err)
	}
	var skeleton domain.Skeleton
	if err := json.Unmarshal(data, &skeleton); err != nil {
		return nil, fmt.Errorf("failed to decode skeleton snapshot %s: %w", path, err)
	}
	return &skeleton, nil
}

func emitReport(cmd *cobra.Command, report *domain.Report) error {
	if processJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	markdown := report.Markdown()
	if processOutput == "" {
		cmd.Println(markdown)
		return nil
	}

	if err := writeFileAtomic(processOutput, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	cmd.Printf("Report written to %s (status %s)\n", processOutput, report.Status)
	if report.Status == domain.ReportStatusPartial {
		cmd.PrintErrf("Sections failed: %s\n", strings.Join(report.FailedSections, ", "))
	}
	return nil
}

// writeFileAtomic writes via a temp file in the destination directory
// and renames it into place, so readers never observe a half-written
// report.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
