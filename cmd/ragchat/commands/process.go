package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"ragchat/internal/domain"
)

var (
	processChunking string
	processHybrid   bool
	processReranker bool
	processEnhance  string
	processWait     bool
)

func NewProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Build the retrieval index for the uploaded document",
		Long: `Start processing the uploaded document with the configured options.
Flags override the config file for this run. The options are locked in
once processing starts; upload the document again to change them.`,
		Example: `  ragchat process --chunking semantic --hybrid --reranker --wait
  ragchat process --enhance decomposition`,
		Args: cobra.NoArgs,
		RunE: runProcess,
	}

	cmd.Flags().StringVar(&processChunking, "chunking", "", "Chunking method: standard or semantic")
	cmd.Flags().BoolVar(&processHybrid, "hybrid", false, "Combine keyword and dense retrieval")
	cmd.Flags().BoolVar(&processReranker, "reranker", false, "Rerank retrieved passages")
	cmd.Flags().StringVar(&processEnhance, "enhance", "", "Query enhancement: normal, expansion or decomposition")
	cmd.Flags().BoolVar(&processWait, "wait", false, "Poll until processing finishes")
	return cmd
}

// processPatch collects the flags that were set explicitly.
func processPatch(cmd *cobra.Command) (domain.ConfigPatch, error) {
	var patch domain.ConfigPatch
	settings := []struct {
		flag, key, value string
	}{
		{"chunking", "chunking", processChunking},
		{"hybrid", "hybrid", strconv.FormatBool(processHybrid)},
		{"reranker", "reranker", strconv.FormatBool(processReranker)},
		{"enhance", "enhance", processEnhance},
	}
	for _, s := range settings {
		if !cmd.Flags().Changed(s.flag) {
			continue
		}
		p, err := domain.ParseSetting(s.key, s.value)
		if err != nil {
			return patch, err
		}
		patch = mergePatch(patch, p)
	}
	return patch, nil
}

func mergePatch(a, b domain.ConfigPatch) domain.ConfigPatch {
	if b.ChunkingMethod != nil {
		a.ChunkingMethod = b.ChunkingMethod
	}
	if b.HybridSearch != nil {
		a.HybridSearch = b.HybridSearch
	}
	if b.UseReranker != nil {
		a.UseReranker = b.UseReranker
	}
	if b.QueryEnhancementMode != nil {
		a.QueryEnhancementMode = b.QueryEnhancementMode
	}
	return a
}

func runProcess(cmd *cobra.Command, args []string) error {
	patch, err := processPatch(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := restored(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	ctrl := a.session.Controller
	// A restored processing job is already being polled; just follow it.
	if job, ok := ctrl.Job(); ok && job.State == domain.StateProcessing && patch.Empty() {
		fmt.Fprintf(out, "%s is already processing\n", job.Document.Name)
	} else {
		if !patch.Empty() {
			if _, err := a.session.Bundle.Set(patch); err != nil {
				return err
			}
		}
		if err := ctrl.Start(ctx); err != nil {
			return fmt.Errorf("processing failed: %w", err)
		}
		job, _ := ctrl.Job()
		fmt.Fprintf(out, "Processing %s\n", job.Document.Name)
	}
	if !processWait {
		return nil
	}

	state, err := ctrl.Wait(ctx)
	if err != nil {
		return fmt.Errorf("processing did not finish (state %s): %w", state, err)
	}
	fmt.Fprintf(out, "Document is %s\n", state)
	return nil
}
