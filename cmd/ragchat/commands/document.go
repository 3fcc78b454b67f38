package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ragchat/internal/document"
	"ragchat/internal/service"
)

func NewUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF, replacing the current document",
		Long: `Upload a PDF, replacing any document already on the service.

The file is checked locally first: it must have a .pdf extension, be at most
50MB and parse as a PDF. A new upload must be processed before questions
can be asked.`,
		Example: `  ragchat upload notes.pdf
  ragchat upload notes.pdf && ragchat process --wait`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	info, err := document.Inspect(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	doc, err := a.session.Controller.Upload(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s, %d pages)\n", doc.Name, doc.Size, info.Pages)
	return nil
}

func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the uploaded document",
		Args:  cobra.NoArgs,
		RunE:  runDelete,
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := restored(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	job, ok := a.session.Controller.Job()
	if err := a.session.Controller.Delete(cmd.Context()); err != nil {
		if errors.Is(err, service.ErrNoDocument) {
			fmt.Fprintln(cmd.OutOrStdout(), "No document uploaded")
			return nil
		}
		return fmt.Errorf("delete failed: %w", err)
	}
	if ok {
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", job.Document.Name)
	}
	return nil
}
