package cli

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

func newSubmissionCmd() *cobra.Command {
	f := &apiFlags{}
	cmd := &cobra.Command{
		Use:   "submission",
		Short: "Work on a task's submission on a running server",
	}
	addAPIFlags(cmd, f)
	cmd.AddCommand(newSubmissionShowCmd(f))
	cmd.AddCommand(newSubmissionTextCmd(f))
	cmd.AddCommand(newSubmissionAttachCmd(f))
	cmd.AddCommand(newSubmissionDetachCmd(f))
	cmd.AddCommand(newSubmissionDownloadCmd(f))
	cmd.AddCommand(newSubmissionFinalizeCmd(f, false))
	cmd.AddCommand(newSubmissionFinalizeCmd(f, true))
	return cmd
}

func printSubmission(w io.Writer, v *models.SubmissionView) error {
	_, _ = fmt.Fprintf(w, "Task %s: status=%s\n", v.Task.TaskID, v.Task.Status)
	if v.Submission == nil {
		_, _ = fmt.Fprintln(w, "No submission yet")
		return nil
	}
	s := v.Submission
	_, _ = fmt.Fprintf(w, "Submission %s by %s: %s\n", s.SubmissionID, s.UserID, s.Status)
	if s.TextContent != nil {
		_, _ = fmt.Fprintf(w, "Text (%d chars)\n", len([]rune(*s.TextContent)))
	}
	if len(s.Files) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FILE ID\tNAME\tTYPE\tSIZE")
	for _, f := range s.Files {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", f.FileID, f.FileName, f.FileType, f.FileSize)
	}
	return tw.Flush()
}

func newSubmissionShowCmd(f *apiFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show the submission of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			v, err := c.GetSubmission(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), v)
			}
			return printSubmission(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newSubmissionTextCmd(f *apiFlags) *cobra.Command {
	var text, fromFile string
	cmd := &cobra.Command{
		Use:   "text <task-id>",
		Short: "Save the submission text (--text, or --file; \"-\" reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromFile != "" {
				var r io.Reader = cmd.InOrStdin()
				if fromFile != "-" {
					fh, err := os.Open(fromFile)
					if err != nil {
						return err
					}
					defer func() { _ = fh.Close() }()
					r = fh
				}
				b, err := io.ReadAll(r)
				if err != nil {
					return err
				}
				text = string(b)
			} else if !cmd.Flags().Changed("text") {
				return errors.New("--text or --file is required")
			}
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			s, err := c.SaveText(cmd.Context(), args[0], text)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved text on submission %s (%s)\n", s.SubmissionID, s.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Text content")
	cmd.Flags().StringVar(&fromFile, "file", "", "Read text from this file")
	return cmd
}

// detectType returns the MIME type for path: the extension's registered type,
// else the sniffed content type.
func detectType(path string) (string, error) {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t, nil
	}
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

func newSubmissionAttachCmd(f *apiFlags) *cobra.Command {
	var fileType, name string
	cmd := &cobra.Command{
		Use:   "attach <task-id> <path>",
		Short: "Upload a file to the draft submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[1]
			fh, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = fh.Close() }()
			info, err := fh.Stat()
			if err != nil {
				return err
			}
			if fileType == "" {
				if fileType, err = detectType(path); err != nil {
					return err
				}
			}
			if name == "" {
				name = filepath.Base(path)
			}
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			sf, err := c.AttachFile(cmd.Context(), args[0], name, fileType, info.Size(), fh)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Attached %s as %s (%s, %d bytes)\n", sf.FileName, sf.FileID, sf.FileType, sf.FileSize)
			return nil
		},
	}
	cmd.Flags().StringVar(&fileType, "type", "", "Declared MIME type (default: from extension or content)")
	cmd.Flags().StringVar(&name, "name", "", "File name to store (default: base name of path)")
	return cmd
}

func newSubmissionDetachCmd(f *apiFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "detach <file-id>",
		Short: "Remove a file from the draft submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			if err := c.DetachFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Detached %s\n", args[0])
			return nil
		},
	}
}

func newSubmissionDownloadCmd(f *apiFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download a submitted file (to stdout unless --output)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				fh, err := os.Create(output)
				if err != nil {
					return err
				}
				defer func() { _ = fh.Close() }()
				w = fh
			}
			_, n, err := c.DownloadFile(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}
			if output != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", n, output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file")
	return cmd
}

// newSubmissionFinalizeCmd builds `finalize` (assignee) or `review` (approver).
func newSubmissionFinalizeCmd(f *apiFlags, review bool) *cobra.Command {
	use, short := "finalize", "Submit the draft for review"
	if review {
		use, short = "review", "Mark submitted work as reviewed"
	}
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			var v *models.SubmissionView
			if review {
				v, err = c.ReviewSubmission(cmd.Context(), args[0])
			} else {
				v, err = c.FinalizeSubmission(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printSubmission(cmd.OutOrStdout(), v)
		},
	}
}
