package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/client"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

func newTaskCmd() *cobra.Command {
	f := &apiFlags{}
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, negotiate and manage tasks on a running server",
	}
	addAPIFlags(cmd, f)
	cmd.AddCommand(newTaskCreateCmd(f))
	cmd.AddCommand(newTaskListCmd(f))
	cmd.AddCommand(newTaskShowCmd(f))
	cmd.AddCommand(newTaskUpdateCmd(f))
	cmd.AddCommand(newTaskAuditCmd(f))

	var estimate, reason, deadline, details, assignee string

	accept := taskActionCmd(f, "accept", "Accept an assignment", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.AcceptTask(ctx, id, estimate)
	})
	accept.Flags().StringVar(&estimate, "estimate", "", "Estimated time to complete, e.g. \"3 days\"")
	_ = accept.MarkFlagRequired("estimate")

	reject := taskActionCmd(f, "reject", "Reject an assignment", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.RejectTask(ctx, id, reason)
	})
	reject.Flags().StringVar(&reason, "reason", "", "Why the assignment is declined")

	extend := taskActionCmd(f, "extend", "Request a deadline extension", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.RequestExtension(ctx, id, reason, deadline)
	})
	extend.Flags().StringVar(&reason, "reason", "", "Why more time is needed")
	extend.Flags().StringVar(&deadline, "deadline", "", "Requested deadline (YYYY-MM-DD)")
	_ = extend.MarkFlagRequired("deadline")

	approveExt := taskActionCmd(f, "approve-extension", "Approve the pending extension request", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.ApproveExtension(ctx, id, deadline)
	})
	approveExt.Flags().StringVar(&deadline, "deadline", "", "Grant this deadline instead of the requested one")

	rejectExt := taskActionCmd(f, "reject-extension", "Reject the pending extension request", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.RejectExtension(ctx, id)
	})

	requestEdit := taskActionCmd(f, "request-edit", "Ask to reopen submitted work for changes", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.RequestEdit(ctx, id, reason, details)
	})
	requestEdit.Flags().StringVar(&reason, "reason", "", "Why the edit is needed")
	requestEdit.Flags().StringVar(&details, "details", "", "What will change")

	approveEdit := taskActionCmd(f, "approve-edit", "Approve the pending edit request", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.ApproveEdit(ctx, id)
	})
	rejectEdit := taskActionCmd(f, "reject-edit", "Reject the pending edit request", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.RejectEdit(ctx, id)
	})

	reassign := taskActionCmd(f, "reassign", "Hand a pending or rejected task to another member", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.ReassignTask(ctx, id, assignee, deadline)
	})
	reassign.Flags().StringVar(&assignee, "assignee", "", "New assignee member ID")
	reassign.Flags().StringVar(&deadline, "deadline", "", "New deadline (YYYY-MM-DD)")
	_ = reassign.MarkFlagRequired("assignee")

	complete := taskActionCmd(f, "complete", "Mark a task completed", func(ctx context.Context, c *client.Client, id string) (*models.Task, error) {
		return c.CompleteTask(ctx, id)
	})

	cmd.AddCommand(accept, reject, extend, approveExt, rejectExt, requestEdit, approveEdit, rejectEdit, reassign, complete)
	return cmd
}

// taskActionCmd builds a `task <use> <task-id>` command that runs one
// workflow action and prints the resulting task.
func taskActionCmd(f *apiFlags, use, short string, run func(context.Context, *client.Client, string) (*models.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			t, err := run(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			printTaskLine(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newTaskCreateCmd(f *apiFlags) *cobra.Command {
	var req models.CreateTaskRequest
	var priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and assign a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Title == "" || req.AssignedUserID == "" || req.Deadline == "" {
				return errors.New("--title, --assignee and --deadline are required")
			}
			req.Priority = models.Priority(priority)
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			if req.TeamID == "" {
				me, err := c.Me(cmd.Context())
				if err != nil {
					return err
				}
				if me.TeamID == "" {
					return errors.New("--team is required for members without a team")
				}
				req.TeamID = me.TeamID
			}
			t, err := c.CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %s assigned to %q\n", t.TaskID, t.AssignedUserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "Title")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description")
	cmd.Flags().StringVar(&req.AssignedUserID, "assignee", "", "Assignee member ID")
	cmd.Flags().StringVar(&req.TeamID, "team", "", "Team ID (default: the caller's team)")
	cmd.Flags().StringVar(&priority, "priority", string(models.PriorityMedium), "Priority: low, medium or high")
	cmd.Flags().StringVar(&req.StartDate, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.Deadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&req.AllowsFileUpload, "files", true, "Allow file uploads")
	cmd.Flags().BoolVar(&req.AllowsTextSubmission, "text", true, "Allow a text submission")
	cmd.Flags().IntVar(&req.MaxFiles, "max-files", 5, "Maximum number of files")
	return cmd
}

func newTaskListCmd(f *apiFlags) *cobra.Command {
	var filter models.TaskFilter
	var status, acceptance string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks visible to the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = models.Status(status)
			filter.Acceptance = models.AcceptanceStatus(acceptance)
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			tasks, err := c.ListTasks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tTITLE\tASSIGNEE\tSTATUS\tACCEPTANCE\tDEADLINE")
			for _, t := range tasks {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.TaskID, t.Title, t.AssignedUserID, t.Status, t.AcceptanceStatus, t.Deadline.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&acceptance, "acceptance", "", "Filter by acceptance status")
	cmd.Flags().StringVar(&filter.TeamID, "team", "", "Filter by team")
	cmd.Flags().StringVar(&filter.AssignedUserID, "assignee", "", "Filter by assignee")
	cmd.Flags().StringVar(&filter.CreatedByID, "created-by", "", "Filter by creator")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of tasks")
	return cmd
}

func newTaskShowCmd(f *apiFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Print a task as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			t, err := c.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
}

func newTaskUpdateCmd(f *apiFlags) *cobra.Command {
	var (
		title, description, priority, start, deadline string
		files, text                                   bool
		maxFiles                                      int
	)
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Change task fields (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req models.UpdateTaskRequest
			changed := cmd.Flags().Changed
			if changed("title") {
				req.Title = &title
			}
			if changed("description") {
				req.Description = &description
			}
			if changed("priority") {
				p := models.Priority(priority)
				req.Priority = &p
			}
			if changed("start") {
				req.StartDate = &start
			}
			if changed("deadline") {
				req.Deadline = &deadline
			}
			if changed("files") {
				req.AllowsFileUpload = &files
			}
			if changed("text") {
				req.AllowsTextSubmission = &text
			}
			if changed("max-files") {
				req.MaxFiles = &maxFiles
			}
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			t, err := c.UpdateTask(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			printTaskLine(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority: low, medium or high")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&files, "files", true, "Allow file uploads")
	cmd.Flags().BoolVar(&text, "text", true, "Allow a text submission")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "Maximum number of files")
	return cmd
}

func newTaskAuditCmd(f *apiFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <task-id>",
		Short: "Show the task's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client(cmd)
			if err != nil {
				return err
			}
			entries, err := c.ListAudit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "TIME\tACTOR\tACTION\tSTATUS\tACCEPTANCE\tDETAIL")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.ActorID, e.Action,
					transition(string(e.FromStatus), string(e.ToStatus)),
					transition(string(e.FromAcceptance), string(e.ToAcceptance)), e.Detail)
			}
			return tw.Flush()
		},
	}
}

func transition(from, to string) string {
	if from == to {
		return to
	}
	return from + "->" + to
}
