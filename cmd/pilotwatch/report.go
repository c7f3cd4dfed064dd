package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/pilotwatch/internal/notify"
	"github.com/kiranshivaraju/pilotwatch/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate and inspect competitive positioning reports",
	}
	cmd.AddCommand(newReportGenerateCmd(a), newReportStatusCmd(a))
	return cmd
}

type generateFlags struct {
	force       bool
	async       bool
	interval    time.Duration
	maxAttempts int
	plain       bool
}

func newReportGenerateCmd(a *app) *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate <analysis-id>",
		Short: "Generate a report and wait for it",
		Long: `Trigger report generation for an analysis group, then poll its status
until the report completes, fails or the attempt budget runs out.

Interrupting the command stops polling; the server keeps working and
'pilotwatch report status' can check on it later.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			return a.generate(cmd, args[0], f)
		},
	}
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "Regenerate even if a report exists")
	cmd.Flags().BoolVar(&f.async, "async", false, "Use the task-based endpoints")
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "Delay between status checks (default PILOT_POLL_INTERVAL)")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "Status checks before giving up (default PILOT_POLL_MAX_ATTEMPTS)")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "Print the report without markdown styling")
	return cmd
}

func (a *app) generate(cmd *cobra.Command, analysisID string, f generateFlags) error {
	opts := report.Options{
		Interval:    a.cfg.Poll.Interval,
		MaxAttempts: a.cfg.Poll.MaxAttempts,
		Logger:      a.logger,
	}
	if f.interval > 0 {
		opts.Interval = f.interval
	}
	if f.maxAttempts > 0 {
		opts.MaxAttempts = f.maxAttempts
	}

	svc := report.NewService(a.client, notify.NewTerminal(a.stderr), opts)
	defer svc.Close()

	run, err := svc.Generate(cmd.Context(), analysisID, report.GenerateOptions{Force: f.force, Async: f.async})
	if err != nil {
		return err
	}
	if run.TaskID() != "" {
		fmt.Fprintln(a.stderr, mutedStyle.Render("task "+run.TaskID()))
	}

	job, err := run.Wait(cmd.Context())
	switch {
	case err == nil:
	case errors.Is(err, cmd.Context().Err()):
		run.Cancel()
		fmt.Fprintln(a.stderr, mutedStyle.Render("Stopped polling. Check later with `pilotwatch report status "+analysisID+"`."))
		return nil
	default:
		return err
	}

	if job.Result == nil {
		return nil
	}
	md := reportMarkdown(job.Result)
	if f.plain {
		fmt.Fprint(a.stdout, md)
		return nil
	}
	out, err := renderMarkdown(md)
	if err != nil {
		a.logger.Debug("markdown render failed", "error", err)
		out = md
	}
	fmt.Fprint(a.stdout, out)
	return nil
}

func newReportStatusCmd(a *app) *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "status <analysis-id>",
		Short: "Check the report status once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			svc := report.NewService(a.client, nil, report.Options{Logger: a.logger})
			defer svc.Close()

			st, err := svc.Status(cmd.Context(), args[0], taskID)
			if err != nil {
				return fmt.Errorf("report status: %w", err)
			}
			fmt.Fprintln(a.stdout, statusStyle(st.Status).Render(string(st.Status)))
			if st.Message != "" {
				fmt.Fprintf(a.stdout, "  %s\n", st.Message)
			}
			if st.Progress > 0 {
				fmt.Fprintf(a.stdout, "  progress   %d%%\n", st.Progress)
			}
			if st.ErrorMessage != "" {
				fmt.Fprintf(a.stdout, "  error      %s\n", st.ErrorMessage)
			}
			if st.CompletedAt != "" {
				fmt.Fprintf(a.stdout, "  completed  %s\n", st.CompletedAt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "Task id from an async generate")
	return cmd
}
