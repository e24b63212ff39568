package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tazhate/remora/internal/api"
	"github.com/tazhate/remora/internal/domain"
)

const requestTimeout = 30 * time.Second

var (
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Strikethrough(true)
	idStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

func newListCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			list, err := c.List(ctx, date)
			if err != nil {
				return err
			}
			printList(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "only reminders due on this day (YYYY-MM-DD)")
	return cmd
}

func newAddCmd() *cobra.Command {
	var (
		at          string
		description string
		priority    string
	)
	cmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Create a reminder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := domain.ParseDateTime(at)
			if err != nil {
				return err
			}
			title := strings.Join(args, " ")
			dueStr := domain.FormatDateTime(due)
			req := api.ReminderRequest{Title: &title, DueDateTime: &dueStr}
			if description != "" {
				req.Description = &description
			}
			if priority != "" {
				req.Priority = &priority
			}

			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			r, err := c.Create(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", formatLine(*r))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "due time, YYYY-MM-DDTHH:MM or \"YYYY-MM-DD HH:MM\"")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "LOW, MEDIUM or HIGH")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done ID",
		Short: "Toggle a reminder between open and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			r, err := c.Toggle(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatLine(*r))
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a reminder and cancel its alarm",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			if err := c.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%d\n", id)
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the alarm that is ringing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			return c.StopAlarm(ctx)
		},
	}
}

func newAlarmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alarms",
		Short: "List pending alarm registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			alarms, err := c.Alarms(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(alarms) == 0 {
				fmt.Fprintln(out, "No pending alarms")
				return nil
			}
			for _, a := range alarms {
				fmt.Fprintf(out, "%s  %s  %s\n", idStyle.Render(fmt.Sprintf("#%d", a.ID)), a.At, a.Mode)
			}
			return nil
		},
	}
}

func printList(w io.Writer, list []api.ReminderResponse) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No reminders")
		return
	}
	for _, r := range list {
		fmt.Fprintln(w, formatLine(r))
	}
}

func formatLine(r api.ReminderResponse) string {
	p, _ := domain.ParsePriority(r.Priority)
	due := r.DueDateTime
	if t, err := domain.ParseDateTime(r.DueDateTime); err == nil {
		due = domain.FormatDisplay(t)
	}
	title := r.Title
	if r.IsCompleted {
		title = doneStyle.Render(title)
	}
	return fmt.Sprintf("%s %s %s  %s", idStyle.Render(fmt.Sprintf("#%d", r.ID)), p.Emoji(), due, title)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
