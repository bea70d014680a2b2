package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"labbook/internal/core"
	"labbook/pkg/domain"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "run", Short: "Start and schedule protocol runs"}
	block := &cobra.Command{Use: "block", Short: "Edit the incubation schedule of a run"}
	block.AddCommand(newBlockAddCommand(a), &cobra.Command{
		Use:   "rm <run-id> <position>",
		Short: "Remove the block at a 1-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			r, err := a.svc.DeleteBlock(cmd.Context(), args[0], idx)
			if err != nil {
				return err
			}
			printBlocks(a, r)
			return nil
		},
	})

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start <protocol-id>",
			Short: "Start a run of a protocol now",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := a.svc.StartRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, r.ID)
				return nil
			},
		},
		newRunListCommand(a),
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a run and its schedule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, ok := a.svc.GetRun(cmd.Context(), args[0])
				if !ok {
					return domain.NotFoundError{Entity: core.EntityRun, ID: args[0]}
				}
				showRun(a, cmd, r)
				return nil
			},
		},
		block,
		runMutation(a, "finish <id>", "Toggle the finished mark", 1, func(cmd *cobra.Command, args []string) (core.Run, error) {
			return a.svc.ToggleFinished(cmd.Context(), args[0])
		}),
		runMutation(a, "notes <id> <text>...", "Replace the run notes", 1, func(cmd *cobra.Command, args []string) (core.Run, error) {
			return a.svc.SetRunNotes(cmd.Context(), args[0], strings.Join(args[1:], " "))
		}),
		runMutation(a, "start-at <id> <time>", "Move the start time blocks are chained from", 2, func(cmd *cobra.Command, args []string) (core.Run, error) {
			start, err := parseTime(strings.Join(args[1:], " "))
			if err != nil {
				return core.Run{}, err
			}
			return a.svc.SetRunStart(cmd.Context(), args[0], start)
		}),
		runMutation(a, "cell <id> [cell-id]", "Link the run to a cell page; no cell id clears the link", 1, func(cmd *cobra.Command, args []string) (core.Run, error) {
			cellID := ""
			if len(args) > 1 {
				cellID = args[1]
			}
			return a.svc.SetRunCell(cmd.Context(), args[0], cellID)
		}),
	)
	return cmd
}

// runMutation builds a command that changes one run and prints its summary.
func runMutation(a *app, use, short string, minArgs int, fn func(*cobra.Command, []string) (core.Run, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(minArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := fn(cmd, args)
			if err != nil {
				return err
			}
			printRuns(a, []core.Run{r})
			return nil
		},
	}
}

func newRunListCommand(a *app) *cobra.Command {
	var cell string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, most recently started first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cell != "" {
				printRuns(a, a.svc.ListRunsByCell(cmd.Context(), cell))
				return nil
			}
			printRuns(a, a.svc.ListRuns(cmd.Context()))
			return nil
		},
	}
	cmd.Flags().StringVar(&cell, "cell", "", "only runs linked to this cell page")
	return cmd
}

func printRuns(a *app, runs []core.Run) {
	tw := newTable(a.out)
	row(tw, "ID", "PROTOCOL", "STARTED", "BLOCKS", "FINISHED", "CELL")
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = formatTime(*r.FinishedAt)
		}
		cell := r.CellID
		if cell == "" {
			cell = "-"
		}
		row(tw, r.ID, r.ProtocolTitleSnapshot, formatTime(r.StartedAt), fmt.Sprint(len(r.Plan.Blocks)), finished, cell)
	}
	_ = tw.Flush()
}

func showRun(a *app, cmd *cobra.Command, r core.Run) {
	tw := newTable(a.out)
	field(tw, "id", r.ID)
	protocol := r.ProtocolTitleSnapshot
	if _, ok := a.svc.GetPage(cmd.Context(), r.ProtocolID); !ok {
		protocol += " (deleted)"
	}
	field(tw, "protocol", protocol)
	field(tw, "started", formatTime(r.StartedAt))
	if r.FinishedAt != nil {
		field(tw, "finished", formatTime(*r.FinishedAt))
	} else {
		field(tw, "finished", "no")
	}
	if r.CellID != "" {
		cell := r.CellID
		if p, ok := a.svc.GetPage(cmd.Context(), r.CellID); ok {
			cell = p.Title + " (" + p.ID + ")"
		} else {
			cell += " (deleted)"
		}
		field(tw, "cell", cell)
	}
	field(tw, "notes", r.Notes)
	_ = tw.Flush()
	printBlocks(a, r)
	if r.ProtocolBodySnapshot != "" {
		fmt.Fprintf(a.out, "\n%s\n", r.ProtocolBodySnapshot)
	}
}

func printBlocks(a *app, r core.Run) {
	fmt.Fprintln(a.out, "\nblocks:")
	tw := newTable(a.out)
	row(tw, "#", "LABEL", "START", "END", "HOURS")
	for i, b := range r.Plan.Blocks {
		row(tw, fmt.Sprint(i+1), b.Label, formatTime(b.StartAt), formatTime(b.EndAt), formatHours(b.Duration()))
	}
	_ = tw.Flush()
}

func newBlockAddCommand(a *app) *cobra.Command {
	var (
		label string
		hours string
		start string
	)
	cmd := &cobra.Command{
		Use:   "add <run-id>",
		Short: "Append an incubation block; it starts where the schedule ends unless --start is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := domain.ParseHours(hours)
			if err != nil {
				return err
			}
			in := core.BlockInput{Label: label, Hours: h}
			if start != "" {
				t, err := parseTime(start)
				if err != nil {
					return err
				}
				in.Start = &t
			}
			b, err := a.svc.AddBlock(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\t%s -> %s\n", b.Label, formatTime(b.StartAt), formatTime(b.EndAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "block label (default "+domain.DefaultBlockLabel+")")
	cmd.Flags().StringVar(&hours, "hours", "", "duration in hours, e.g. 0.5")
	cmd.Flags().StringVar(&start, "start", "", "explicit start time")
	return cmd
}

func newPassageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "passage", Short: "Log passages on cell pages"}
	var at, note string
	add := &cobra.Command{
		Use:   "add <cell-id>",
		Short: "Log a passage, now unless --at is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := optionalTime(cmd, at)
			if err != nil {
				return err
			}
			_, err = a.svc.AddPassage(cmd.Context(), args[0], when, note)
			return err
		},
	}
	add.Flags().StringVar(&at, "at", "", "passage time")
	add.Flags().StringVar(&note, "note", "", "passage note")

	var editAt, editNote string
	edit := &cobra.Command{
		Use:   "edit <cell-id> <position>",
		Short: "Rewrite the note, and with --at the time, of a passage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			when, err := optionalTime(cmd, editAt)
			if err != nil {
				return err
			}
			_, err = a.svc.EditPassage(cmd.Context(), args[0], idx, when, editNote)
			return err
		},
	}
	edit.Flags().StringVar(&editAt, "at", "", "new passage time")
	edit.Flags().StringVar(&editNote, "note", "", "new passage note")

	rm := &cobra.Command{
		Use:   "rm <cell-id> <position>",
		Short: "Delete a passage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			_, err = a.svc.DeletePassage(cmd.Context(), args[0], idx)
			return err
		},
	}
	cmd.AddCommand(add, edit, rm)
	return cmd
}

func optionalTime(cmd *cobra.Command, raw string) (*time.Time, error) {
	if !cmd.Flags().Changed("at") {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
