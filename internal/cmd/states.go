package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func statesCommand(get func() *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "states",
		Short: "Manage the states of a versioned bottle",
	}

	list := &cobra.Command{
		Use:   "list <bottle>",
		Short: "List the states of a bottle, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			states, err := a.versioning.States(a.manager.PrefixPath(b))
			if err != nil {
				return err
			}
			tw := table(a.out)
			fmt.Fprintln(tw, "INDEX\tID\tCREATED\tCOMMENT")
			for _, s := range states {
				current := ""
				if s.Index == b.State {
					current = " *"
				}
				fmt.Fprintf(tw, "%d%s\t%.12s\t%s\t%s\n", s.Index, current, s.ID, humanize.Time(s.Created), firstLine(s.Comment))
			}
			return tw.Flush()
		},
	}

	create := &cobra.Command{
		Use:   "create <bottle> [comment]",
		Short: "Snapshot the current content of a bottle",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			if !b.Versioning {
				return fmt.Errorf("versioning is disabled for %q", b.Name)
			}
			comment := "Manual state"
			if len(args) == 2 {
				comment = args[1]
			}
			s, err := a.versioning.CreateState(a.manager.PrefixPath(b), comment)
			if err != nil {
				return err
			}
			if _, err := a.manager.UpdateConfig(cmd.Context(), b, "State", s.Index, "", false); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created state %d of %q\n", s.Index, b.Name)
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <bottle> <index|id>",
		Short: "Reset a bottle to one of its states",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			path := a.manager.PrefixPath(b)
			states, err := a.versioning.States(path)
			if err != nil {
				return err
			}
			var index int
			var id string
			for _, s := range states {
				if strconv.Itoa(s.Index) == args[1] || (len(args[1]) >= 7 && strings.HasPrefix(s.ID, args[1])) {
					index, id = s.Index, s.ID
					break
				}
			}
			if id == "" {
				return fmt.Errorf("state %s of %q not found", args[1], b.Name)
			}
			if err := a.versioning.Restore(path, id); err != nil {
				return err
			}
			// the restored bottle.yml is the one of that state
			if _, err := a.manager.CheckBottles(true); err != nil {
				return err
			}
			if restored, ok := a.manager.Bottle(b.Name); ok {
				if _, err := a.manager.UpdateConfig(cmd.Context(), restored, "State", index, "", false); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "Restored state %d of %q\n", index, b.Name)
			return nil
		},
	}

	c.AddCommand(list, create, restore)
	return c
}

func templatesCommand(get func() *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "templates",
		Short: "Manage the cached bottle templates",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cached templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			ts, err := a.templates.List()
			if err != nil {
				return err
			}
			tw := table(a.out)
			fmt.Fprintln(tw, "UUID\tENVIRONMENT\tRUNNER\tCREATED")
			for _, t := range ts {
				runner := ""
				if t.Config != nil {
					runner = t.Config.Runner
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.UUID, t.Environment, runner, t.Created)
			}
			return tw.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <uuid>...",
		Short: "Delete cached templates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			var errs error
			for _, id := range args {
				if err := a.templates.Delete(id); err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				fmt.Fprintf(a.out, "Deleted template %s\n", id)
			}
			return errs
		},
	}

	c.AddCommand(list, del)
	return c
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
