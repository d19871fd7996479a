package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func listCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List bottles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if err := a.scan(); err != nil {
				return err
			}
			bottles := a.manager.Bottles()
			keys := make([]string, 0, len(bottles))
			for k := range bottles {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			tw := table(a.out)
			fmt.Fprintln(tw, "NAME\tENVIRONMENT\tRUNNER\tPATH")
			for _, k := range keys {
				b := bottles[k]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Name, b.Environment, b.Runner, a.manager.PrefixPath(b))
			}
			return tw.Flush()
		},
	}
}

func deleteCommand(get func() *app) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:     "delete <bottle>",
		Aliases: []string{"rm"},
		Short:   "Delete a bottle and everything inside it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			if !yes {
				if err := huh.NewForm(huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Delete bottle %q?", b.Name)).
						Description(a.manager.PrefixPath(b)).
						Value(&yes),
				)).Run(); err != nil {
					return err
				}
				if !yes {
					return nil
				}
			}
			if err := a.manager.DeleteBottle(cmd.Context(), b); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted bottle %q\n", b.Name)
			return nil
		},
	}
	c.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return c
}

func repairCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repair <bottle>",
		Short: "Rebuild the configuration of a broken bottle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.scan(); err != nil {
				return err
			}
			// broken bottles are not in the catalog, repair by directory name
			b, ok := a.manager.Bottle(args[0])
			if !ok {
				b = &bottle.Config{Name: args[0], Path: args[0]}
			}
			if err := a.prepare(cmd.Context()); err != nil {
				return err
			}
			repaired, err := a.manager.RepairBottle(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Repaired bottle %q with runner %s\n", repaired.Name, repaired.Runner)
			return nil
		},
	}
}

func setCommand(get func() *app) *cobra.Command {
	var scope string
	var remove bool
	c := &cobra.Command{
		Use:   "set <bottle> <key> [value]",
		Short: "Change a configuration key of a bottle",
		Long: "Change a configuration key of a bottle. The value is parsed as YAML,\n" +
			"so true, 42 and [a, b] keep their types. Use --scope Parameters to\n" +
			"change a nested key.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 && !remove {
				return fmt.Errorf("missing value for %s", args[1])
			}
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			var value interface{}
			if len(args) == 3 {
				if err := yaml.Unmarshal([]byte(args[2]), &value); err != nil {
					return fmt.Errorf("parsing value: %w", err)
				}
			}
			if _, err := a.manager.UpdateConfig(cmd.Context(), b, args[1], value, scope, remove); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %s of %q\n", args[1], b.Name)
			return nil
		},
	}
	c.Flags().StringVar(&scope, "scope", "", "nested section of the configuration, e.g. Parameters")
	c.Flags().BoolVar(&remove, "remove", false, "remove the key instead of setting it")
	return c
}

func duplicateCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <bottle> <new name>",
		Short: "Copy a bottle under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			dup, err := a.backups.Duplicate(b, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Duplicated %q as %q\n", b.Name, dup.Name)
			return nil
		},
	}
}

func programsCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "programs <bottle>",
		Short: "List the programs added to a bottle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			tw := table(a.out)
			fmt.Fprintln(tw, "ID\tNAME\tPATH")
			for _, p := range a.manager.ListPrograms(b) {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Path)
			}
			return tw.Flush()
		},
	}
}
