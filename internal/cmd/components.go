package cmd

import (
	"fmt"

	"github.com/flo-mic/bottlectl/internal/component"
	"github.com/spf13/cobra"
)

func componentsCommand(get func() *app) *cobra.Command {
	c := &cobra.Command{
		Use:     "components",
		Aliases: []string{"comp"},
		Short:   "Manage runners and translation layers",
	}

	var remote bool
	list := &cobra.Command{
		Use:   "list [kind]",
		Short: "List installed components, or the catalog with --remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			kinds := component.Kinds()
			if len(args) == 1 {
				k, err := component.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []component.Kind{k}
			}
			reg := a.manager.Components()
			if remote {
				if err := reg.RefreshCatalog(cmd.Context()); err != nil {
					return err
				}
			}

			tw := table(a.out)
			fmt.Fprintln(tw, "KIND\tNAME\tSTATUS")
			for _, k := range kinds {
				installed, err := reg.Check(cmd.Context(), k, false)
				if err != nil {
					return err
				}
				have := make(map[string]bool, len(installed))
				for _, name := range installed {
					have[name] = true
					fmt.Fprintf(tw, "%s\t%s\tinstalled\n", k, name)
				}
				if !remote {
					continue
				}
				for _, e := range reg.Catalog().Entries(k) {
					if have[e.Name] {
						continue
					}
					status := "available"
					if e.Prerelease() {
						status = "available (" + e.Channel + ")"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", k, e.Name, status)
				}
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&remote, "remote", false, "include installable catalog entries")

	install := &cobra.Command{
		Use:   "install <kind> <name>",
		Short: "Install a component from the catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := component.ParseKind(args[0])
			if err != nil {
				return err
			}
			a := get()
			reg := a.manager.Components()
			if err := reg.RefreshCatalog(cmd.Context()); err != nil {
				return err
			}
			if err := reg.Install(cmd.Context(), k, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Installed %s %s\n", k, args[1])
			return nil
		},
	}

	uninstall := &cobra.Command{
		Use:   "uninstall <kind> <name>",
		Short: "Remove an installed component",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := component.ParseKind(args[0])
			if err != nil {
				return err
			}
			a := get()
			if err := a.manager.Components().Uninstall(cmd.Context(), k, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s %s\n", k, args[1])
			return nil
		},
	}

	var remove bool
	var version string
	apply := &cobra.Command{
		Use:   "apply <bottle> <dxvk|vkd3d|nvapi|latencyflex>",
		Short: "Install or remove a translation layer in a bottle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := component.ParseKind(args[1])
			if err != nil {
				return err
			}
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			if _, err := a.manager.Components().Check(cmd.Context(), k, false); err != nil {
				return err
			}
			if err := a.manager.InstallDLLComponent(cmd.Context(), b, k, remove, version); err != nil {
				return err
			}
			verb := "Applied"
			if remove {
				verb = "Removed"
			}
			fmt.Fprintf(a.out, "%s %s in %q\n", verb, k, b.Name)
			return nil
		},
	}
	apply.Flags().BoolVar(&remove, "remove", false, "remove the layer instead")
	apply.Flags().StringVar(&version, "version", "", "version to install (default the one recorded in the bottle)")

	c.AddCommand(list, install, uninstall, apply)
	return c
}

func depsCommand(get func() *app) *cobra.Command {
	c := &cobra.Command{
		Use:     "deps",
		Aliases: []string{"dependencies"},
		Short:   "Manage the dependencies installed in bottles",
	}

	list := &cobra.Command{
		Use:   "list [bottle]",
		Short: "List the dependency catalog, marking what a bottle has",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			installed := map[string]bool{}
			if len(args) == 1 {
				b, err := a.bottle(args[0])
				if err != nil {
					return err
				}
				for _, d := range b.InstalledDependencies {
					installed[d] = true
				}
			}
			if err := a.manager.RefreshDependencies(cmd.Context()); err != nil {
				return err
			}
			tw := table(a.out)
			fmt.Fprintln(tw, "NAME\tCATEGORY\tINSTALLED\tDESCRIPTION")
			for _, e := range a.deps.Catalog().Entries() {
				mark := ""
				if installed[e.Name] {
					mark = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Category, mark, e.Description)
			}
			return tw.Flush()
		},
	}

	install := &cobra.Command{
		Use:   "install <bottle> <dependency>...",
		Short: "Install dependencies into a bottle",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			if err := a.manager.RefreshDependencies(cmd.Context()); err != nil {
				return err
			}
			for _, dep := range args[1:] {
				if err := a.manager.InstallDependency(cmd.Context(), b, dep); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Installed %s in %q\n", dep, b.Name)
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <bottle> <dependency>...",
		Short: "Remove dependencies from a bottle",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			for _, dep := range args[1:] {
				if err := a.manager.RemoveDependency(cmd.Context(), b, dep); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Removed %s from %q\n", dep, b.Name)
			}
			return nil
		},
	}

	c.AddCommand(list, install, remove)
	return c
}
