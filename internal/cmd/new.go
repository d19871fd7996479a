package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/flo-mic/bottlectl/internal/manager"
	"github.com/flo-mic/bottlectl/internal/recipe"
	"github.com/spf13/cobra"
)

type newFlags struct {
	env         string
	arch        string
	runner      string
	dxvk        string
	vkd3d       string
	nvapi       string
	latencyflex string
	versioning  bool
	sandbox     bool
	customPath  string
	recipe      string
	interactive bool
}

func newCommand(get func() *app) *cobra.Command {
	f := &newFlags{}
	c := &cobra.Command{
		Use:   "new [name]",
		Short: "Create a bottle",
		Long: "Create a bottle. Without a name, or with --interactive, a wizard\n" +
			"asks for the name, environment and options.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			o := manager.CreateOptions{
				Environment: bottle.Custom,
				Arch:        f.arch,
				Runner:      f.runner,
				DXVK:        f.dxvk,
				VKD3D:       f.vkd3d,
				NVAPI:       f.nvapi,
				LatencyFleX: f.latencyflex,
				Versioning:  f.versioning,
				Sandbox:     f.sandbox,
				CustomPath:  f.customPath,
				RecipePath:  f.recipe,
			}
			if len(args) == 1 {
				o.Name = args[0]
			}
			if f.env != "" {
				env, ok := bottle.ParseEnvironment(f.env)
				if !ok || env == bottle.Steam {
					return fmt.Errorf("unknown environment %q", f.env)
				}
				o.Environment = env
			}
			if o.Name == "" || f.interactive {
				if err := runNewWizard(&o); err != nil {
					return err
				}
			}

			if err := a.prepare(cmd.Context()); err != nil {
				return err
			}
			b, err := a.manager.CreateBottle(cmd.Context(), o)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created bottle %q (%s, %s) at %s\n", b.Name, b.Environment, b.Runner, a.manager.PrefixPath(b))
			return nil
		},
	}
	fl := c.Flags()
	fl.StringVarP(&f.env, "env", "e", "", "environment: application, gaming, layered or custom")
	fl.StringVar(&f.arch, "arch", "", "win64 or win32 (default win64)")
	fl.StringVar(&f.runner, "runner", "", "runner name (default newest installed)")
	fl.StringVar(&f.dxvk, "dxvk", "", "DXVK version")
	fl.StringVar(&f.vkd3d, "vkd3d", "", "VKD3D version")
	fl.StringVar(&f.nvapi, "nvapi", "", "DXVK-NVAPI version")
	fl.StringVar(&f.latencyflex, "latencyflex", "", "LatencyFleX version")
	fl.BoolVar(&f.versioning, "versioning", false, "keep states of the bottle")
	fl.BoolVar(&f.sandbox, "sandbox", false, "unlink the user directories from the host")
	fl.StringVar(&f.customPath, "path", "", "create the bottle below this directory")
	fl.StringVar(&f.recipe, "recipe", "", "recipe file (YAML or TOML) to build from")
	fl.BoolVarP(&f.interactive, "interactive", "i", false, "run the wizard")
	return c
}

// runNewWizard asks for the bottle options, prefilled from o.
func runNewWizard(o *manager.CreateOptions) error {
	var envOptions []huh.Option[bottle.Environment]
	for _, env := range bottle.Environments {
		label, desc := recipe.Describe(env)
		if desc != "" {
			label += " - " + desc
		}
		envOptions = append(envOptions, huh.NewOption(label, env))
	}

	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Bottle name").
			Description("Also used for the bottle directory.").
			Value(&o.Name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("bottle name cannot be empty")
				}
				return nil
			}),
		huh.NewSelect[bottle.Environment]().
			Title("Environment").
			Options(envOptions...).
			Value(&o.Environment),
	)).Run(); err != nil {
		return err
	}
	o.Name = strings.TrimSpace(o.Name)

	var advanced bool
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Change advanced options?").
			Description("Architecture, versioning, sandbox and location").
			Value(&advanced),
	)).Run(); err != nil {
		return err
	}
	if !advanced {
		return nil
	}

	if o.Arch == "" {
		o.Arch = "win64"
	}
	return huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Architecture").
			Options(huh.NewOption("64-bit", "win64"), huh.NewOption("32-bit", "win32")).
			Value(&o.Arch),
		huh.NewConfirm().
			Title("Enable versioning?").
			Description("Keeps restorable states of the bottle.").
			Value(&o.Versioning),
		huh.NewConfirm().
			Title("Sandbox the user directories?").
			Description("Documents, Downloads and friends stay inside the bottle.").
			Value(&o.Sandbox),
		huh.NewInput().
			Title("Custom location").
			Description("Leave empty to keep the bottle in the data directory.").
			Value(&o.CustomPath),
	)).Run()
}
