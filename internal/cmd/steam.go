package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/flo-mic/bottlectl/internal/steam"
	"github.com/spf13/cobra"
)

var errNoSteamIntegration = errors.New("steam integration is disabled or steam was not found")

func (a *app) steam() (*steam.Synchronizer, error) {
	s := a.manager.Steam()
	if s == nil || !s.Supported() {
		return nil, errNoSteamIntegration
	}
	return s, nil
}

func steamCommand(get func() *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "steam",
		Short: "Inspect and tune Proton prefixes of the Steam library",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the Proton prefixes Steam manages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			s, err := a.steam()
			if err != nil {
				return err
			}
			prefixes, err := s.ListPrefixes()
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(prefixes))
			for id := range prefixes {
				ids = append(ids, id)
			}
			sortNumeric(ids)
			tw := table(a.out)
			fmt.Fprintln(tw, "APPID\tNAME\tRUNNER\tPREFIX")
			for _, id := range ids {
				p := prefixes[id]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, p.Name, p.Runner, p.Path)
			}
			return tw.Flush()
		},
	}

	launch := &cobra.Command{
		Use:   "launch <appid>",
		Short: "Start a Steam game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := get().steam()
			if err != nil {
				return err
			}
			return s.LaunchApp(cmd.Context(), args[0])
		},
	}

	c.AddCommand(list, launch, launchOptionsCommand(get))
	return c
}

func launchOptionsCommand(get func() *app) *cobra.Command {
	c := &cobra.Command{
		Use:     "launch-options",
		Aliases: []string{"opts"},
		Short:   "Read and change the launch options of a Steam game",
	}

	show := &cobra.Command{
		Use:   "get <appid>",
		Short: "Print the launch options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			s, err := a.steam()
			if err != nil {
				return err
			}
			o, err := s.GetLaunchOptions(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, o.String())
			return nil
		},
	}

	var command, gameArgs string
	var env []string
	set := &cobra.Command{
		Use:   "set <appid>",
		Short: "Merge variables, a wrapper command or arguments into the launch options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			s, err := a.steam()
			if err != nil {
				return err
			}
			opts := steam.LaunchOptions{Command: command, Args: gameArgs}
			if !cmd.Flags().Changed("command") {
				cur, err := s.GetLaunchOptions(args[0])
				if err != nil {
					return err
				}
				opts.Command = cur.Command
			}
			for _, kv := range env {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid variable %q, want KEY=VALUE", kv)
				}
				opts.Env.Set(k, v)
			}
			if err := s.SetLaunchOptions(args[0], opts); err != nil {
				return err
			}
			o, err := s.GetLaunchOptions(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, o.String())
			return nil
		},
	}
	set.Flags().StringArrayVarP(&env, "env", "e", nil, "KEY=VALUE, repeatable")
	set.Flags().StringVar(&command, "command", "", "wrapper command, e.g. \"gamemoderun mangohud\"")
	set.Flags().StringVar(&gameArgs, "args", "", "arguments after %command%")

	del := &cobra.Command{
		Use:   "del <appid> <env_vars|command> <key>",
		Short: "Remove a variable or a word of the wrapper command",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			s, err := a.steam()
			if err != nil {
				return err
			}
			if args[2] == "" {
				return errors.New("missing key")
			}
			return s.DelLaunchOption(args[0], args[1], args[2])
		},
	}

	c.AddCommand(show, set, del)
	return c
}

// sortNumeric sorts app ids by value, longer ids last.
func sortNumeric(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})
}
