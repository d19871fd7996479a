package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/flo-mic/bottlectl/internal/backup"
	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/spf13/cobra"
)

func backupCommand(get func() *app) *cobra.Command {
	var scope string
	c := &cobra.Command{
		Use:   "backup",
		Short: "Export and import bottle backups",
	}
	c.PersistentFlags().StringVar(&scope, "scope", "config", "config (bottle.yml only) or full (the whole bottle)")

	export := &cobra.Command{
		Use:   "export <bottle> [dest]",
		Short: "Write a backup of a bottle",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := backup.ParseScope(scope)
			if err != nil {
				return err
			}
			a := get()
			b, err := a.bottle(args[0])
			if err != nil {
				return err
			}
			dest := defaultBackupName(s, b.Name, time.Now())
			if len(args) == 2 {
				dest = args[1]
			}
			if err := a.backups.Export(b, s, dest); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Backup of %q written to %s\n", b.Name, dest)
			return nil
		},
	}

	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a bottle from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := backup.ParseScope(scope)
			if err != nil {
				return err
			}
			a := get()
			if err := a.prepare(cmd.Context()); err != nil {
				return err
			}
			if err := a.backups.Import(cmd.Context(), s, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported %q\n", backup.DisplayName(s, args[0]))
			return nil
		},
	}

	c.AddCommand(export, imp)
	return c
}

// defaultBackupName names a backup in the working directory.
func defaultBackupName(s backup.Scope, name string, now time.Time) string {
	stamp := now.Format("2006-01-02_15-04-05")
	if s == backup.Full {
		return filepath.Clean(fmt.Sprintf("backup_%s_%s.tar.gz", bottle.DirName(name), stamp))
	}
	return filepath.Clean(fmt.Sprintf("%s_%s.yml", bottle.DirName(name), stamp))
}
