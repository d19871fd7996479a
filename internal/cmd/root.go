// Package cmd wires the bottlectl command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/flo-mic/bottlectl/internal/backup"
	"github.com/flo-mic/bottlectl/internal/bottle"
	"github.com/flo-mic/bottlectl/internal/component"
	"github.com/flo-mic/bottlectl/internal/config"
	"github.com/flo-mic/bottlectl/internal/dependency"
	"github.com/flo-mic/bottlectl/internal/logging"
	"github.com/flo-mic/bottlectl/internal/manager"
	"github.com/flo-mic/bottlectl/internal/netcheck"
	"github.com/flo-mic/bottlectl/internal/repository"
	"github.com/flo-mic/bottlectl/internal/steam"
	"github.com/flo-mic/bottlectl/internal/template"
	"github.com/flo-mic/bottlectl/internal/versioning"
	"github.com/flo-mic/bottlectl/internal/wine"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	logLevel string
	settings string
	dataDir  string
}

// app holds everything a command needs, built once per invocation.
type app struct {
	settings   *config.Settings
	paths      config.Paths
	log        hclog.Logger
	manager    *manager.Manager
	backups    *backup.Manager
	versioning *versioning.Manager
	templates  *template.Cache
	deps       *dependency.Installer
	out        io.Writer
}

// NewRootCommand returns the bottlectl command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	f := &globalFlags{}
	var a *app

	root := &cobra.Command{
		Use:           "bottlectl",
		Short:         "Manage Wine and Proton bottles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = newApp(f, stdout, stderr)
			return err
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.logLevel, "log-level", "", "trace, debug, info, warn or error (default $BOTTLECTL_LOG_LEVEL or info)")
	pf.StringVar(&f.settings, "settings", "", "settings file (default ~/.config/bottlectl/settings.yaml)")
	pf.StringVar(&f.dataDir, "data-dir", "", "data directory, overrides the settings file")

	get := func() *app { return a }
	root.AddCommand(
		listCommand(get),
		newCommand(get),
		deleteCommand(get),
		repairCommand(get),
		setCommand(get),
		duplicateCommand(get),
		programsCommand(get),
		backupCommand(get),
		componentsCommand(get),
		depsCommand(get),
		statesCommand(get),
		templatesCommand(get),
		steamCommand(get),
	)
	return root
}

// Execute runs the command line with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

func newApp(f *globalFlags, stdout, stderr io.Writer) (*app, error) {
	log := logging.New("bottlectl", f.logLevel, stderr)

	path := f.settings
	if path == "" {
		var err error
		if path, err = config.SettingsPath(); err != nil {
			return nil, err
		}
	}
	s, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	if f.dataDir != "" {
		s.DataDir = f.dataDir
	}
	paths := config.NewPaths(s.DataDir)

	repo := repository.NewClient(s.RepositoryURL, log)
	depRepo := repository.NewClient(s.DependenciesURL, log)
	comps := component.NewRegistry(component.Options{
		Paths:            paths,
		Source:           repo,
		Net:              netcheck.NewDialer(s.RepositoryURL),
		ReleaseCandidate: s.ReleaseCandidate,
		SystemWine:       component.ProbeSystemWine,
		Log:              log,
	})

	x := wine.NewExecutor(paths.Runners, log)
	deps := dependency.NewInstaller(depRepo, dependency.NewCatalog(nil), paths.Temp, x.Reg(), log)
	templates := template.NewCache(paths.Templates, log)
	vm := versioning.New(log)

	var syncer *steam.Synchronizer
	if s.SteamIntegration {
		if home, err := os.UserHomeDir(); err == nil {
			if root := steam.FindRoot(home); root != "" {
				syncer = steam.NewSynchronizer(root, paths.Steam, log)
			}
		}
	}

	m := manager.New(manager.Options{
		Settings:         s,
		Paths:            paths,
		Components:       comps,
		Dependencies:     deps,
		DependencySource: depRepo,
		Templates:        templates,
		Versioning:       vm,
		Steam:            syncer,
		Wine:             manager.WineFromExecutor(x),
		Log:              log,
	})

	return &app{
		settings:   s,
		paths:      paths,
		log:        log,
		manager:    m,
		backups:    backup.New(m, log),
		versioning: vm,
		templates:  templates,
		deps:       deps,
		out:        stdout,
	}, nil
}

// scan loads the bottles without touching the network.
func (a *app) scan() error {
	if err := a.paths.EnsureDirs(a.settings.SteamIntegration, a.log); err != nil {
		return err
	}
	_, err := a.manager.CheckBottles(true)
	return err
}

// prepare runs the startup checks, installing missing components.
func (a *app) prepare(ctx context.Context) error {
	return a.manager.Checks(ctx)
}

// bottle scans and returns the named bottle.
func (a *app) bottle(name string) (*bottle.Config, error) {
	if err := a.scan(); err != nil {
		return nil, err
	}
	c, ok := a.manager.Bottle(name)
	if !ok {
		return nil, fmt.Errorf("bottle %q not found", name)
	}
	return c, nil
}
