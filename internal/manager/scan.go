package manager

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/flo-mic/bottlectl/internal/bottle"
	"go.uber.org/multierr"
)

// CheckBottles rebuilds the catalog from the bottles directory and, when
// Steam integration is on, from the Steam prefixes. Unreadable entries
// are skipped. Only a bottle.yml that decodes to nothing fails the scan.
func (m *Manager) CheckBottles(silent bool) (map[string]*bottle.Config, error) {
	entries, err := os.ReadDir(m.paths.Bottles)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	found := map[string]*bottle.Config{}
	var skipped error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c, err := m.loadBottle(e.Name())
		if errors.Is(err, bottle.ErrNilConfig) {
			return nil, err
		}
		if err != nil {
			skipped = multierr.Append(skipped, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		found[e.Name()] = c
	}
	if skipped != nil {
		m.log.Debug("bottles skipped", "errors", multierr.Errors(skipped))
	}

	if m.steam != nil && m.settings.SteamIntegration && m.steam.Supported() {
		prefixes, err := m.steam.UpdateBottles()
		if err != nil {
			m.log.Warn("steam prefixes not synchronized", "error", err)
		}
		for id, c := range prefixes {
			found[id] = c
		}
	}

	m.mu.Lock()
	m.bottles = found
	m.mu.Unlock()

	logf := m.log.Info
	if silent {
		logf = m.log.Trace
	}
	names := make([]string, 0, len(found))
	for k := range found {
		names = append(names, k)
	}
	sort.Strings(names)
	logf("Bottles found", "count", len(found), "names", names)
	return found, nil
}

// loadBottle reads and migrates the bottle stored in the named directory
// of the bottles root, following its placeholder when there is one.
func (m *Manager) loadBottle(name string) (*bottle.Config, error) {
	dir := filepath.Join(m.paths.Bottles, name)
	configPath := filepath.Join(dir, bottle.ConfigFile)

	ph, err := bottle.ReadPlaceholder(dir)
	switch {
	case err == nil:
		configPath = filepath.Join(ph.Path, bottle.ConfigFile)
	case errors.Is(err, bottle.ErrNotFound):
	default:
		m.log.Warn("invalid placeholder, skipping", "bottle", name, "error", err)
		return nil, err
	}

	doc, err := bottle.ReadDocument(configPath)
	if err != nil {
		switch {
		case errors.Is(err, bottle.ErrMalformed):
			m.log.Warn("malformed bottle config, skipping", "bottle", name, "error", err)
		case errors.Is(err, bottle.ErrNotFound) && ph != nil:
			m.log.Warn("placeholder points at a missing bottle", "bottle", name, "path", ph.Path)
		}
		return nil, err
	}

	persist := func(d bottle.Document) error {
		return bottle.WriteFile(configPath, d)
	}
	if _, err := bottle.Migrate(doc, name, persist, m.log); err != nil {
		return nil, err
	}
	return bottle.Decode(doc)
}
