// Package versioning keeps snapshots ("states") of a bottle in a git
// repository inside the bottle directory.
package versioning

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-hclog"
)

// ignored are never part of a state. dosdevices holds symlinks to the
// host filesystem.
var ignored = []string{"dosdevices", "*.lock"}

var signature = object.Signature{Name: "bottlectl", Email: "bottlectl@localhost"}

// State is one snapshot.
type State struct {
	ID      string
	Index   int // 1 for the first state
	Comment string
	Created time.Time
}

// Manager creates, lists and restores states.
type Manager struct {
	log hclog.Logger
}

// New returns a versioning manager.
func New(log hclog.Logger) *Manager {
	return &Manager{log: log.Named("versioning")}
}

func open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return git.PlainInit(path, false)
	}
	return repo, err
}

func worktree(repo *git.Repository) (*git.Worktree, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	for _, p := range ignored {
		wt.Excludes = append(wt.Excludes, gitignore.ParsePattern(p, nil))
	}
	return wt, nil
}

// CreateState snapshots the bottle at path.
func (m *Manager) CreateState(path, comment string) (*State, error) {
	repo, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("opening states of %s: %w", path, err)
	}
	wt, err := worktree(repo)
	if err != nil {
		return nil, err
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("staging %s: %w", path, err)
	}

	sig := signature
	sig.When = time.Now()
	hash, err := wt.Commit(comment, &git.CommitOptions{Author: &sig, AllowEmptyCommits: true})
	if err != nil {
		return nil, fmt.Errorf("committing state: %w", err)
	}

	states, err := m.states(repo)
	if err != nil {
		return nil, err
	}
	m.log.Info("state created", "path", path, "state", len(states), "comment", comment)
	for _, s := range states {
		if s.ID == hash.String() {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("state %s not found after commit", hash)
}

// States lists the states of the bottle at path, newest first.
func (m *Manager) States(path string) ([]State, error) {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.states(repo)
}

func (m *Manager) states(repo *git.Repository) ([]State, error) {
	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, err
	}
	var out []State
	err = iter.ForEach(func(c *object.Commit) error {
		out = append(out, State{ID: c.Hash.String(), Comment: c.Message, Created: c.Author.When})
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Index = len(out) - i
	}
	return out, nil
}

// Restore resets the bottle at path to state id, removing files created
// after it.
func (m *Manager) Restore(path, id string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("opening states of %s: %w", path, err)
	}
	wt, err := worktree(repo)
	if err != nil {
		return err
	}
	hash := plumbing.NewHash(id)
	if _, err := repo.CommitObject(hash); err != nil {
		return fmt.Errorf("state %s: %w", id, err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("restoring state %s: %w", id, err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("cleaning after restore: %w", err)
	}
	m.log.Info("state restored", "path", path, "state", id)
	return nil
}
