package component

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/flo-mic/bottlectl/internal/config"
	"github.com/flo-mic/bottlectl/internal/netcheck"
	"github.com/hashicorp/go-hclog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrExhausted is returned when nothing is installed and the catalog
	// has no candidate to install.
	ErrExhausted = errors.New("no installable component found")
	// ErrOffline is returned when an install is needed but the repository
	// is unreachable.
	ErrOffline = errors.New("repository not reachable")
	// ErrUnknownKind is returned by ParseKind.
	ErrUnknownKind = errors.New("unknown component kind")
	// ErrSystemRunner is returned when removing the system wine.
	ErrSystemRunner = errors.New("system runner cannot be removed")
	// ErrNotInCatalog is returned when installing a name the catalog lacks.
	ErrNotInCatalog = errors.New("component not in catalog")
)

// Options configures a Registry.
type Options struct {
	Paths            config.Paths
	Source           Source
	Net              netcheck.Checker
	ReleaseCandidate bool
	// SystemWine probes the wine on PATH. Nil disables the probe.
	SystemWine SystemWineFunc
	Log        hclog.Logger
}

// Registry is the local view of installed components plus the remote
// catalog they can be installed from.
type Registry struct {
	paths            config.Paths
	src              Source
	net              netcheck.Checker
	inst             *Installer
	releaseCandidate bool
	systemWine       SystemWineFunc
	log              hclog.Logger

	mu        sync.Mutex
	catalog   *Catalog
	available map[Kind][]string
}

// NewRegistry creates a registry with an empty catalog.
func NewRegistry(o Options) *Registry {
	log := o.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}
	log = log.Named("components")
	net := o.Net
	if net == nil {
		net = netcheck.Static(false)
	}
	return &Registry{
		paths:            o.Paths,
		src:              o.Source,
		net:              net,
		inst:             NewInstaller(o.Source, o.Paths.Temp, log),
		releaseCandidate: o.ReleaseCandidate,
		systemWine:       o.SystemWine,
		log:              log,
		catalog:          NewCatalog(nil),
		available:        map[Kind][]string{},
	}
}

func (r *Registry) handler(k Kind) Handler {
	base := dirHandler{kind: k, dir: k.Dir(r.paths), inst: r.inst}
	switch k {
	case Runner:
		return &runnerHandler{dirHandler: base, systemWine: r.systemWine, log: r.log}
	case Runtime:
		return &runtimeHandler{dirHandler: base}
	case WineBridge:
		return &wineBridgeHandler{dirHandler: base}
	}
	return &base
}

// Catalog returns the current catalog.
func (r *Registry) Catalog() *Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog
}

// SetCatalog replaces the catalog.
func (r *Registry) SetCatalog(c *Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		c = NewCatalog(nil)
	}
	r.catalog = c
}

// RefreshCatalog fetches the remote index. When offline the current
// catalog is kept.
func (r *Registry) RefreshCatalog(ctx context.Context) error {
	if r.src == nil || !r.net.Connected(ctx) {
		return ErrOffline
	}
	c, err := FetchCatalog(ctx, r.src)
	if err != nil {
		return err
	}
	if c.Len() == 0 {
		r.log.Info("no components found")
	}
	r.SetCatalog(c)
	return nil
}

// Available returns the installed identifiers of kind k as of the last check.
func (r *Registry) Available(k Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.available[k]...)
}

func (r *Registry) setAvailable(k Kind, names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available[k] = names
}

// Check scans the installed components of kind k and returns them newest
// first. When none is installed and installLatest is set, the first
// suitable catalog entry is installed.
func (r *Registry) Check(ctx context.Context, k Kind, installLatest bool) ([]string, error) {
	h := r.handler(k)
	found, err := h.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning %ss: %w", k, err)
	}
	if len(found) > 0 {
		r.log.Info(k.String()+"s found", "names", found)
	}

	if countInstalled(k, found) == 0 && installLatest {
		r.log.Warn("no " + k.String() + " found")
		if err := r.installFirst(ctx, k, h); err != nil {
			r.setAvailable(k, SortVersions(found))
			return r.Available(k), err
		}
		if found, err = h.Scan(ctx); err != nil {
			return nil, fmt.Errorf("scanning %ss: %w", k, err)
		}
	}

	sorted := SortVersions(found)
	r.setAvailable(k, sorted)
	return append([]string(nil), sorted...), nil
}

// countInstalled ignores the system wine, which does not count as a
// bottlectl managed runner.
func countInstalled(k Kind, names []string) int {
	if k != Runner {
		return len(names)
	}
	n := 0
	for _, name := range names {
		if !strings.HasPrefix(name, SystemPrefix) {
			n++
		}
	}
	return n
}

func (r *Registry) installFirst(ctx context.Context, k Kind, h Handler) error {
	if !r.net.Connected(ctx) {
		return fmt.Errorf("installing latest %s: %w", k, ErrOffline)
	}
	e, ok := r.firstCandidate(k)
	if !ok {
		return fmt.Errorf("%s: %w", k, ErrExhausted)
	}
	r.log.Info("installing latest", "kind", k.String(), "name", e.Name)
	if err := h.Install(ctx, e); err != nil {
		return fmt.Errorf("installing %s: %w", e.Name, err)
	}
	return nil
}

// firstCandidate picks the first entry in declared order. Runners are
// taken from the wine sub-category and skip prerelease channels unless
// release candidates are enabled.
func (r *Registry) firstCandidate(k Kind) (Entry, bool) {
	for _, e := range r.Catalog().Entries(k) {
		if k == Runner {
			if e.SubCategory != "" && e.SubCategory != "wine" {
				continue
			}
			if !r.releaseCandidate && e.Prerelease() {
				continue
			}
		}
		return e, true
	}
	return Entry{}, false
}

// CheckAll checks every kind concurrently. Failures are collected, never
// short-circuit the other kinds.
func (r *Registry) CheckAll(ctx context.Context, installLatest bool) error {
	var (
		mu   sync.Mutex
		errs error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, k := range Kinds() {
		g.Go(func() error {
			if _, err := r.Check(ctx, k, installLatest); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errs
}

// Install installs name of kind k from the catalog and rescans.
func (r *Registry) Install(ctx context.Context, k Kind, name string) error {
	if !r.net.Connected(ctx) {
		return ErrOffline
	}
	e, ok := r.Catalog().Lookup(k, name)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNotInCatalog, k, name)
	}
	if err := r.handler(k).Install(ctx, e); err != nil {
		return fmt.Errorf("installing %s: %w", name, err)
	}
	_, err := r.Check(ctx, k, false)
	return err
}

// Uninstall removes name of kind k and rescans.
func (r *Registry) Uninstall(ctx context.Context, k Kind, name string) error {
	if err := r.handler(k).Uninstall(name); err != nil {
		return err
	}
	_, err := r.Check(ctx, k, false)
	return err
}

// LatestRunner returns the newest caffe runner for runnerType "wine" (or
// "") and the newest proton runner otherwise, falling back to the first
// available runner. It returns "" when no runner is available.
func (r *Registry) LatestRunner(runnerType string) string {
	prefix := "proton"
	if runnerType == "" || runnerType == "wine" {
		prefix = "caffe"
	}

	available := r.Available(Runner)
	var best string
	for _, name := range available {
		if !strings.HasPrefix(strings.ToLower(name), prefix) {
			continue
		}
		if best == "" || newerSegment(name, best) {
			best = name
		}
	}
	if best != "" {
		return best
	}
	if len(available) > 0 {
		return available[0]
	}
	return ""
}

// HasEssentials reports whether at least one component of every essential
// kind is available.
func (r *Registry) HasEssentials() bool {
	for _, k := range Essential() {
		if len(r.Available(k)) == 0 {
			return false
		}
	}
	return true
}
