// Package engine reconciles git working copies with their remotes. It
// synthesizes repository status, pulls (fast-forward only), resolves in both
// directions, and fans those operations out over the registry.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skaphos/reposync/internal/config"
	"github.com/skaphos/reposync/internal/discovery"
	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/registry"
	"github.com/skaphos/reposync/internal/remotemismatch"
	"github.com/skaphos/reposync/internal/sortutil"
)

// FilterKind represents the --only filter options.
type FilterKind string

const (
	FilterAll            FilterKind = "all"
	FilterErrors         FilterKind = "errors"
	FilterDirty          FilterKind = "dirty"
	FilterClean          FilterKind = "clean"
	FilterDiverged       FilterKind = "diverged"
	FilterUnborn         FilterKind = "unborn"
	FilterRemoteMismatch FilterKind = "remote-mismatch"
	FilterMissing        FilterKind = "missing"
)

const maxWorkerChannelBuffer = 100

// Engine runs reconciliation operations with one configuration.
type Engine struct {
	cfg      *config.Config
	registry *registry.Registry
	log      *slog.Logger

	registryMu sync.Mutex
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an Engine. A nil cfg uses config.DefaultConfig().
func New(cfg *config.Config, reg *registry.Registry, opts ...Option) *Engine {
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	e := &Engine{cfg: cfg, registry: reg, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration reference.
func (e *Engine) Config() *config.Config { return e.cfg }

// Registry returns the engine registry reference.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Settings overlays override on the configured settings block.
func (e *Engine) Settings(override model.Settings) model.Settings {
	return e.cfg.ResolveSettings(override)
}

func (e *Engine) defaults() config.Defaults {
	d := e.cfg.Defaults
	def := config.DefaultConfig().Defaults
	if d.RemoteName == "" {
		d.RemoteName = def.RemoteName
	}
	if d.Branch == "" {
		d.Branch = def.Branch
	}
	if d.AuthorName == "" {
		d.AuthorName = def.AuthorName
	}
	if d.AuthorEmail == "" {
		d.AuthorEmail = def.AuthorEmail
	}
	if d.Concurrency <= 0 {
		d.Concurrency = def.Concurrency
	}
	if d.TimeoutSeconds <= 0 {
		d.TimeoutSeconds = def.TimeoutSeconds
	}
	return d
}

// ScanOptions configures a scan operation.
type ScanOptions struct {
	Roots          []string
	Exclude        []string
	FollowSymlinks bool
}

// Scan discovers repos under the roots and records them in the registry.
func (e *Engine) Scan(ctx context.Context, opts ScanOptions) ([]model.RepoReport, error) {
	if e.registry == nil {
		e.registry = &registry.Registry{}
	}
	if len(opts.Roots) == 0 {
		return nil, errors.New("no scan roots provided")
	}
	exclude := opts.Exclude
	if len(exclude) == 0 {
		exclude = e.cfg.Exclude
	}

	if err := e.registry.ValidatePaths(); err != nil {
		return nil, err
	}

	results, err := discovery.Scan(ctx, discovery.Options{
		Roots:           opts.Roots,
		Exclude:         exclude,
		FollowSymlinks:  opts.FollowSymlinks,
		PreferredRemote: model.Deref(e.cfg.Settings.DefaultRemote, ""),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	reports := make([]model.RepoReport, 0, len(results))
	for _, res := range results {
		repoID := res.RepoID
		if repoID == "" {
			repoID = localRepoID(res.Path)
		}
		kind := "checkout"
		if res.Bare {
			kind = "bare"
		}
		e.upsertRegistryEntry(registry.Entry{
			RepoID:    repoID,
			Path:      res.Path,
			RemoteURL: res.RemoteURL,
			Type:      kind,
			LastSeen:  now,
			Status:    registry.StatusPresent,
		})
		reports = append(reports, model.RepoReport{
			RepoID:        repoID,
			Path:          res.Path,
			Bare:          res.Bare,
			Remotes:       res.Remotes,
			PrimaryRemote: res.PrimaryRemote,
		})
	}
	sortutil.SortRepoReports(reports)
	e.setRegistryUpdatedAt(now)
	e.log.Debug("scan complete", "roots", len(opts.Roots), "repos", len(reports))
	return reports, nil
}

// StatusOptions configures a multi-repo status run.
type StatusOptions struct {
	Filter      FilterKind
	Concurrency int
	Timeout     int // seconds per repo
	Settings    model.Settings
}

// StatusAll inspects every registered repo and returns their status.
// Per-repo failures are reported in-band.
func (e *Engine) StatusAll(ctx context.Context, opts StatusOptions) (*model.StatusReport, error) {
	if e.registry == nil {
		return nil, errors.New("registry not loaded")
	}
	concurrency, timeoutSeconds := e.runtime(opts.Concurrency, opts.Timeout)

	// Snapshot entries to decouple worker scheduling from concurrent registry updates.
	entries := append([]registry.Entry(nil), e.registry.Entries...)
	results := make([]model.RepoReport, 0, len(entries))
	sem := make(chan struct{}, concurrency)
	out := make(chan model.RepoReport, workerChannelBufferSize(len(entries)))

	// out may hold fewer results than entries; spawning must not block collection.
	go func() {
		for _, entry := range entries {
			sem <- struct{}{}
			go func(entry registry.Entry) {
				defer func() { <-sem }()
				if entry.Status == registry.StatusMissing {
					out <- model.RepoReport{
						RepoID:      entry.RepoID,
						Path:        entry.Path,
						LastResolve: entry.LastResolve,
						Error:       "path missing",
						ErrorClass:  "missing",
					}
					return
				}
				repoCtx, cancel := withTimeout(ctx, timeoutSeconds)
				defer cancel()
				report, err := e.InspectRepo(repoCtx, entry.Path, opts.Settings)
				if err != nil {
					out <- model.RepoReport{
						RepoID:      entry.RepoID,
						Path:        entry.Path,
						LastResolve: entry.LastResolve,
						Error:       err.Error(),
						ErrorClass:  gitx.ClassifyError(err),
					}
					return
				}
				if report.RepoID == "" {
					report.RepoID = entry.RepoID
				}
				report.LastResolve = entry.LastResolve
				out <- *report
			}(entry)
		}
	}()

	for range entries {
		res := <-out
		if filterReport(opts.Filter, res, e.registry) {
			results = append(results, res)
		}
	}
	sortutil.SortRepoReports(results)

	return &model.StatusReport{
		GeneratedAt: time.Now(),
		Repos:       results,
	}, nil
}

// InspectRepo gathers the full report for a single repository path.
func (e *Engine) InspectRepo(ctx context.Context, path string, override model.Settings) (*model.RepoReport, error) {
	repo, err := gitx.Open(path)
	if err != nil {
		return nil, err
	}
	settings := e.Settings(override)

	remotes, err := repo.Remotes()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(remotes))
	for _, r := range remotes {
		names = append(names, r.Name)
	}
	primary := gitx.PrimaryRemote(names, model.Deref(settings.DefaultRemote, ""))
	var remoteURL string
	for _, r := range remotes {
		if r.Name == primary {
			remoteURL = r.URL
			break
		}
	}
	repoID := gitx.NormalizeURL(remoteURL)
	if repoID == "" {
		repoID = localRepoID(repo.Path())
	}

	status, _, err := e.Status(ctx, repo, settings)
	if err != nil {
		return nil, err
	}
	return &model.RepoReport{
		RepoID:        repoID,
		Path:          repo.Path(),
		Bare:          repo.IsBare(),
		Remotes:       remotes,
		PrimaryRemote: primary,
		Status:        &status,
	}, nil
}

// RunOutcome is the typed outcome category for one repo in a resolve run.
type RunOutcome string

const (
	OutcomeResolved       RunOutcome = "resolved"
	OutcomeDiverged       RunOutcome = "diverged"
	OutcomeFailedOpen     RunOutcome = "failed_open"
	OutcomeFailedResolve  RunOutcome = "failed_resolve"
	OutcomeSkippedMissing RunOutcome = "skipped_missing"
	OutcomeSkippedBare    RunOutcome = "skipped_bare"
	OutcomeSkippedRemote  RunOutcome = "skipped_no_remote"
)

// RunResult records the outcome of resolving one registered repo.
type RunResult struct {
	// RepoID is the stable repository identity from the registry.
	RepoID string
	// Path is the repository filesystem path the action applies to.
	Path string
	// Outcome is the typed outcome category.
	Outcome RunOutcome
	// OK is true when the repo reached a converged state.
	OK bool
	// Error contains the raw error text when the action failed or was skipped.
	Error string
	// ErrorClass is a coarse error class suitable for summary/exit handling.
	ErrorClass string
}

// RunResultCallback is invoked for each result as it is produced. Callbacks
// run on the coordinator goroutine.
type RunResultCallback func(RunResult)

// ResolveAllOptions configures a multi-repo resolve run.
type ResolveAllOptions struct {
	Concurrency     int
	Timeout         int // seconds per repo
	ContinueOnError bool
	Settings        model.Settings
	OnResult        RunResultCallback
}

// ResolveAll runs Sync on every registered repo. Without ContinueOnError
// it runs sequentially and stops at the first failure.
func (e *Engine) ResolveAll(ctx context.Context, opts ResolveAllOptions) ([]RunResult, error) {
	if e.registry == nil {
		return nil, errors.New("registry not loaded")
	}
	concurrency, timeoutSeconds := e.runtime(opts.Concurrency, opts.Timeout)
	entries := append([]registry.Entry(nil), e.registry.Entries...)
	results := make([]RunResult, 0, len(entries))
	emit := func(res RunResult) {
		results = append(results, res)
		if opts.OnResult != nil {
			opts.OnResult(res)
		}
	}

	if !opts.ContinueOnError {
		for _, entry := range entries {
			res := e.resolveEntry(ctx, entry, opts.Settings, timeoutSeconds)
			emit(res)
			if !res.OK {
				break
			}
		}
		sortRunResults(results)
		return results, nil
	}

	sem := make(chan struct{}, concurrency)
	out := make(chan RunResult, workerChannelBufferSize(len(entries)))
	go func() {
		for _, entry := range entries {
			sem <- struct{}{}
			go func(entry registry.Entry) {
				defer func() { <-sem }()
				out <- e.resolveEntry(ctx, entry, opts.Settings, timeoutSeconds)
			}(entry)
		}
	}()
	for range entries {
		emit(<-out)
	}
	sortRunResults(results)
	return results, nil
}

func (e *Engine) resolveEntry(ctx context.Context, entry registry.Entry, override model.Settings, timeoutSeconds int) RunResult {
	res := RunResult{RepoID: entry.RepoID, Path: entry.Path}
	if entry.Status == registry.StatusMissing {
		res.Outcome = OutcomeSkippedMissing
		res.OK = true
		res.Error = "path missing"
		res.ErrorClass = "missing"
		return res
	}
	repo, err := gitx.Open(entry.Path)
	if err != nil {
		return failedRun(res, OutcomeFailedOpen, err)
	}
	if repo.IsBare() {
		res.Outcome = OutcomeSkippedBare
		res.OK = true
		res.Error = "bare repository"
		res.ErrorClass = "skipped"
		return res
	}

	repoCtx, cancel := withTimeout(ctx, timeoutSeconds)
	defer cancel()
	out, err := e.Sync(repoCtx, repo, ResolveOptions{Settings: e.Settings(override)})
	record := model.ResolveRecord{OK: out.OK, At: time.Now()}
	if err != nil {
		record.Error = err.Error()
	}
	e.recordResolve(entry.Path, record)

	switch {
	case errors.Is(err, gitx.ErrNoRemote):
		res.Outcome = OutcomeSkippedRemote
		res.OK = true
		res.Error = err.Error()
		res.ErrorClass = "skipped"
		return res
	case gitx.IsNonFastForward(err):
		res.Outcome = OutcomeDiverged
		res.Error = err.Error()
		res.ErrorClass = "diverged"
		return res
	case err != nil:
		return failedRun(res, OutcomeFailedResolve, err)
	case !out.OK:
		res.Outcome = OutcomeDiverged
		res.Error = "local and remote histories diverged"
		res.ErrorClass = "diverged"
		return res
	}
	res.Outcome = OutcomeResolved
	res.OK = true
	return res
}

func failedRun(res RunResult, outcome RunOutcome, err error) RunResult {
	res.OK = false
	res.Outcome = outcome
	res.Error = err.Error()
	res.ErrorClass = gitx.ClassifyError(err)
	return res
}

func workerChannelBufferSize(entryCount int) int {
	if entryCount <= 0 {
		return 1
	}
	if entryCount > maxWorkerChannelBuffer {
		return maxWorkerChannelBuffer
	}
	return entryCount
}

func (e *Engine) runtime(concurrency, timeoutSeconds int) (int, int) {
	d := e.defaults()
	if concurrency <= 0 {
		concurrency = d.Concurrency
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = d.TimeoutSeconds
	}
	return concurrency, timeoutSeconds
}

func withTimeout(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

func localRepoID(path string) string {
	return "local:" + filepath.ToSlash(path)
}

func (e *Engine) upsertRegistryEntry(entry registry.Entry) {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	if e.registry == nil {
		e.registry = &registry.Registry{}
	}
	e.registry.Upsert(entry)
}

func (e *Engine) recordResolve(path string, rec model.ResolveRecord) {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	if e.registry == nil {
		return
	}
	e.registry.RecordResolve(path, rec)
}

func (e *Engine) setRegistryUpdatedAt(ts time.Time) {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	if e.registry == nil {
		e.registry = &registry.Registry{}
	}
	e.registry.UpdatedAt = ts
}

func filterReport(kind FilterKind, report model.RepoReport, reg *registry.Registry) bool {
	switch kind {
	case FilterAll, "":
		return true
	case FilterMissing:
		return report.ErrorClass == "missing"
	case FilterErrors:
		return report.Error != ""
	case FilterDirty:
		return report.Status != nil && !report.Status.WorkingTree.Clean()
	case FilterClean:
		return report.Status != nil && report.Status.WorkingTree.Clean()
	case FilterDiverged:
		return report.Status != nil && report.Status.Upstream.Ahead > 0 && report.Status.Upstream.Behind > 0
	case FilterUnborn:
		return report.Status != nil && report.Status.Head.IsUnborn()
	case FilterRemoteMismatch:
		idx := remotemismatch.FindEntryIndex(reg, report)
		return idx >= 0 && remotemismatch.Mismatched(report, reg.Entries[idx])
	default:
		return true
	}
}

// ParseFilter validates a --only flag value.
func ParseFilter(raw string) (FilterKind, bool) {
	kind := FilterKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case "":
		return FilterAll, true
	case FilterAll, FilterErrors, FilterDirty, FilterClean, FilterDiverged, FilterUnborn, FilterRemoteMismatch, FilterMissing:
		return kind, true
	default:
		return "", false
	}
}

func sortRunResults(results []RunResult) {
	// Resolve runs are concurrent; explicit sort keeps output deterministic.
	sort.SliceStable(results, func(i, j int) bool {
		return sortutil.LessRepoIDPath(results[i].RepoID, results[i].Path, results[j].RepoID, results[j].Path)
	})
}
