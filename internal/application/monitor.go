package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// Discoverer fetches one repository's remote snapshot.
type Discoverer interface {
	Discover(ctx context.Context, repoFullName string) (*model.RepoSnapshot, error)
}

// ChangeDetector diffs a snapshot against persisted state.
type ChangeDetector interface {
	DetectChanges(ctx context.Context, repoFullName string, snap *model.RepoSnapshot) (*model.ChangeSet, error)
}

// Synchronizer applies a change set atomically.
type Synchronizer interface {
	Synchronize(ctx context.Context, repoFullName string, cs *model.ChangeSet) (int, error)
}

// Compile-time checks that the pipeline services satisfy their interfaces.
var (
	_ Discoverer     = (*DiscoveryService)(nil)
	_ ChangeDetector = (*DetectionService)(nil)
	_ Synchronizer   = (*SyncService)(nil)
)

// MonitorConfig holds the Monitor's tunables.
type MonitorConfig struct {
	// MaxConcurrentRepos bounds how many repositories process simultaneously.
	MaxConcurrentRepos int64
	// CycleTimeout bounds one repository's full discover/detect/synchronize cycle.
	CycleTimeout time.Duration
	// TickInterval is the scheduler resolution of the Start loop.
	TickInterval time.Duration
}

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	repoFullName string
	done         chan error
}

// Monitor orchestrates the discover, detect, synchronize pipeline: strictly
// sequential phases per repository, bounded fan-out across repositories, and
// per-repository failure isolation. It also runs the adaptive polling loop
// that decides when each repository is due.
type Monitor struct {
	discoverer   Discoverer
	detector     ChangeDetector
	synchronizer Synchronizer
	repoStore    driven.RepoStore
	cfg          MonitorConfig
	refreshCh    chan refreshRequest

	mu        sync.Mutex
	schedules map[string]repoSchedule
}

// NewMonitor creates a Monitor with all required dependencies.
func NewMonitor(d Discoverer, det ChangeDetector, s Synchronizer, repoStore driven.RepoStore, cfg MonitorConfig) *Monitor {
	return &Monitor{
		discoverer:   d,
		detector:     det,
		synchronizer: s,
		repoStore:    repoStore,
		cfg:          cfg,
		refreshCh:    make(chan refreshRequest),
		schedules:    make(map[string]repoSchedule),
	}
}

// ProcessRepository runs one repository's full cycle under the cycle
// deadline. Phase failures are converted into typed errors on the result;
// nothing propagates. Counts from completed phases survive a later phase's
// failure for diagnostics.
func (m *Monitor) ProcessRepository(ctx context.Context, repoFullName string) model.ProcessingResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.CycleTimeout)
	defer cancel()

	result := model.ProcessingResult{
		RepoFullName: repoFullName,
		Phase:        model.PhaseStart,
	}

	result.Phase = model.PhaseDiscovering
	snap, err := m.discoverer.Discover(ctx, repoFullName)
	if err != nil {
		m.failResult(&result, model.ErrorTypeDiscovery, err, start)
		return result
	}
	result.PRsDiscovered = len(snap.PRs)
	result.CheckRunsDiscovered = snap.CheckRunCount()
	m.recordActivity(repoFullName, freshestActivity(snap.PRs))

	result.Phase = model.PhaseDetecting
	cs, err := m.detector.DetectChanges(ctx, repoFullName, snap)
	if err != nil {
		m.failResult(&result, model.ErrorTypeChangeDetection, err, start)
		return result
	}
	result.NewPRs = len(cs.NewPRs)
	result.UpdatedPRs = len(cs.UpdatedPRs)
	result.NewCheckRuns = len(cs.NewCheckRuns)
	result.UpdatedCheckRuns = len(cs.UpdatedCheckRuns)

	result.Phase = model.PhaseSynchronizing
	rows, err := m.synchronizer.Synchronize(ctx, repoFullName, cs)
	if err != nil {
		m.failResult(&result, model.ErrorTypeSynchronization, err, start)
		return result
	}
	result.ChangesSynchronized = rows

	result.Phase = model.PhaseDone
	result.Success = true
	result.Duration = time.Since(start)

	slog.Info("repository processed",
		"repo", repoFullName,
		"prs", result.PRsDiscovered,
		"check_runs", result.CheckRunsDiscovered,
		"synchronized", result.ChangesSynchronized,
		"duration", result.Duration.Round(time.Millisecond),
	)

	return result
}

// failResult marks the result failed at the current phase. The error's own
// taxonomy type wins over the phase default when present.
func (m *Monitor) failResult(result *model.ProcessingResult, defaultType model.ErrorType, err error, start time.Time) {
	errType := defaultType
	var phaseErr *PhaseError
	if errors.As(err, &phaseErr) {
		errType = phaseErr.Type
	}

	result.Phase = model.PhaseFailed
	result.Success = false
	result.Errors = append(result.Errors, model.ProcessingError{
		Type:    errType,
		Message: err.Error(),
	})
	result.Duration = time.Since(start)

	slog.Error("repository processing failed",
		"repo", result.RepoFullName,
		"error_type", string(errType),
		"error", err,
	)
}

// ProcessRepositories fans the cycle out across repositories, at most
// MaxConcurrentRepos at a time. Each repository's result lands at its input
// index, so the result list preserves input order regardless of completion
// order, and one repository's failure never cancels or delays its siblings.
func (m *Monitor) ProcessRepositories(ctx context.Context, repoFullNames []string) model.BatchProcessingResult {
	start := time.Now()

	sem := semaphore.NewWeighted(m.cfg.MaxConcurrentRepos)
	results := make([]model.ProcessingResult, len(repoFullNames))
	var wg sync.WaitGroup

	for i, repo := range repoFullNames {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = model.ProcessingResult{
				RepoFullName: repo,
				Phase:        model.PhaseFailed,
				Errors: []model.ProcessingError{{
					Type:    model.ErrorTypeDiscovery,
					Message: err.Error(),
				}},
			}
			continue
		}

		wg.Add(1)
		go func(i int, repo string) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = m.ProcessRepository(ctx, repo)
		}(i, repo)
	}

	wg.Wait()

	batch := model.NewBatchProcessingResult(results, time.Since(start))

	slog.Info("batch processed",
		"repos", batch.Processed,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"success_rate", batch.SuccessRate(),
		"duration", batch.Duration.Round(time.Millisecond),
	)

	return batch
}

// Start runs the polling loop: an immediate pass over all watched
// repositories, then on every tick the repositories whose adaptive schedule
// is due. It also serves manual refresh requests. Start blocks until the
// context is canceled.
func (m *Monitor) Start(ctx context.Context) {
	if err := m.pollDue(ctx, true); err != nil {
		slog.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor stopped")
			return
		case <-ticker.C:
			if err := m.pollDue(ctx, false); err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		case req := <-m.refreshCh:
			result := m.ProcessRepository(ctx, req.repoFullName)
			if result.Success {
				req.done <- nil
			} else {
				req.done <- &PhaseError{
					Type: result.Errors[0].Type,
					Repo: req.repoFullName,
					Err:  errors.New(result.Errors[0].Message),
				}
			}
		}
	}
}

// RefreshRepo triggers an immediate cycle for one repository, bypassing its
// adaptive schedule. It blocks until the cycle completes or ctx is canceled.
func (m *Monitor) RefreshRepo(ctx context.Context, repoFullName string) error {
	done := make(chan error, 1)
	req := refreshRequest{repoFullName: repoFullName, done: done}

	select {
	case m.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pollDue processes every watched repository that is due (or all of them when
// force is set) and reschedules each from its observed activity.
func (m *Monitor) pollDue(ctx context.Context, force bool) error {
	repos, err := m.repoStore.ListAll(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	var due []string
	for _, repo := range repos {
		if force || m.isDue(repo.FullName, now) {
			due = append(due, repo.FullName)
		}
	}

	if len(due) == 0 {
		return nil
	}

	batch := m.ProcessRepositories(ctx, due)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, result := range batch.Results {
		sched := m.schedules[result.RepoFullName]
		sched.lastPolled = now
		sched.nextPollAt = now.Add(tierInterval(sched.tier))
		m.schedules[result.RepoFullName] = sched
	}

	return nil
}

// isDue reports whether the repository's next poll time has arrived.
// Repositories never polled before are always due.
func (m *Monitor) isDue(repoFullName string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sched, ok := m.schedules[repoFullName]
	if !ok {
		return true
	}
	return !now.Before(sched.nextPollAt)
}

// recordActivity reclassifies the repository's activity tier from its
// freshest observed PR activity.
func (m *Monitor) recordActivity(repoFullName string, lastActivity time.Time) {
	tier := classifyActivity(lastActivity)

	m.mu.Lock()
	defer m.mu.Unlock()

	sched := m.schedules[repoFullName]
	if sched.tier != tier {
		slog.Debug("activity tier changed",
			"repo", repoFullName,
			"from", sched.tier.String(),
			"to", tier.String(),
		)
	}
	sched.tier = tier
	m.schedules[repoFullName] = sched
}

// Schedule returns the repository's current adaptive schedule.
func (m *Monitor) Schedule(repoFullName string) ScheduleInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	sched := m.schedules[repoFullName]
	return ScheduleInfo{
		Tier:       sched.tier,
		NextPollAt: sched.nextPollAt,
		LastPolled: sched.lastPolled,
	}
}
