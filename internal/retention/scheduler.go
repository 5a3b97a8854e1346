// Package retention runs the background sweep that expires temporary
// attachments and reclaims orphaned files.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"github.com/welldanyogia/webrana-cms-backend/internal/observability"
	"github.com/welldanyogia/webrana-cms-backend/internal/repository"
	"github.com/welldanyogia/webrana-cms-backend/internal/storage"
)

// ErrSweepRunning is returned by RunOnce while another sweep is in progress
var ErrSweepRunning = errors.New("retention sweep already running")

// Config holds configuration for the retention scheduler
type Config struct {
	// Interval between sweeps; ignored when RunAt is set
	Interval time.Duration
	// RunAt schedules one sweep a day at HH:MM local time
	RunAt string
	// TempRetention applies to temporary uploads of every other relation type
	TempRetention time.Duration
	// EditorRetention applies to EditorRelationTypes, which may never be associated
	EditorRetention     time.Duration
	EditorRelationTypes []string
	// OrphanGracePeriod is the minimum age of a file in the temp tree before it
	// can be removed for lack of a row
	OrphanGracePeriod time.Duration
	// MovingStaleAfter is how long a row may stay in the moving state
	MovingStaleAfter time.Duration
	BatchSize        int
	SweepTimeout     time.Duration
	TempDir          string
}

// Report summarizes one sweep
type Report struct {
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Expired        int           `json:"expired"`
	Skipped        int           `json:"skipped"`
	Failed         int           `json:"failed"`
	Recovered      int           `json:"recovered"`
	OrphansRemoved int           `json:"orphans_removed"`
	OrphansFailed  int           `json:"orphans_failed"`
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// Scheduler runs retention sweeps on a timer until stopped
type Scheduler struct {
	repo    repository.AttachmentRepository
	storage storage.FileStorage
	config  Config
	logger  *slog.Logger
	now     func() time.Time

	stopCh  chan struct{}
	forceCh chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex

	sweepMu    sync.Mutex
	lastReport *Report
}

// NewScheduler creates a new retention scheduler
func NewScheduler(
	repo repository.AttachmentRepository,
	fileStorage storage.FileStorage,
	config Config,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	// Set defaults
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.TempRetention <= 0 {
		config.TempRetention = 24 * time.Hour
	}
	if config.EditorRetention <= 0 {
		config.EditorRetention = 72 * time.Hour
	}
	if config.EditorRelationTypes == nil {
		config.EditorRelationTypes = []string{"content"}
	}
	if config.OrphanGracePeriod <= 0 {
		config.OrphanGracePeriod = 48 * time.Hour
	}
	if config.MovingStaleAfter <= 0 {
		config.MovingStaleAfter = time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = 30 * time.Minute
	}
	if config.TempDir == "" {
		config.TempDir = "temp"
	}

	s := &Scheduler{
		repo:    repo,
		storage: fileStorage,
		config:  config,
		logger:  logger.With(slog.String("component", "retention")),
		now:     time.Now,
		stopCh:  make(chan struct{}),
		forceCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background sweep loop. Cancelling ctx has the same
// effect as Stop, minus the wait.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, stopCh)

	s.logger.Info("retention scheduler started",
		slog.Duration("interval", s.config.Interval),
		slog.String("run_at", s.config.RunAt),
		slog.Duration("temp_retention", s.config.TempRetention),
		slog.Duration("editor_retention", s.config.EditorRetention),
		slog.Duration("orphan_grace_period", s.config.OrphanGracePeriod))
}

// Stop cancels the running sweep between items and waits for the loop to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("retention scheduler stopped")
}

// IsRunning returns whether the loop is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ForceSweep wakes the loop for an immediate sweep. It never blocks.
func (s *Scheduler) ForceSweep() bool {
	if !s.IsRunning() {
		s.logger.Warn("force sweep called but scheduler is not running")
		return false
	}
	select {
	case s.forceCh <- struct{}{}:
		s.logger.Info("force sweep triggered")
	default:
	}
	return true
}

// LastReport returns the report of the most recent completed sweep
func (s *Scheduler) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return Report{}, false
	}
	return *s.lastReport, true
}

func (s *Scheduler) loop(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		timer := time.NewTimer(s.nextDelay(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-s.forceCh:
			timer.Stop()
		}
		s.runSafely(ctx)
	}
}

// runSafely runs one sweep and swallows every failure, including panics,
// so the loop survives to the next tick.
func (s *Scheduler) runSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("retention sweep panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	report, err := s.RunOnce(sweepCtx)
	if err != nil {
		s.logger.Error("retention sweep failed", slog.Any("error", err), slog.Any("report", report))
	}
}

// nextDelay returns the wait until the next sweep
func (s *Scheduler) nextDelay(now time.Time) time.Duration {
	if s.config.RunAt == "" {
		return s.config.Interval
	}
	at, err := time.Parse("15:04", s.config.RunAt)
	if err != nil {
		s.logger.Warn("invalid run_at, falling back to interval", slog.String("run_at", s.config.RunAt))
		return s.config.Interval
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// RunOnce performs one full sweep: expire temporary rows, recover stale
// moves, then remove orphaned temp files. Item failures are counted and
// logged; only cancellation or a failed listing ends a pass early.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	if !s.sweepMu.TryLock() {
		return Report{}, ErrSweepRunning
	}
	defer s.sweepMu.Unlock()

	report := Report{StartedAt: s.now()}
	s.logger.Debug("retention sweep started")

	var errs []error
	if err := s.expireTemporary(ctx, &report); err != nil {
		errs = append(errs, fmt.Errorf("expire temporary: %w", err))
	}
	if err := s.recoverMoving(ctx, &report); err != nil {
		errs = append(errs, fmt.Errorf("recover moving: %w", err))
	}
	if err := s.sweepOrphans(ctx, &report); err != nil {
		errs = append(errs, fmt.Errorf("sweep orphans: %w", err))
	}

	report.Duration = s.now().Sub(report.StartedAt)
	s.mu.Lock()
	s.lastReport = &report
	s.mu.Unlock()

	s.logger.Info("retention sweep finished",
		slog.Int("expired", report.Expired),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Int("recovered", report.Recovered),
		slog.Int("orphans_removed", report.OrphansRemoved),
		slog.Int("orphans_failed", report.OrphansFailed),
		slog.Duration("duration", report.Duration))

	return report, errors.Join(errs...)
}

// expireTemporary soft-deletes temporary rows past their retention window
func (s *Scheduler) expireTemporary(ctx context.Context, report *Report) error {
	ctx, span := observability.StartSweepSpan(ctx, "expire")
	defer span.End()

	now := s.now()
	windows := []repository.TemporaryFilter{
		{CreatedBefore: now.Add(-s.config.TempRetention), ExcludeRelationTypes: s.config.EditorRelationTypes},
	}
	if len(s.config.EditorRelationTypes) > 0 {
		windows = append(windows, repository.TemporaryFilter{
			CreatedBefore: now.Add(-s.config.EditorRetention),
			RelationTypes: s.config.EditorRelationTypes,
		})
	}

	for _, filter := range windows {
		filter.Limit = s.config.BatchSize
		for {
			if err := ctx.Err(); err != nil {
				observability.RecordError(span, err)
				return err
			}

			// The listing is a snapshot; each row is re-checked by expireOne
			batch, err := s.repo.ListExpiredTemporary(ctx, filter)
			if err != nil {
				observability.RecordError(span, err)
				return err
			}

			for i := range batch {
				if err := ctx.Err(); err != nil {
					observability.RecordError(span, err)
					return err
				}
				s.guard("expire", batch[i].ID, report, func() { s.expireOne(ctx, &batch[i], report) })
				filter.AfterID = batch[i].ID
			}

			if len(batch) < filter.Limit {
				break
			}
		}
	}
	return nil
}

// expireOne soft-deletes the row only if it is still temporary at this
// moment, then removes its file. A row promoted since the listing is
// skipped. A file that cannot be removed is left for the orphan pass.
func (s *Scheduler) expireOne(ctx context.Context, att *models.Attachment, report *Report) {
	deleted, err := s.repo.SoftDeleteIf(ctx, att.ID, repository.Guard{
		State:     models.StateTemporary,
		Temporary: repository.Bool(true),
	})
	if err != nil {
		report.Failed++
		s.logger.Error("failed to expire attachment",
			slog.Uint64("attachment_id", uint64(att.ID)),
			slog.String("file_path", att.FilePath),
			slog.Any("error", err))
		return
	}
	if !deleted {
		report.Skipped++
		s.logger.Debug("attachment no longer temporary, skipping",
			slog.Uint64("attachment_id", uint64(att.ID)))
		return
	}

	report.Expired++
	if err := s.storage.Delete(ctx, att.FilePath); err != nil {
		s.logger.Warn("failed to remove expired file, leaving it for the orphan sweep",
			slog.Uint64("attachment_id", uint64(att.ID)),
			slog.String("file_path", att.FilePath),
			slog.Any("error", err))
		return
	}
	s.logger.Debug("expired temporary attachment",
		slog.Uint64("attachment_id", uint64(att.ID)),
		slog.String("file_path", att.FilePath),
		slog.Time("created_date", att.CreatedDate))
}

// recoverMoving returns rows abandoned in the moving state to where they
// came from. A row with no pending path was being deleted and is finished off.
func (s *Scheduler) recoverMoving(ctx context.Context, report *Report) error {
	ctx, span := observability.StartSweepSpan(ctx, "recover")
	defer span.End()

	stale, err := s.repo.ListStaleMoving(ctx, s.now().Add(-s.config.MovingStaleAfter), s.config.BatchSize)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	for i := range stale {
		if err := ctx.Err(); err != nil {
			observability.RecordError(span, err)
			return err
		}
		s.guard("recover", stale[i].ID, report, func() {
			if err := s.recoverOne(ctx, &stale[i]); err != nil {
				report.Failed++
				s.logger.Error("failed to recover moving attachment",
					slog.Uint64("attachment_id", uint64(stale[i].ID)),
					slog.String("file_path", stale[i].FilePath),
					slog.String("pending_path", stale[i].PendingPath),
					slog.Any("error", err))
				return
			}
			report.Recovered++
		})
	}
	return nil
}

func (s *Scheduler) recoverOne(ctx context.Context, att *models.Attachment) error {
	moving := repository.Guard{State: models.StateMoving}

	if att.PendingPath == "" {
		if err := s.storage.Delete(ctx, att.FilePath); err != nil {
			return err
		}
		_, err := s.repo.SoftDeleteIf(ctx, att.ID, moving)
		return err
	}

	srcExists, err := s.storage.Exists(ctx, att.FilePath)
	if err != nil {
		return err
	}
	if !srcExists {
		dstExists, err := s.storage.Exists(ctx, att.PendingPath)
		if err != nil {
			return err
		}
		if dstExists {
			if err := s.storage.Move(ctx, att.PendingPath, att.FilePath); err != nil {
				return err
			}
		} else {
			s.logger.Warn("file of moving attachment is missing",
				slog.Uint64("attachment_id", uint64(att.ID)),
				slog.String("file_path", att.FilePath))
		}
	}

	prior := models.StateTemporary
	if _, owned := att.Owner(); owned {
		prior = models.StateAssociated
	}
	_, err = s.repo.CompareAndSwap(ctx, att.ID, moving, map[string]any{
		"state":        prior,
		"pending_path": "",
	})
	return err
}

// sweepOrphans removes files in the temp tree older than the grace period
// that no live row points at
func (s *Scheduler) sweepOrphans(ctx context.Context, report *Report) error {
	ctx, span := observability.StartSweepSpan(ctx, "orphans")
	defer span.End()

	cutoff := s.now().Add(-s.config.OrphanGracePeriod)
	var candidates []string
	err := s.storage.Walk(ctx, s.config.TempDir, func(info storage.FileInfo) error {
		if info.ModTime.Before(cutoff) {
			candidates = append(candidates, info.Path)
		}
		return ctx.Err()
	})
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	for start := 0; start < len(candidates); start += s.config.BatchSize {
		end := min(start+s.config.BatchSize, len(candidates))
		chunk := candidates[start:end]

		existing, err := s.repo.ExistingFilePaths(ctx, chunk)
		if err != nil {
			observability.RecordError(span, err)
			return err
		}

		for _, p := range chunk {
			if err := ctx.Err(); err != nil {
				return err
			}
			if existing[p] {
				continue
			}
			if err := s.storage.Delete(ctx, p); err != nil {
				report.OrphansFailed++
				s.logger.Warn("failed to remove orphan file",
					slog.String("file_path", p),
					slog.Any("error", err))
				continue
			}
			report.OrphansRemoved++
			s.logger.Info("removed orphan file", slog.String("file_path", p))
		}
	}
	return nil
}

// guard contains a panic in one item so the rest of the pass continues
func (s *Scheduler) guard(pass string, id uint, report *Report, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			report.Failed++
			s.logger.Error("retention item panicked",
				slog.String("pass", pass),
				slog.Uint64("attachment_id", uint64(id)),
				slog.Any("panic", r))
		}
	}()
	fn()
}
