package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
)

const (
	defaultScanInterval = 10 * time.Second
	defaultSettleTime   = 2 * time.Second
	defaultStaleAfter   = 10 * time.Minute
	staleResumeBatch    = 50
)

type watcherCommand int

const (
	cmdStart watcherCommand = iota + 1
	cmdStop
)

// PendingResumer completes records left pending by an interrupted run.
type PendingResumer interface {
	Resume(ctx context.Context, rec *domain.FaxRecord) (*domain.FaxRecord, error)
}

// WatcherObserver receives scan-level measurements.
type WatcherObserver interface {
	ObserveScan(outcome string, duration time.Duration, report domain.ScanReport)
	SetQueueDepth(n int)
}

type WatcherOptions struct {
	Interval time.Duration
	// SettleTime is how long a file must be unmodified before pickup; negative disables the check.
	SettleTime time.Duration
	StaleAfter time.Duration
	Archive    bool
	Observer   WatcherObserver
	Logger     *slog.Logger
	Now        func() time.Time
}

type fileFingerprint struct {
	size    int64
	modTime time.Time
}

// FolderWatcher polls the configured watch folder and hands every new file to
// the intake exactly once. All scanning happens on the goroutine running Run;
// Start, Stop and ScanNow only enqueue commands for it.
type FolderWatcher struct {
	intake   ports.FaxIngestor
	resumer  PendingResumer
	repo     ports.FaxRepository
	settings ports.SettingsService
	inbox    ports.Inbox
	opts     WatcherOptions

	commands     chan watcherCommand
	scanRequests chan struct{}
	done         chan struct{}
	scanMu       sync.Mutex

	mu           sync.RWMutex
	running      bool
	folder       string
	filesInQueue int
	lastScanAt   *time.Time
	currentFile  string
	recentErrors []domain.WatcherError

	// owned by the scanning goroutine (guarded by scanMu)
	known map[string]fileFingerprint
}

func NewFolderWatcher(
	intake ports.FaxIngestor,
	resumer PendingResumer,
	repo ports.FaxRepository,
	settings ports.SettingsService,
	inbox ports.Inbox,
	opts WatcherOptions,
) *FolderWatcher {
	if opts.Interval <= 0 {
		opts.Interval = defaultScanInterval
	}
	if opts.SettleTime < 0 {
		opts.SettleTime = 0
	} else if opts.SettleTime == 0 {
		opts.SettleTime = defaultSettleTime
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = defaultStaleAfter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &FolderWatcher{
		intake:       intake,
		resumer:      resumer,
		repo:         repo,
		settings:     settings,
		inbox:        inbox,
		opts:         opts,
		commands:     make(chan watcherCommand, 16),
		scanRequests: make(chan struct{}, 1),
		done:         make(chan struct{}),
		recentErrors: []domain.WatcherError{},
		known:        make(map[string]fileFingerprint),
	}
}

// Run owns the periodic timer. It returns when ctx is cancelled, after any
// in-flight scan has finished.
func (w *FolderWatcher) Run(ctx context.Context) error {
	defer close(w.done)

	var ticker *time.Ticker
	var tick <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			w.setRunning(false)
			return nil
		case cmd := <-w.commands:
			switch cmd {
			case cmdStart:
				if ticker != nil || !w.isRunning() {
					continue
				}
				w.prepare(ctx)
				ticker = time.NewTicker(w.opts.Interval)
				tick = ticker.C
				w.runScan(ctx)
			case cmdStop:
				stopTicker()
			}
		case <-tick:
			// a tick can be ready alongside a queued cmdStop
			if !w.isRunning() {
				stopTicker()
				continue
			}
			w.runScan(ctx)
		case <-w.scanRequests:
			w.runScan(ctx)
		}
	}
}

func (w *FolderWatcher) Start() domain.WatcherStatus {
	w.mu.Lock()
	already := w.running
	w.running = true
	w.mu.Unlock()

	if !already {
		w.send(cmdStart)
		w.opts.Logger.Info("watcher_started")
	}
	return w.Status()
}

func (w *FolderWatcher) Stop() domain.WatcherStatus {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		w.send(cmdStop)
		w.opts.Logger.Info("watcher_stopped")
	}
	return w.Status()
}

// ScanNow queues one scan and returns immediately. Requests made while a scan
// is already queued are coalesced.
func (w *FolderWatcher) ScanNow() domain.WatcherStatus {
	select {
	case w.scanRequests <- struct{}{}:
	default:
	}
	return w.Status()
}

func (w *FolderWatcher) Status() domain.WatcherStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := domain.WatcherStatus{
		IsRunning:             w.running,
		WatchFolder:           w.folder,
		FilesInQueue:          w.filesInQueue,
		CurrentFileInProgress: w.currentFile,
		RecentErrors:          append([]domain.WatcherError(nil), w.recentErrors...),
	}
	if status.RecentErrors == nil {
		status.RecentErrors = []domain.WatcherError{}
	}
	if w.lastScanAt != nil {
		at := *w.lastScanAt
		status.LastScanAt = &at
	}
	return status
}

// ScanOnce performs a single synchronous scan. Scan-level problems are both
// recorded in the status and returned.
func (w *FolderWatcher) ScanOnce(ctx context.Context) (domain.ScanReport, error) {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	start := w.opts.Now()
	report, err := w.scan(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if w.opts.Observer != nil {
		w.opts.Observer.ObserveScan(outcome, w.opts.Now().Sub(start), report)
	}
	return report, err
}

func (w *FolderWatcher) runScan(ctx context.Context) {
	report, err := w.ScanOnce(ctx)
	if err != nil {
		w.opts.Logger.Error("watcher_scan_failed", "folder", report.Folder, "error", err)
		return
	}
	w.opts.Logger.Info("watcher_scan_completed",
		"folder", report.Folder,
		"discovered", report.Discovered,
		"ingested", report.Ingested,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
}

func (w *FolderWatcher) scan(ctx context.Context) (domain.ScanReport, error) {
	w.resumeStale(ctx)

	now := w.opts.Now().UTC()
	report := domain.ScanReport{StartedAt: now}

	settings, err := w.settings.Get(ctx)
	if err != nil {
		w.finishScan(now)
		w.recordError("", fmt.Errorf("load settings: %w", err))
		return report, err
	}
	report.Folder = settings.WatchFolder
	w.setFolder(settings.WatchFolder)

	files, err := w.inbox.List(ctx, settings.WatchFolder)
	if err != nil {
		w.finishScan(now)
		err = fmt.Errorf("folder unreadable: %w", err)
		w.recordError("", err)
		report.FinishedAt = w.opts.Now().UTC()
		return report, err
	}

	candidates := w.candidates(files, now)
	report.Discovered = len(candidates)
	w.setQueue(len(candidates))

	for i, file := range candidates {
		if ctx.Err() != nil {
			break
		}
		w.setCurrent(file.Name)
		w.ingestFile(ctx, file, &report)
		w.setQueue(len(candidates) - i - 1)
	}

	w.setCurrent("")
	w.finishScan(w.opts.Now().UTC())
	report.FinishedAt = w.opts.Now().UTC()
	return report, nil
}

// candidates drops unsupported, already-resolved and still-settling files,
// preserving listing order.
func (w *FolderWatcher) candidates(files []domain.InboxFile, now time.Time) []domain.InboxFile {
	present := make(map[string]struct{}, len(files))
	out := make([]domain.InboxFile, 0, len(files))
	for _, f := range files {
		present[f.Path] = struct{}{}
		if !w.intake.Accepts(f.Name) {
			continue
		}
		if fp, ok := w.known[f.Path]; ok && fp.size == f.Size && fp.modTime.Equal(f.ModTime) {
			continue
		}
		if now.Sub(f.ModTime) < w.opts.SettleTime {
			continue
		}
		out = append(out, f)
	}
	for path := range w.known {
		if _, ok := present[path]; !ok {
			delete(w.known, path)
		}
	}
	return out
}

func (w *FolderWatcher) ingestFile(ctx context.Context, file domain.InboxFile, report *domain.ScanReport) {
	// a started file runs to completion even if the watcher is shutting down
	ingestCtx := context.WithoutCancel(ctx)
	fp := fileFingerprint{size: file.Size, modTime: file.ModTime}

	rec, err := w.intake.Ingest(ingestCtx, domain.FaxSource{
		Path:       file.Path,
		Filename:   file.Name,
		ReceivedAt: w.opts.Now().UTC(),
	})
	switch {
	case err == nil:
		report.Ingested++
		w.known[file.Path] = fp
		w.archive(ingestCtx, file, rec)
	case errors.Is(err, domain.ErrDuplicateFax), errors.Is(err, domain.ErrUnsupportedFile):
		report.Skipped++
		w.known[file.Path] = fp
	default:
		report.Failed++
		w.recordError(file.Name, err)
		w.opts.Logger.Error("watcher_ingest_failed", "file", file.Path, "error", err)
	}
}

func (w *FolderWatcher) archive(ctx context.Context, file domain.InboxFile, rec *domain.FaxRecord) {
	if !w.opts.Archive {
		return
	}
	dest, err := w.inbox.Archive(ctx, file)
	if err != nil {
		w.recordError(file.Name, fmt.Errorf("archive: %w", err))
		return
	}
	delete(w.known, file.Path)
	w.opts.Logger.Info("fax_archived", "fax_id", rec.ID, "from", file.Path, "to", dest)
}

// prepare creates the watch folder.
func (w *FolderWatcher) prepare(ctx context.Context) {
	settings, err := w.settings.Get(ctx)
	if err != nil {
		w.recordError("", fmt.Errorf("load settings: %w", err))
		return
	}
	w.setFolder(settings.WatchFolder)
	if err := w.inbox.Ensure(ctx, settings.WatchFolder); err != nil {
		w.recordError("", fmt.Errorf("create watch folder: %w", err))
	}
}

// resumeStale finishes claims that have sat in pending longer than
// StaleAfter, whether left by a crashed process or a failed completion.
// Called at the top of every scan.
func (w *FolderWatcher) resumeStale(ctx context.Context) {
	if w.resumer == nil || w.repo == nil {
		return
	}
	stale, err := w.repo.ListPendingBefore(ctx, w.opts.Now().UTC().Add(-w.opts.StaleAfter), staleResumeBatch)
	if err != nil {
		w.recordError("", fmt.Errorf("list stale claims: %w", err))
		return
	}
	for i := range stale {
		rec := stale[i]
		if _, err := w.resumer.Resume(context.WithoutCancel(ctx), &rec); err != nil {
			w.recordError(rec.Filename, fmt.Errorf("resume claim %s: %w", rec.ID, err))
			continue
		}
		w.opts.Logger.Info("stale_claim_resumed", "fax_id", rec.ID, "file", rec.Filename)
	}
}

func (w *FolderWatcher) send(cmd watcherCommand) {
	select {
	case w.commands <- cmd:
	case <-w.done:
	}
}

func (w *FolderWatcher) recordError(file string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.recentErrors = append(w.recentErrors, domain.WatcherError{
		OccurredAt: w.opts.Now().UTC(),
		File:       file,
		Message:    err.Error(),
	})
	if over := len(w.recentErrors) - domain.MaxWatcherErrors; over > 0 {
		w.recentErrors = append([]domain.WatcherError(nil), w.recentErrors[over:]...)
	}
}

func (w *FolderWatcher) isRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *FolderWatcher) setRunning(v bool) {
	w.mu.Lock()
	w.running = v
	w.mu.Unlock()
}

func (w *FolderWatcher) setFolder(folder string) {
	w.mu.Lock()
	w.folder = folder
	w.mu.Unlock()
}

func (w *FolderWatcher) setCurrent(name string) {
	w.mu.Lock()
	w.currentFile = name
	w.mu.Unlock()
}

func (w *FolderWatcher) setQueue(n int) {
	w.mu.Lock()
	w.filesInQueue = n
	w.mu.Unlock()
	if w.opts.Observer != nil {
		w.opts.Observer.SetQueueDepth(n)
	}
}

func (w *FolderWatcher) finishScan(at time.Time) {
	w.mu.Lock()
	w.lastScanAt = &at
	w.filesInQueue = 0
	w.mu.Unlock()
}
