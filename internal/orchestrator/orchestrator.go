// Package orchestrator drives the single-threaded tick loop that ties
// together the scanner, planner, copier, VSS, mount, checkpoint, health
// and job-log components into one replication run (spec §4.7). It is the
// only component that mutates state.RunState's reference-typed fields;
// everything else either reads a snapshot or owns its own concurrency.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/robocurse/robocurse/internal/checkpoint"
	"github.com/robocurse/robocurse/internal/copier"
	"github.com/robocurse/robocurse/internal/health"
	"github.com/robocurse/robocurse/internal/joblog"
	"github.com/robocurse/robocurse/internal/mount"
	"github.com/robocurse/robocurse/internal/planner"
	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/scanner"
	"github.com/robocurse/robocurse/internal/state"
	"github.com/robocurse/robocurse/internal/vss"
)

const component = "orchestrator"

const stopWaitTimeout = 5 * time.Second

// Config bundles the tunables the tick loop needs, sourced from
// config.GlobalSettings plus CLI overrides (spec §4.7, §6).
type Config struct {
	StateDir          string
	CopierPath        string
	MaxConcurrent     int
	BandwidthMbps     float64
	ThreadsPerJob     int
	IgnoreCheckpoint  bool
	DryRun            bool
	SkipInit          bool
	CheckpointEvery   int64
	HealthInterval    time.Duration
	MaxChunkRetries   int
	RetryBase         time.Duration
	RetryMultiplier   float64
	RetryMax          time.Duration
	ScanCacheSize     int
	ScanConcurrency   int64
}

// Callbacks are invoked from within Tick; all are optional. They run
// synchronously on the tick goroutine, so a slow callback (e.g. an
// interactive progress bar redraw) directly slows the tick cadence.
type Callbacks struct {
	OnChunkComplete   func(*state.Chunk)
	OnProfileComplete func(state.ProfileResult)
	OnProgress        func(state.Snapshot)
	OnSessionEnd      func()
}

// jobCompletion is the event an in-flight job's waiter goroutine
// delivers once its child process exits, consumed by Tick's reap step.
type jobCompletion struct {
	pid      int
	exitCode int
	err      error
}

// Orchestrator owns one replication run's tick loop. Tick must not be
// called concurrently with itself; tickMu enforces that even if a caller
// mistakenly does (spec §5 "the tick function... must not be
// re-entered").
type Orchestrator struct {
	cfg       Config
	state     *state.RunState
	callbacks Callbacks

	scanner         *scanner.Scanner
	vss             *vss.Manager
	mount           *mount.Manager
	checkpointStore *checkpoint.Store
	healthWriter    *health.Writer
	jobs            *joblog.Tracker
	copierRunner    *copier.Runner

	tickMu sync.Mutex

	checkpoint      *state.Checkpoint
	currentProfile  *state.Profile
	activeCredential *state.Credential
	currentMounts   []*state.MountRecord

	profileStartedAt      time.Time
	chunksTotalForProfile int
	hadAnyFailure         bool

	completedSources   []string
	completedSourceSet map[string]bool

	completions chan jobCompletion
	handlesMu   sync.Mutex
	handles     map[int]*copier.Handle
}

// New builds an Orchestrator over the given shared run state and
// component dependencies.
func New(cfg Config, rs *state.RunState, callbacks Callbacks, scn *scanner.Scanner, vssMgr *vss.Manager, mountMgr *mount.Manager, cpStore *checkpoint.Store, healthWriter *health.Writer, jobs *joblog.Tracker, copierRunner *copier.Runner) *Orchestrator {
	return &Orchestrator{
		cfg:                cfg,
		state:              rs,
		callbacks:          callbacks,
		scanner:            scn,
		vss:                vssMgr,
		mount:              mountMgr,
		checkpointStore:    cpStore,
		healthWriter:       healthWriter,
		jobs:               jobs,
		copierRunner:       copierRunner,
		completions:        make(chan jobCompletion, 64),
		handles:            make(map[int]*copier.Handle),
		completedSourceSet: make(map[string]bool),
	}
}

// RequestStop, RequestPause and RequestResume forward to the shared run
// state's cooperative flags, checked at the top of the next Tick.
func (o *Orchestrator) RequestStop()   { o.state.RequestStop() }
func (o *Orchestrator) RequestPause()  { o.state.RequestPause() }
func (o *Orchestrator) RequestResume() { o.state.RequestResume() }

// HadFailures reports whether any chunk in this run exhausted its
// retries or any profile failed to start, for the caller's exit-code
// decision (spec §7: "the session exits with a non-zero code only if
// any profile ended with failures").
func (o *Orchestrator) HadFailures() bool { return o.hadAnyFailure }

// Done reports whether the run has reached a terminal phase.
func (o *Orchestrator) Done() bool {
	phase := o.state.Phase()
	return phase == state.PhaseComplete || phase == state.PhaseStopped
}

// Start loads any existing checkpoint (unless IgnoreCheckpoint),
// recovers orphaned VSS snapshots and mounts from a prior crashed run,
// and begins the first not-yet-completed profile.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(o.cfg.StateDir, "Jobs"), 0o755); err != nil {
		return roboerr.Wrap(roboerr.CheckpointIoError, component, "cannot create job log directory", err)
	}

	if !o.cfg.IgnoreCheckpoint {
		cp, err := o.checkpointStore.Load()
		if err != nil {
			return err
		}
		o.checkpoint = cp
		if cp != nil {
			for _, s := range cp.CompletedSources {
				o.addCompletedSource(s)
			}
			o.state.AddCompleted(cp.CompletedCount)
			o.state.AddSkipped(cp.SkippedCount)
			o.state.AddBytesComplete(cp.BytesComplete)
			for i := 0; i < cp.CurrentProfileIndex; i++ {
				o.state.AdvanceProfile()
			}
		}
	}

	if !o.cfg.SkipInit {
		o.recoverOrphans(ctx)
	}

	o.jobs.SessionStarted(o.state.SessionId)

	if len(o.state.Profiles) == 0 {
		o.state.SetPhase(state.PhaseComplete)
		return nil
	}

	idx := o.state.CurrentProfileIndex()
	if idx >= len(o.state.Profiles) {
		o.state.SetPhase(state.PhaseComplete)
		_ = o.checkpointStore.Remove()
		return nil
	}

	if err := o.beginProfile(ctx, o.state.Profiles[idx]); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) recoverOrphans(ctx context.Context) {
	o.vss.Registry.RecoverOrphans(func(rec *state.SnapshotRecord) error {
		if rec.IsRemote {
			return o.vss.HTTP.DeleteShadowCopy(ctx, rec.ServerName, rec.ShadowId, nil)
		}
		return o.vss.DeleteLocal(ctx, rec)
	})
	o.mount.RecoverOrphans(ctx)
}

// Tick runs one iteration of the algorithm in spec §4.7.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()

	phase := o.state.Phase()
	if phase == state.PhaseComplete || phase == state.PhaseStopped {
		return
	}

	if o.state.StopRequested() {
		o.stopAll(ctx)
		return
	}

	o.reap(ctx)

	if o.state.PauseRequested() {
		o.writeHealthAndProgress()
		return
	}

	o.dispatch(ctx)

	if o.state.ChunkQueue.Count() == 0 && o.state.ActiveJobs.Count() == 0 {
		o.completeProfile(ctx)
	}

	o.writeHealthAndProgress()
}

// reap drains every job-completion event posted so far without
// blocking; each one is matched against ActiveJobs via the atomic
// extract so a job is processed at most once even if stopAll raced it.
func (o *Orchestrator) reap(ctx context.Context) {
	for {
		select {
		case c := <-o.completions:
			o.handleCompletion(c)
		default:
			return
		}
	}
}

func (o *Orchestrator) handleCompletion(c jobCompletion) {
	job, ok := o.state.ActiveJobs.Extract(c.pid)
	if !ok {
		return
	}

	o.handlesMu.Lock()
	delete(o.handles, c.pid)
	o.handlesMu.Unlock()

	chunk := job.Chunk

	if c.err != nil {
		o.jobs.ChunkEnded(o.state.SessionId, job.Profile.Name, chunk.ChunkId, joblog.StatusFailed, c.err)
		o.failureHandler(chunk, true, c.err.Error())
		o.maybeCheckpoint(true)
		o.invokeChunkComplete(chunk)
		return
	}

	result := copier.InterpretExitCode(c.exitCode, job.Profile.EffectiveMismatchSeverity())
	if result.Severity == copier.SeverityError || result.Severity == copier.SeverityFatal {
		o.jobs.ChunkEnded(o.state.SessionId, job.Profile.Name, chunk.ChunkId, joblog.StatusFailed, errors.New(result.Message))
		o.failureHandler(chunk, result.ShouldRetry, result.Message)
		o.maybeCheckpoint(true)
		o.invokeChunkComplete(chunk)
		return
	}

	chunk.Status = state.ChunkComplete
	if result.Severity == copier.SeverityWarning {
		chunk.Status = state.ChunkCompleteWithWarnings
	}
	o.jobs.ChunkEnded(o.state.SessionId, job.Profile.Name, chunk.ChunkId, joblog.StatusCompleted, nil)

	o.state.CompletedChunks.Append(chunk)
	o.state.AddBytesComplete(chunk.EstimatedSize)
	o.state.AddCompletedChunkBytes(chunk.EstimatedSize)
	o.state.AddCompletedChunkFiles(job.Progress.FilesCopied())
	o.state.AddCompleted(1)

	source, _ := chunk.ResolvedPaths(o.currentProfile)
	o.addCompletedSource(source)

	o.maybeCheckpoint(false)
	o.invokeChunkComplete(chunk)
}

func (o *Orchestrator) invokeChunkComplete(chunk *state.Chunk) {
	if o.callbacks.OnChunkComplete != nil {
		o.callbacks.OnChunkComplete(chunk)
	}
}

// failureHandler implements spec §4.7.2.
func (o *Orchestrator) failureHandler(chunk *state.Chunk, shouldRetry bool, message string) {
	chunk.RetryCount++
	if shouldRetry && chunk.RetryCount < o.cfg.MaxChunkRetries {
		retryAt := time.Now().Add(o.backoff(chunk.RetryCount))
		chunk.RetryAfter = &retryAt
		chunk.Status = state.ChunkPending
		o.state.ChunkQueue.Push(chunk)
		return
	}

	chunk.Status = state.ChunkFailed
	o.state.FailedChunks.Append(chunk)
	o.hadAnyFailure = true

	msg := fmt.Sprintf("chunk %d (%s): %s", chunk.ChunkId, chunk.SourceSubpath, message)
	o.state.ErrorMessages.Push(msg)
	log.WithFields(log.Fields{"component": component, "chunk_id": chunk.ChunkId}).Warn(msg)
}

// backoff implements spec §4.7.1.
func (o *Orchestrator) backoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	base, mult, max := o.cfg.RetryBase, o.cfg.RetryMultiplier, o.cfg.RetryMax
	if base <= 0 {
		base = 5 * time.Second
	}
	if mult <= 0 {
		mult = 2
	}
	if max <= 0 {
		max = 120 * time.Second
	}
	d := base
	for i := 1; i < retryCount; i++ {
		d = time.Duration(float64(d) * mult)
		if d > max {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	return d
}

// dispatch implements spec §4.7 step 4. seen guards against an infinite
// loop when every remaining chunk is backoff-deferred: once a chunk is
// encountered a second time within one dispatch pass, the whole queue
// has been cycled with nothing dispatchable, so the pass ends.
func (o *Orchestrator) dispatch(ctx context.Context) {
	seen := make(map[int64]bool)
	for o.state.ActiveJobs.Count() < o.cfg.MaxConcurrent {
		chunk := o.state.ChunkQueue.Pop()
		if chunk == nil {
			return
		}
		if seen[chunk.ChunkId] {
			o.state.ChunkQueue.Push(chunk)
			return
		}

		source, _ := chunk.ResolvedPaths(o.currentProfile)
		if o.checkpoint.IsCompleted(source) {
			chunk.Status = state.ChunkSkipped
			o.state.AddCompleted(1)
			o.state.AddSkipped(1)
			o.state.AddBytesComplete(chunk.EstimatedSize)
			o.state.AddSkippedChunkBytes(chunk.EstimatedSize)
			o.addCompletedSource(source)
			continue
		}

		if chunk.RetryAfter != nil && chunk.RetryAfter.After(time.Now()) {
			seen[chunk.ChunkId] = true
			o.state.ChunkQueue.Push(chunk)
			continue
		}

		ipg := copier.InterPacketGapMs(o.cfg.BandwidthMbps, o.state.ActiveJobs.Count(), true)
		if err := o.launch(ctx, chunk, ipg); err != nil {
			o.handleLaunchFailure(chunk, err)
		}
	}
}

func (o *Orchestrator) launch(ctx context.Context, chunk *state.Chunk, ipg int) error {
	source, dest := chunk.ResolvedPaths(o.currentProfile)
	logPath := o.chunkLogPath(chunk.ChunkId)

	args := copier.BuildArgs(copier.BuildInput{
		Source:           source,
		Destination:      dest,
		Profile:          o.currentProfile,
		Chunk:            chunk,
		ThreadCount:      o.cfg.ThreadsPerJob,
		LogPath:          logPath,
		DryRun:           o.cfg.DryRun,
		InterPacketGapMs: ipg,
	})

	progress := state.NewProgressBuffer()
	handle, err := o.copierRunner.Launch(ctx, args, progress)
	if err != nil {
		return err
	}
	pid := handle.Pid()

	chunk.Status = state.ChunkRunning
	job := &state.Job{
		Pid:      pid,
		Chunk:    chunk,
		Profile:  o.currentProfile,
		Started:  time.Now(),
		LogPath:  logPath,
		DryRun:   o.cfg.DryRun,
		Progress: progress,
	}
	o.state.ActiveJobs.Insert(pid, job)

	o.handlesMu.Lock()
	o.handles[pid] = handle
	o.handlesMu.Unlock()

	o.jobs.ChunkStarted(o.state.SessionId, o.currentProfile.Name, chunk.ChunkId)

	go func() {
		code, werr := handle.Wait(0)
		o.completions <- jobCompletion{pid: pid, exitCode: code, err: werr}
	}()
	return nil
}

func (o *Orchestrator) handleLaunchFailure(chunk *state.Chunk, err error) {
	chunk.RetryCount++
	o.state.ErrorMessages.Push(fmt.Sprintf("chunk %d (%s): launch failed: %s", chunk.ChunkId, chunk.SourceSubpath, err))

	if chunk.RetryCount < o.cfg.MaxChunkRetries {
		retryAt := time.Now().Add(o.backoff(chunk.RetryCount))
		chunk.RetryAfter = &retryAt
		chunk.Status = state.ChunkPending
		o.state.ChunkQueue.Push(chunk)
		log.WithFields(log.Fields{"component": component, "chunk_id": chunk.ChunkId}).WithError(err).Warn("copier launch failed, will retry")
		return
	}

	chunk.Status = state.ChunkFailed
	o.state.FailedChunks.Append(chunk)
	o.hadAnyFailure = true
	log.WithFields(log.Fields{"component": component, "chunk_id": chunk.ChunkId}).WithError(err).Error("copier launch failed, giving up")
}

func (o *Orchestrator) maybeCheckpoint(force bool) {
	completed := o.state.CompletedCount()
	every := o.cfg.CheckpointEvery
	if every <= 0 {
		every = 10
	}
	if !force && (completed == 0 || completed%every != 0) {
		return
	}
	if err := o.saveCheckpoint(); err != nil {
		log.WithField("component", component).WithError(err).Warn("cannot save checkpoint")
	}
}

func (o *Orchestrator) saveCheckpoint() error {
	profileName := ""
	if p := o.state.CurrentProfile(); p != nil {
		profileName = p.Name
	}
	cp := &state.Checkpoint{
		SessionId:           o.state.SessionId,
		SavedAt:             time.Now(),
		CurrentProfileIndex: o.state.CurrentProfileIndex(),
		CurrentProfileName:  profileName,
		CompletedSources:    append([]string(nil), o.completedSources...),
		CompletedCount:      o.state.CompletedCount(),
		SkippedCount:        o.state.SkippedCount(),
		BytesComplete:       o.state.BytesComplete(),
		StartTime:           o.state.StartedAt,
	}
	return o.checkpointStore.Save(cp)
}

func (o *Orchestrator) addCompletedSource(path string) {
	if o.completedSourceSet[path] {
		return
	}
	o.completedSourceSet[path] = true
	o.completedSources = append(o.completedSources, path)
}

// completeProfile implements spec §4.7.4.
func (o *Orchestrator) completeProfile(ctx context.Context) {
	completed := o.state.CompletedChunks.Snapshot()
	failed := o.state.FailedChunks.Snapshot()

	var bytesCopied int64
	for _, c := range completed {
		bytesCopied += c.EstimatedSize
	}
	bytesCopied += o.state.SkippedChunkBytes()
	filesCopied := o.state.CompletedChunkFiles() - o.state.ProfileStartFiles()

	result := state.ProfileResult{
		ProfileName:     o.currentProfile.Name,
		StartedAt:       o.profileStartedAt,
		EndedAt:         time.Now(),
		ChunksTotal:     o.chunksTotalForProfile,
		ChunksCompleted: len(completed),
		ChunksSkipped:   int(o.state.SkippedCount()),
		ChunksFailed:    len(failed),
		BytesCopied:     bytesCopied,
		FilesCopied:     filesCopied,
	}
	for _, c := range failed {
		result.Errors = append(result.Errors, fmt.Sprintf("chunk %d (%s) failed", c.ChunkId, c.SourceSubpath))
	}
	o.state.ProfileResults.Append(result)

	if err := appendFailedFilesSummary(o.failedFilesPath(), failed, o.chunkLogPath); err != nil {
		log.WithField("component", component).WithError(err).Warn("cannot write failed-files summary")
	}

	o.teardownProfile(ctx)

	profileName := o.currentProfile.Name
	if o.callbacks.OnProfileComplete != nil {
		o.callbacks.OnProfileComplete(result)
	}
	o.jobs.ProfileEnded(o.state.SessionId, profileName, joblogStatusFor(len(failed) == 0))

	o.state.ChunkQueue.Drain()
	o.state.CompletedChunks.Drain()
	o.state.FailedChunks.Drain()

	nextIdx := o.state.AdvanceProfile()
	if nextIdx < len(o.state.Profiles) {
		if err := o.beginProfile(ctx, o.state.Profiles[nextIdx]); err != nil {
			o.hadAnyFailure = true
			o.state.ErrorMessages.Push("failed to start next profile: " + err.Error())
			log.WithField("component", component).WithError(err).Error("cannot start next profile")
			o.state.SetPhase(state.PhaseStopped)
		}
		return
	}

	o.state.SetPhase(state.PhaseComplete)
	_ = o.checkpointStore.Remove()
	o.jobs.SessionEnded(o.state.SessionId, joblogStatusFor(!o.hadAnyFailure), nil)
	if o.callbacks.OnSessionEnd != nil {
		o.callbacks.OnSessionEnd()
	}
}

func joblogStatusFor(success bool) joblog.Status {
	if success {
		return joblog.StatusCompleted
	}
	return joblog.StatusFailed
}

// beginProfile implements the per-profile setup spec §4.7 assumes has
// already happened by the time chunks reach the dispatch step: VSS
// snapshot + junction exposure, UNC mounting, scanning and planning.
func (o *Orchestrator) beginProfile(ctx context.Context, p *state.Profile) error {
	if err := requireUNCCredential(p); err != nil {
		return err
	}

	o.profileStartedAt = time.Now()
	o.currentMounts = nil
	o.activeCredential = p.Credential
	o.state.SetPhase(state.PhaseScanning)

	eff := *p
	sourceExposedByVSS := false

	if p.UseVSS {
		rec, err := o.snapshotProfile(ctx, p)
		if err != nil {
			return err
		}
		o.state.SetCurrentSnapshot(rec)

		junction, err := o.exposeSnapshot(ctx, p, rec)
		if err != nil {
			return err
		}
		eff.Source = junction
		sourceExposedByVSS = true
	}

	if !sourceExposedByVSS && strings.HasPrefix(eff.Source, `\\`) {
		rec, err := o.mount.MountOne(ctx, eff.Source, p.Credential)
		if err != nil {
			return err
		}
		o.currentMounts = append(o.currentMounts, rec)
		eff.Source = rec.MappedPath
	}
	if strings.HasPrefix(eff.Destination, `\\`) {
		rec, err := o.mount.MountOne(ctx, eff.Destination, p.Credential)
		if err != nil {
			return err
		}
		o.currentMounts = append(o.currentMounts, rec)
		eff.Destination = rec.MappedPath
	}

	o.currentProfile = &eff
	o.state.SetCurrentOptions(eff.Options)
	o.state.SetProfileStartFiles(o.state.CompletedChunkFiles())

	tree, err := o.scanner.ProfileDirectory(ctx, eff.Source)
	if err != nil {
		return err
	}

	limits := planner.Limits{MaxSizeBytes: p.MaxChunkSizeBytes, MaxFiles: p.MaxChunkFiles, MaxDepth: p.MaxChunkDepth}
	chunks := planner.Plan(p, tree, limits)
	o.chunksTotalForProfile = len(chunks)
	for _, c := range chunks {
		o.state.ChunkQueue.Push(c)
	}

	o.jobs.ProfileStarted(o.state.SessionId, p.Name)
	o.state.SetPhase(state.PhaseReplicating)
	return nil
}

// requireUNCCredential enforces spec §8 scenario 5: a UNC source or
// destination with no credential must abort the profile before any
// snapshot, mount, or copier spawn, since this orchestrator has no
// interactive prompt to fall back on.
func requireUNCCredential(p *state.Profile) error {
	if p.Credential != nil {
		return nil
	}
	if strings.HasPrefix(p.Source, `\\`) || strings.HasPrefix(p.Destination, `\\`) {
		return roboerr.New(roboerr.UncRequiresCredential, component, "profile "+p.Name+" has a UNC path but no credential for a non-interactive run")
	}
	return nil
}

func (o *Orchestrator) snapshotProfile(ctx context.Context, p *state.Profile) (*state.SnapshotRecord, error) {
	if strings.HasPrefix(p.Source, `\\`) {
		return o.vss.CreateRemote(ctx, p.Source, p.Credential)
	}
	return o.vss.CreateLocal(ctx, p.Source)
}

func (o *Orchestrator) exposeSnapshot(ctx context.Context, p *state.Profile, rec *state.SnapshotRecord) (string, error) {
	if rec.IsRemote {
		return o.vss.CreateRemoteJunctionForShare(ctx, rec, "", p.Credential)
	}
	return o.vss.CreateLocalJunction(ctx, rec, "")
}

// teardownProfile tears down this profile's VSS snapshot and UNC mounts
// in parallel (SPEC_FULL.md §5 **[ADDED]**), logging but not failing on
// either side's error so the other side's teardown still runs.
func (o *Orchestrator) teardownProfile(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		if rec := o.state.CurrentSnapshot(); rec != nil {
			if err := o.vss.Cleanup(ctx, rec, o.activeCredential); err != nil {
				log.WithField("component", component).WithError(err).Warn("vss cleanup failed for completed profile")
			}
			o.state.SetCurrentSnapshot(nil)
		}
		return nil
	})
	g.Go(func() error {
		for _, rec := range o.currentMounts {
			if err := o.mount.Dismount(ctx, rec); err != nil {
				log.WithField("component", component).WithError(err).Warn("dismount failed for completed profile")
			}
		}
		o.currentMounts = nil
		return nil
	})
	_ = g.Wait()
}

// stopAll implements spec §4.7.3.
func (o *Orchestrator) stopAll(ctx context.Context) {
	jobs := o.state.ActiveJobs.Clear()

	o.handlesMu.Lock()
	handles := o.handles
	o.handles = make(map[int]*copier.Handle)
	o.handlesMu.Unlock()

	var wg sync.WaitGroup
	for _, job := range jobs {
		h, ok := handles[job.Pid]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(h *copier.Handle) {
			defer wg.Done()
			_, _ = h.Wait(stopWaitTimeout)
		}(h)
	}
	wg.Wait()

	o.teardownProfile(ctx)

	o.state.SetPhase(state.PhaseStopped)
	o.jobs.SessionEnded(o.state.SessionId, joblog.StatusCancelled, nil)
	if o.callbacks.OnSessionEnd != nil {
		o.callbacks.OnSessionEnd()
	}
	o.writeHealthAndProgress()
}

func (o *Orchestrator) writeHealthAndProgress() {
	msg := "replicating"
	switch o.state.Phase() {
	case state.PhaseStopped:
		msg = "stopped by request"
	case state.PhaseComplete:
		msg = "session complete"
	case state.PhaseScanning:
		msg = "scanning"
	}
	if o.hadAnyFailure {
		msg = msg + " (with failures)"
	}

	st := health.BuildStatus(o.state, o.chunksTotalForProfile, o.hadAnyFailure, msg)
	if err := o.healthWriter.Write(st, o.state.Phase() == state.PhaseStopped || o.state.Phase() == state.PhaseComplete); err != nil {
		log.WithField("component", component).WithError(err).Warn("cannot write health file")
	}

	if o.callbacks.OnProgress != nil {
		o.callbacks.OnProgress(o.state.Snapshot())
	}
}

func (o *Orchestrator) chunkLogPath(chunkID int64) string {
	return filepath.Join(o.cfg.StateDir, "Jobs", fmt.Sprintf("%s_Chunk_%d.log", o.state.SessionId, chunkID))
}

func (o *Orchestrator) failedFilesPath() string {
	return filepath.Join(o.cfg.StateDir, fmt.Sprintf("FailedFiles_%s.txt", o.state.SessionId))
}
