package executor

import (
	"context"
	"fmt"
	"sync"
	"time"
	"vmigrate/internal/inventory"
	"vmigrate/internal/logger"
	"vmigrate/internal/migration"
	"vmigrate/internal/model"
	"vmigrate/internal/repository"
	"vmigrate/internal/stream"

	"go.uber.org/zap"
)

// Executor runs each migration job in its own goroutine. A job's row, log
// lines, and stream events are written only by the goroutine that owns it;
// nothing a job does can fail another job or the process.
type Executor struct {
	jobs       *repository.JobRepository
	logs       *repository.LogRepository
	providers  *repository.ProviderRepository
	cache      *inventory.Cache
	hub        *stream.Hub
	strategies *migration.Registry

	mu      sync.RWMutex
	running map[uint]RunningJob
}

func New(
	jobs *repository.JobRepository,
	logs *repository.LogRepository,
	providers *repository.ProviderRepository,
	cache *inventory.Cache,
	hub *stream.Hub,
	strategies *migration.Registry,
) *Executor {
	return &Executor{
		jobs:       jobs,
		logs:       logs,
		providers:  providers,
		cache:      cache,
		hub:        hub,
		strategies: strategies,
		running:    make(map[uint]RunningJob),
	}
}

// RunningJob is a point-in-time view of one in-flight job.
type RunningJob struct {
	JobID     uint      `json:"job_id"`
	VMName    string    `json:"vm_name"`
	StartedAt time.Time `json:"started_at"`
}

// Running lists the jobs currently executing.
func (e *Executor) Running() []RunningJob {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]RunningJob, 0, len(e.running))
	for _, snap := range e.running {
		out = append(out, snap)
	}
	return out
}

// Dispatch hands a queued job to its own goroutine and returns immediately.
func (e *Executor) Dispatch(job model.Job) {
	e.mu.Lock()
	e.running[job.ID] = RunningJob{
		JobID:     job.ID,
		VMName:    job.VMName,
		StartedAt: time.Now(),
	}
	e.mu.Unlock()

	go e.run(job)
}

func (e *Executor) run(job model.Job) {
	defer func() {
		e.mu.Lock()
		delete(e.running, job.ID)
		e.mu.Unlock()
	}()

	// A panicking step must take down its own job only.
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("migration job panicked",
				zap.Uint("job", job.ID),
				zap.Any("panic", r))
			e.fail(job.ID, fmt.Sprintf("Failed: internal error: %v", r))
		}
	}()

	ctx := context.Background()

	if err := e.jobs.UpdateStatus(job.ID, model.JobRunning); err != nil {
		logger.Log.Error("failed to mark job running",
			zap.Uint("job", job.ID),
			zap.Error(err))
		return
	}

	logger.Log.Info("migration job started",
		zap.Uint("job", job.ID),
		zap.String("vm", job.VMName),
		zap.Uint("source", job.SourceProviderID),
		zap.Uint("destination", job.DestinationProviderID))

	e.appendLog(job.ID, fmt.Sprintf("Starting migration workflow for VM '%s'.", job.VMName))

	source, err := e.providers.GetByID(job.SourceProviderID)
	if err != nil {
		e.fail(job.ID, fmt.Sprintf("Failed: source provider %d is gone.", job.SourceProviderID))
		return
	}

	destination, err := e.providers.GetByID(job.DestinationProviderID)
	if err != nil {
		e.fail(job.ID, fmt.Sprintf("Failed: destination provider %d is gone.", job.DestinationProviderID))
		return
	}

	strategy, ok := e.strategies.For(source.Kind, destination.Kind)
	if !ok {
		e.fail(job.ID, fmt.Sprintf("Failed: no migration path from %s to %s.", source.Kind, destination.Kind))
		return
	}

	// The cached item may be gone if the cache was re-synced since creation;
	// the strategy only loses display attributes in that case.
	vm, _ := e.cache.Lookup(job.SourceProviderID, job.VMName)

	req := &migration.Request{
		VMName:      job.VMName,
		VM:          vm,
		Source:      source,
		Destination: destination,
		TargetNode:  job.TargetNode,
		SetTargetNode: func(node string) error {
			if err := e.jobs.UpdateTargetNode(job.ID, node); err != nil {
				return err
			}
			e.appendLog(job.ID, fmt.Sprintf("Resolved target node '%s'.", node))
			return nil
		},
	}

	progress := 0
	for _, step := range strategy.Steps(req) {
		e.appendLog(job.ID, step.Name)

		if err := step.Run(ctx); err != nil {
			e.appendLog(job.ID, fmt.Sprintf("Failed: %v", err))
			e.fail(job.ID, "")
			return
		}

		// Progress never decreases and never exceeds 100, even if a plan's
		// weights mis-sum.
		if step.Weight > 0 {
			progress = min(progress+step.Weight, 100)
		}

		// Complete writes the final 100 together with the status flip, so a
		// running row never shows full progress.
		if progress < 100 {
			if err := e.jobs.UpdateProgress(job.ID, progress); err != nil {
				logger.Log.Warn("failed to update progress",
					zap.Uint("job", job.ID),
					zap.Error(err))
			}
		}
		e.hub.Publish(job.ID, stream.Event{Type: stream.EventProgress, Progress: progress})
	}

	// The final line lands before the terminal row, so a reader that observes
	// completed always finds the whole log.
	e.appendLog(job.ID, "Migration workflow completed.")

	if err := e.jobs.Complete(job.ID); err != nil {
		logger.Log.Error("failed to mark job completed",
			zap.Uint("job", job.ID),
			zap.Error(err))
	}

	e.hub.Publish(job.ID, stream.Event{Type: stream.EventProgress, Progress: 100})
	e.hub.Publish(job.ID, stream.Event{Type: stream.EventDone, Message: string(model.JobCompleted)})
	e.hub.Close(job.ID)

	logger.Log.Info("migration job completed",
		zap.Uint("job", job.ID),
		zap.String("vm", job.VMName))
}

// fail transitions the job to its terminal failed state, leaving progress at
// the last reached value. reason may be empty when the failure line was
// already appended.
func (e *Executor) fail(jobID uint, reason string) {
	if reason != "" {
		e.appendLog(jobID, reason)
	}

	if err := e.jobs.UpdateStatus(jobID, model.JobFailed); err != nil {
		logger.Log.Error("failed to mark job failed",
			zap.Uint("job", jobID),
			zap.Error(err))
	}

	e.hub.Publish(jobID, stream.Event{Type: stream.EventDone, Message: string(model.JobFailed)})
	e.hub.Close(jobID)

	logger.Log.Warn("migration job failed",
		zap.Uint("job", jobID))
}

// appendLog persists the next log line and publishes it to the stream, so
// pull readers and live observers see the same sequence.
func (e *Executor) appendLog(jobID uint, message string) {
	line, err := e.logs.Append(jobID, message)
	if err != nil {
		logger.Log.Warn("failed to append job log",
			zap.Uint("job", jobID),
			zap.Error(err))
		return
	}

	e.hub.Publish(jobID, stream.Event{
		Type:    stream.EventLog,
		Seq:     line.Seq,
		Message: line.Message,
	})
}
