package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"vmigrate/internal/executor"
	"vmigrate/internal/inventory"
	"vmigrate/internal/logger"
	"vmigrate/internal/model"
	"vmigrate/internal/repository"

	"go.uber.org/zap"
)

// ErrInvalidRequest rejects a batch with no VM names before any side effect.
var ErrInvalidRequest = errors.New("batch requires at least one vm name")

// UnknownVMError rejects a whole batch when any requested VM is absent from
// the source provider's cached inventory. No jobs are created.
type UnknownVMError struct {
	Names []string
}

func (e *UnknownVMError) Error() string {
	return fmt.Sprintf("unknown vms: %s", strings.Join(e.Names, ", "))
}

// Scheduler validates migration requests and turns them into queued jobs.
// Validation is atomic: either every requested VM becomes a job, or none do.
type Scheduler struct {
	jobs      *repository.JobRepository
	providers *repository.ProviderRepository
	cache     *inventory.Cache
	exec      *executor.Executor
}

func New(
	jobs *repository.JobRepository,
	providers *repository.ProviderRepository,
	cache *inventory.Cache,
	exec *executor.Executor,
) *Scheduler {
	return &Scheduler{
		jobs:      jobs,
		providers: providers,
		cache:     cache,
		exec:      exec,
	}
}

// CreateBatch creates one queued job per requested VM and dispatches each to
// the executor. It returns once the rows are durably recorded; execution is
// fire-and-forget.
func (s *Scheduler) CreateBatch(sourceID, destinationID uint, vmNames []string, targetNode string) ([]model.Job, error) {
	names := dedupe(vmNames)
	if len(names) == 0 {
		return nil, ErrInvalidRequest
	}

	if _, err := s.providers.GetByID(sourceID); err != nil {
		return nil, fmt.Errorf("source provider %d: %w", sourceID, err)
	}
	if _, err := s.providers.GetByID(destinationID); err != nil {
		return nil, fmt.Errorf("destination provider %d: %w", destinationID, err)
	}

	known := make(map[string]bool)
	for _, item := range s.cache.List(sourceID) {
		known[item.Name] = true
	}

	var unknown []string
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, &UnknownVMError{Names: unknown}
	}

	jobs := make([]model.Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, model.Job{
			VMName:                name,
			SourceProviderID:      sourceID,
			DestinationProviderID: destinationID,
			TargetNode:            targetNode,
			Status:                model.JobQueued,
		})
	}

	jobs, err := s.jobs.CreateBatch(jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs: %w", err)
	}

	for _, job := range jobs {
		s.exec.Dispatch(job)
	}

	logger.Log.Info("batch created",
		zap.Int("jobs", len(jobs)),
		zap.Uint("source", sourceID),
		zap.Uint("destination", destinationID))

	return jobs, nil
}

func (s *Scheduler) GetJob(id uint) (model.Job, error) {
	return s.jobs.GetByID(id)
}

func (s *Scheduler) ListJobs() ([]model.Job, error) {
	return s.jobs.GetAll()
}

// dedupe preserves first-seen order and drops empty names.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
