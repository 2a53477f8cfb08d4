package service

import (
	"context"
	"fmt"
	"slices"

	"carboncast/internal/forecast/models"
	"carboncast/pkg/domain"
	dErrors "carboncast/pkg/domain-errors"
)

type jobEntry struct {
	job  models.RetrainJob
	done chan struct{}
}

// SubmitRetrain queues a retrain of sectors (every sector when empty) and
// returns the pending job. It fails with CodeConflict when the queue is full.
func (s *Service) SubmitRetrain(ctx context.Context, sectors []domain.Sector) (*models.RetrainJob, error) {
	for _, sector := range sectors {
		if !sector.IsValid() {
			_, err := domain.ParseSector(string(sector))
			return nil, err
		}
	}
	entry := &jobEntry{
		job: models.RetrainJob{
			ID:        s.newID(),
			Sectors:   slices.Clone(sectors),
			Status:    models.JobPending,
			CreatedAt: s.now().UTC(),
		},
		done: make(chan struct{}),
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	select {
	case s.queue <- entry:
	default:
		return nil, dErrors.New(dErrors.CodeConflict, "retrain queue is full, try again later")
	}
	s.jobs[entry.job.ID] = entry
	s.jobOrder = append(s.jobOrder, entry.job.ID)
	s.evictFinishedLocked()

	s.logger.InfoContext(ctx, "retrain job queued", "job_id", entry.job.ID, "domains", sectors)
	return copyJob(entry.job), nil
}

// Job returns a snapshot of the job with id.
func (s *Service) Job(_ context.Context, id string) (*models.RetrainJob, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	entry, ok := s.jobs[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("retrain job %s not found", id))
	}
	return copyJob(entry.job), nil
}

// Wait blocks until the job finishes or ctx is done. On ctx expiry it
// returns the job as it currently stands together with ctx's error.
func (s *Service) Wait(ctx context.Context, id string) (*models.RetrainJob, error) {
	s.jobsMu.RLock()
	entry, ok := s.jobs[id]
	s.jobsMu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("retrain job %s not found", id))
	}
	select {
	case <-entry.done:
		return s.Job(ctx, id)
	case <-ctx.Done():
		job, err := s.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		return job, ctx.Err()
	}
}

// RunWorker processes queued retrain jobs one at a time until ctx is
// cancelled.
func (s *Service) RunWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-s.queue:
			s.runJob(ctx, entry)
		}
	}
}

func (s *Service) runJob(ctx context.Context, entry *jobEntry) {
	started := s.now().UTC()
	s.jobsMu.Lock()
	entry.job.Status = models.JobRunning
	entry.job.StartedAt = &started
	sectors := entry.job.Sectors
	id := entry.job.ID
	s.jobsMu.Unlock()

	s.logger.InfoContext(ctx, "retrain job started", "job_id", id, "domains", sectors)
	if len(sectors) == 0 {
		sectors = domain.AllSectors()
	}
	err := s.retrainSectors(ctx, sectors)

	finished := s.now().UTC()
	s.jobsMu.Lock()
	entry.job.FinishedAt = &finished
	if err != nil {
		entry.job.Status = models.JobFailed
		entry.job.Error = err.Error()
	} else {
		entry.job.Status = models.JobSucceeded
	}
	status := entry.job.Status
	close(entry.done)
	s.jobsMu.Unlock()

	if s.metrics != nil {
		s.metrics.IncrementRetrainJob(string(status))
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "retrain job failed", "job_id", id, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "retrain job finished", "job_id", id,
		"duration_ms", finished.Sub(started).Milliseconds())
}

// evictFinishedLocked drops the oldest finished jobs beyond maxRetainedJobs.
func (s *Service) evictFinishedLocked() {
	for len(s.jobOrder) > maxRetainedJobs {
		idx := slices.IndexFunc(s.jobOrder, func(id string) bool {
			return s.jobs[id].job.Status.Done()
		})
		if idx < 0 {
			return
		}
		delete(s.jobs, s.jobOrder[idx])
		s.jobOrder = slices.Delete(s.jobOrder, idx, idx+1)
	}
}

func copyJob(j models.RetrainJob) *models.RetrainJob {
	j.Sectors = slices.Clone(j.Sectors)
	if j.Sectors == nil {
		j.Sectors = []domain.Sector{}
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		j.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		j.FinishedAt = &t
	}
	return &j
}
