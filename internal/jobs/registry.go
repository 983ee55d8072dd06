package jobs

import (
	"os"
	"sync"

	"github.com/calwin/live-speech-translator/pkg/log"
)

// Registry is the process-lifetime mapping from job id to batch-job state.
// It correlates the status-streaming channel with the job created at upload
// time. Jobs are inserted on create and removed exactly once after their
// status channel finishes.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

func (r *Registry) Put(job *Job) {
	if job == nil || job.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// Get returns a snapshot of the job so callers never share the registry's
// mutable copy.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

func (r *Registry) SetState(id string, state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.State = state
	}
}

// Remove deregisters the job. Removing an unknown id is a no-op, which makes
// cleanup idempotent.
func (r *Registry) Remove(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	delete(r.jobs, id)
	return job, true
}

func (r *Registry) List() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		snapshot := *job
		ret = append(ret, &snapshot)
	}
	return ret
}

// Cleanup removes the job's working directory and deregisters it. Safe to
// call more than once and from error paths; a missing directory is not an
// error.
func (r *Registry) Cleanup(id string) {
	job, ok := r.Remove(id)
	if !ok {
		return
	}
	if job.WorkDir == "" {
		return
	}
	if err := os.RemoveAll(job.WorkDir); err != nil {
		log.Error("Failed to remove working directory for job %s: %v", id, err)
	}
}
