package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of scheduled work. Its name doubles as the lock key suffix.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry is the ordered job list a worker cycles through.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry rejects unnamed jobs and duplicate names, since two jobs sharing a name would
// share one lock.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		if err := r.add(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(job Job) error {
	if job == nil {
		return fmt.Errorf("cron job is nil")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the jobs in registration order.
func (r *Registry) Jobs() []Job {
	if r == nil {
		return nil
	}
	return append([]Job(nil), r.jobs...)
}

// Names lists job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Jobs()))
	for _, job := range r.Jobs() {
		names = append(names, job.Name())
	}
	return names
}
