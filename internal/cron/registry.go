package cron

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Job is one scheduled task. Name doubles as the lease key and the metrics
// label, so it must be unique within a Registry.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Registry struct {
	order  []string
	byName map[string]Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{byName: make(map[string]Job, len(jobs))}
	for i, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	switch {
	case job == nil:
		return fmt.Errorf("job required")
	case job.Name() == "":
		return fmt.Errorf("job name required")
	}
	name := job.Name()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	r.byName[name] = job
	r.order = append(r.order, name)
	return nil
}

// Jobs returns a fresh slice in registration order; the cron loop runs them
// in that order every tick.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		jobs = append(jobs, r.byName[name])
	}
	return jobs
}

func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byName[name]
	return job, ok
}

// Names is sorted, for help text and error messages.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.byName))
}
