package cron

import (
	"context"
	"testing"
)

type noopJob struct {
	name string
}

func (n *noopJob) Name() string              { return n.name }
func (n *noopJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	first := &noopJob{name: "reconcile"}
	second := &noopJob{name: "cleanup"}

	registry := NewRegistry(first)
	registry.Register(second)
	registry.Register(nil)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != first || jobs[1] != second {
		t.Fatal("jobs returned out of registration order")
	}
}

func TestRegistryJobsReturnsCopy(t *testing.T) {
	registry := NewRegistry(&noopJob{name: "reconcile"})

	jobs := registry.Jobs()
	jobs[0] = nil

	if registry.Jobs()[0] == nil {
		t.Fatal("mutating the returned slice changed the registry")
	}
}
