package cron

import "testing"

func TestRegistryPreservesOrderAndSkipsNil(t *testing.T) {
	first := &recordingJob{name: "first"}
	second := &recordingJob{name: "second"}

	registry := NewRegistry(first, nil)
	registry.Register(second)
	registry.Register(nil)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Name() != "first" || jobs[1].Name() != "second" {
		t.Fatalf("unexpected job order: %s, %s", jobs[0].Name(), jobs[1].Name())
	}
}

func TestRegistryJobsReturnsCopy(t *testing.T) {
	registry := NewRegistry(&recordingJob{name: "only"})
	jobs := registry.Jobs()
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("mutating the returned slice must not affect the registry")
	}
}
