package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubOutboxRetentionRepo struct {
	cutoff  time.Time
	deleted int64
	err     error
	calls   int
}

func (s *stubOutboxRetentionRepo) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	s.calls++
	s.cutoff = cutoff
	return s.deleted, s.err
}

func TestOutboxRetentionJobUsesRetentionWindow(t *testing.T) {
	repo := &stubOutboxRetentionRepo{deleted: 12}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
		Retention:  7,
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}

	before := time.Now().UTC()
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one delete call, got %d", repo.calls)
	}
	want := before.Add(-7 * 24 * time.Hour)
	if repo.cutoff.Before(want.Add(-time.Minute)) || repo.cutoff.After(want.Add(time.Minute)) {
		t.Fatalf("cutoff %s not near expected %s", repo.cutoff, want)
	}
}

func TestOutboxRetentionJobDefaultsRetention(t *testing.T) {
	repo := &stubOutboxRetentionRepo{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := time.Now().UTC().Add(-time.Duration(outboxRetentionDays) * 24 * time.Hour)
	if repo.cutoff.Before(want.Add(-time.Minute)) || repo.cutoff.After(want.Add(time.Minute)) {
		t.Fatalf("cutoff %s not near default window %s", repo.cutoff, want)
	}
}

func TestOutboxRetentionJobPropagatesErrors(t *testing.T) {
	repo := &stubOutboxRetentionRepo{err: errors.New("database unavailable")}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected delete failure to surface")
	}
}
