package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeOutboxRetentionRepo struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type fakeDLQRetentionRepo struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeDLQRetentionRepo) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func newRetentionJob(t *testing.T, repo *fakeOutboxRetentionRepo, dlq *fakeDLQRetentionRepo) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     cronTestLogger(),
		Repository: repo,
		DLQ:        dlq,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

func TestOutboxRetentionJobDeletesPublishedAndDLQRows(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	dlq := &fakeDLQRetentionRepo{}
	job := newRetentionJob(t, repo, dlq)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.UTC().Add(-outboxRetentionDays * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
	expectedDLQCutoff := now.UTC().Add(-dlqRetentionDays * 24 * time.Hour)
	if !dlq.lastCutoff.Equal(expectedDLQCutoff) {
		t.Fatalf("expected dlq cutoff %s, got %s", expectedDLQCutoff, dlq.lastCutoff)
	}
	if dlq.called != 1 {
		t.Fatalf("expected dlq repo called once, got %d", dlq.called)
	}
}

func TestOutboxRetentionJobRunsDLQPhaseAfterOutboxFailure(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	dlq := &fakeDLQRetentionRepo{}
	job := newRetentionJob(t, repo, dlq)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if dlq.called != 1 {
		t.Fatalf("expected dlq phase to run, got %d calls", dlq.called)
	}
}

func TestOutboxRetentionJobCombinesPhaseErrors(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("outbox boom")}
	dlq := &fakeDLQRetentionRepo{err: errors.New("dlq boom")}
	job := newRetentionJob(t, repo, dlq)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got == "outbox retention: outbox boom" {
		t.Fatalf("expected combined error, got only %q", got)
	}
}
