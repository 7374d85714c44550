package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiohubhq/studiohub-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "cron-test",
		Output:      io.Discard,
	})
}

type fakeExpirer struct {
	batchSizes []int
	err        error
}

func (f *fakeExpirer) ExpirePastDue(_ context.Context, batchSize int) (int, error) {
	f.batchSizes = append(f.batchSizes, batchSize)
	return 3, f.err
}

func TestOfferExpiryJob(t *testing.T) {
	expirer := &fakeExpirer{}
	job, err := NewOfferExpiryJob(OfferExpiryJobParams{Orders: expirer, BatchSize: 25})
	require.NoError(t, err)
	assert.Equal(t, "offer-expiry", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, expirer.batchSizes, 1)
	assert.Equal(t, 25, expirer.batchSizes[0])

	expirer.err = errors.New("db down")
	err = job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, expirer.err)
}

func TestOfferExpiryJobDefaultsBatchSize(t *testing.T) {
	expirer := &fakeExpirer{}
	job, err := NewOfferExpiryJob(OfferExpiryJobParams{Orders: expirer})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, expirer.batchSizes, 1)
	assert.Equal(t, offerExpiryBatchSize, expirer.batchSizes[0])

	_, err = NewOfferExpiryJob(OfferExpiryJobParams{})
	require.Error(t, err)
}

type fakeNotificationCleaner struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeNotificationCleaner) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 2, f.err
}

func TestNotificationCleanupJobCutoff(t *testing.T) {
	cleaner := &fakeNotificationCleaner{}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     testLogger(),
		Repository: cleaner,
		Retention:  48 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "notification-cleanup", job.Name())

	before := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, job.Run(context.Background()))
	after := time.Now().UTC().Add(-48 * time.Hour)

	require.Len(t, cleaner.cutoffs, 1)
	cutoff := cleaner.cutoffs[0]
	assert.False(t, cutoff.Before(before))
	assert.False(t, cutoff.After(after))

	cleaner.err = errors.New("db down")
	require.Error(t, job.Run(context.Background()))
}

type fakeOutboxPruner struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeOutboxPruner) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 5, f.err
}

func TestOutboxRetentionJobCutoff(t *testing.T) {
	pruner := &fakeOutboxPruner{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: pruner,
		Retention:  720 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "outbox-retention", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, pruner.cutoffs, 1)

	pruner.err = errors.New("db down")
	require.Error(t, job.Run(context.Background()))
}

func TestRegistrySkipsNilJobs(t *testing.T) {
	expirer := &fakeExpirer{}
	job, err := NewOfferExpiryJob(OfferExpiryJobParams{Orders: expirer})
	require.NoError(t, err)

	registry := NewRegistry(nil, job)
	registry.Register(nil)
	assert.Len(t, registry.Jobs(), 1)
}

type fakeLock struct {
	acquired bool
	releases int
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	return l.acquired, nil
}

func (l *fakeLock) Release(context.Context) error {
	l.releases++
	return nil
}

type recordingJob struct {
	name string
	runs int
	err  error
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &recordingJob{name: "noop"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: false},
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunCycleRunsAllJobsAndAggregatesFailures(t *testing.T) {
	failing := &recordingJob{name: "failing", err: errors.New("boom")}
	healthy := &recordingJob{name: "healthy"}
	lock := &fakeLock{acquired: true}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(failing, healthy),
		Lock:     lock,
	})
	require.NoError(t, err)

	err = service.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	// The failure must not stop later jobs, and the lock is always released.
	assert.Equal(t, 1, healthy.runs)
	assert.Equal(t, 1, lock.releases)
}
