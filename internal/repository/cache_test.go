package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/entity"
	"github.com/joseph-ayodele/classdocs/internal/testutil"
)

func TestCachedJobRepository_TerminalSnapshotsOnly(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ctx := context.Background()
	store := NewMemoryJobRepository(testutil.Logger())
	repo := NewCachedJobRepository(store, client, time.Minute, testutil.Logger())

	job := newJob("owner-1", time.Now())
	require.NoError(t, repo.Create(ctx, job))

	_, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, client.Exists(ctx, snapshotKey(job.ID)).Val(), "pending jobs are not cached")

	_, err = repo.MarkProcessing(ctx, job.ID, time.Now())
	require.NoError(t, err)
	done, err := repo.Complete(ctx, job.ID, Completion{
		Artifact: entity.Artifact{Name: "x.pdf", URL: "https://files.test/x.pdf", MIMEType: "application/pdf", ByteSize: 10},
		At:       time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), client.Exists(ctx, snapshotKey(job.ID)).Val())
	assert.Positive(t, client.TTL(ctx, snapshotKey(job.ID)).Val())

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, done.Result, got.Result)
}
