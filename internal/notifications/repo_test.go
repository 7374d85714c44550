package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
)

func TestDeleteReadBefore(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	old := time.Now().UTC().Add(-120 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)

	oldRead := seedNotification(t, db, userID, old, true)
	oldUnread := seedNotification(t, db, userID, old, false)
	recentRead := seedNotification(t, db, userID, recent, true)

	cutoff := time.Now().UTC().Add(-90 * 24 * time.Hour)
	deleted, err := repo.DeleteReadBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Find(&remaining).Error)
	require.Len(t, remaining, 2)
	ids := []uuid.UUID{remaining[0].ID, remaining[1].ID}
	assert.NotContains(t, ids, oldRead.ID)
	assert.Contains(t, ids, oldUnread.ID)
	assert.Contains(t, ids, recentRead.ID)
}
