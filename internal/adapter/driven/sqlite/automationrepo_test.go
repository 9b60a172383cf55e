package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

func TestAutomationRepo_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAutomationRepo(db)
	ctx := context.Background()

	a := model.Automation{
		ID:          "auto-1",
		Name:        "Weekly metrics",
		TriggerType: model.TriggerManual,
		Conditions:  json.RawMessage(`{"threshold":5}`),
		Actions: []model.AutomationAction{
			{Type: model.TaskFetchMetrics, Platform: "gh", Priority: model.PriorityHigh},
			{Type: model.TaskSendDM, Platform: "of-1", Params: map[string]string{"content": "thanks"}},
		},
		IsActive:  true,
		CreatedAt: baseTime,
	}
	require.NoError(t, repo.Save(ctx, a))

	got, err := repo.Get(ctx, "auto-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Weekly metrics", got.Name)
	assert.Equal(t, model.TriggerManual, got.TriggerType)
	assert.JSONEq(t, `{"threshold":5}`, string(got.Conditions))
	assert.Equal(t, a.Actions, got.Actions)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastTriggeredAt)
}

func TestAutomationRepo_SaveReplaces(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAutomationRepo(db)
	ctx := context.Background()

	a := model.Automation{ID: "auto-1", TriggerType: model.TriggerManual, IsActive: true, CreatedAt: baseTime}
	require.NoError(t, repo.Save(ctx, a))

	a.IsActive = false
	require.NoError(t, repo.Save(ctx, a))

	got, err := repo.Get(ctx, "auto-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)
	assert.Equal(t, "{}", string(got.Conditions))
}

func TestAutomationRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAutomationRepo(db)

	got, err := repo.Get(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAutomationRepo_MarkTriggered(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAutomationRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.Automation{ID: "auto-1", TriggerType: model.TriggerManual, IsActive: true, CreatedAt: baseTime}))

	at := baseTime.Add(time.Hour)
	require.NoError(t, repo.MarkTriggered(ctx, "auto-1", at))

	got, err := repo.Get(ctx, "auto-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastTriggeredAt)
	assert.True(t, at.Equal(*got.LastTriggeredAt))

	assert.ErrorIs(t, repo.MarkTriggered(ctx, "missing", at), model.ErrNotFound)
}
