package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsmanager/campaign-gateway/internal/model"
)

func TestCampaignRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	ctx := context.Background()

	campaign := &model.Campaign{Name: "launch", TemplateID: 1, CreatedBy: 7, Status: model.CampaignStatusPending}
	require.NoError(t, repo.Create(ctx, campaign))
	require.NotZero(t, campaign.ID)

	got, err := repo.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "launch", got.Name)
	assert.Equal(t, model.CampaignStatusPending, got.Status)
	assert.Nil(t, got.ScheduledAt)

	_, err = repo.Get(ctx, 9999)
	assert.Error(t, err)
}

func TestCampaignRepository_GetDuePending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := &model.Campaign{Name: "due", TemplateID: 1, CreatedBy: 1, Status: model.CampaignStatusPending, ScheduledAt: &past}
	notYet := &model.Campaign{Name: "later", TemplateID: 1, CreatedBy: 1, Status: model.CampaignStatusPending, ScheduledAt: &future}
	// no scheduled time: an inline start that never finished
	stranded := &model.Campaign{Name: "stranded", TemplateID: 1, CreatedBy: 1, Status: model.CampaignStatusPending}
	running := &model.Campaign{Name: "running", TemplateID: 1, CreatedBy: 1, Status: model.CampaignStatusRunning, ScheduledAt: &past}
	for _, c := range []*model.Campaign{due, notYet, stranded, running} {
		require.NoError(t, repo.Create(ctx, c))
	}

	got, err := repo.GetDuePending(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []int64{due.ID, stranded.ID}, []int64{got[0].ID, got[1].ID})
}

func TestCampaignRepository_Start(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	ctx := context.Background()

	campaign := &model.Campaign{Name: "launch", TemplateID: 1, CreatedBy: 1, Status: model.CampaignStatusPending}
	require.NoError(t, repo.Create(ctx, campaign))

	executedAt := time.Now()
	require.NoError(t, repo.Start(ctx, campaign.ID, 42, executedAt))

	got, err := repo.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusRunning, got.Status)
	assert.Equal(t, 42, got.TotalContacts)
	require.NotNil(t, got.ExecutedAt)
}

func TestCampaignRepository_GetStats(t *testing.T) {
	db := setupTestDB(t)
	campaigns := NewCampaignRepository(db.DB)
	messages := NewMessageRepository(db.DB)
	ctx := context.Background()

	campaign := &model.Campaign{Name: "launch", TemplateID: 1, CreatedBy: 1, Status: model.CampaignStatusRunning, TotalContacts: 3}
	require.NoError(t, campaigns.Create(ctx, campaign))

	msgs := []model.Message{
		{CampaignID: campaign.ID, ContactID: 1, TemplateID: 1},
		{CampaignID: campaign.ID, ContactID: 2, TemplateID: 1},
		{CampaignID: campaign.ID, ContactID: 3, TemplateID: 1},
	}
	require.NoError(t, messages.BulkCreate(ctx, msgs))
	require.NoError(t, messages.SetSent(ctx, msgs[0].ID, "SM1", time.Now()))
	require.NoError(t, messages.Reconcile(ctx, msgs[1].ID, model.MessageStatusRead, time.Now()))
	require.NoError(t, messages.SetFailed(ctx, msgs[2].ID, "boom"))

	stats, err := campaigns.GetStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, campaign.ID, stats[0].ID)
	assert.Equal(t, 3, stats[0].TotalContacts)
	assert.Equal(t, int64(2), stats[0].SentMessages) // sent + read
	assert.Equal(t, int64(1), stats[0].Read)
	assert.Equal(t, int64(1), stats[0].Failed)
}
