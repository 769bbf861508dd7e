package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsmanager/campaign-gateway/internal/model"
)

type messageFixture struct {
	db       *testDB
	messages *MessageRepository
	campaign model.Campaign
	contacts []model.Contact
	template model.Template
}

func setupMessageFixture(t *testing.T, campaignStatus model.CampaignStatus) *messageFixture {
	t.Helper()
	db := setupTestDB(t)

	f := &messageFixture{
		db:       db,
		messages: NewMessageRepository(db.DB),
		template: model.Template{Name: "welcome", Content: "Hola {nombre}", IsActive: true},
		contacts: []model.Contact{
			{PhoneNumber: "11111111", Name: "Ana", Email: "ana@acme.gt", Company: "Acme", ExtraData: `{"plan":"pro"}`},
			{PhoneNumber: "22222222", Name: "Beto"},
		},
	}
	require.NoError(t, db.rawDB.Create(&f.template).Error)
	require.NoError(t, db.rawDB.Create(&f.contacts).Error)

	f.campaign = model.Campaign{Name: "launch", TemplateID: f.template.ID, CreatedBy: 1, Status: campaignStatus}
	require.NoError(t, db.rawDB.Create(&f.campaign).Error)
	return f
}

func (f *messageFixture) createMessages(t *testing.T, n int) []model.Message {
	t.Helper()
	messages := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		messages = append(messages, model.Message{
			CampaignID: f.campaign.ID,
			ContactID:  f.contacts[i%len(f.contacts)].ID,
			TemplateID: f.template.ID,
			Status:     model.MessageStatusPending,
		})
	}
	require.NoError(t, f.messages.BulkCreate(context.Background(), messages))
	return messages
}

func TestMessageRepository_GetPending(t *testing.T) {
	t.Run("joins contact and template columns", func(t *testing.T) {
		f := setupMessageFixture(t, model.CampaignStatusRunning)
		f.createMessages(t, 2)

		rows, err := f.messages.GetPending(context.Background(), 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "11111111", rows[0].PhoneNumber)
		assert.Equal(t, "Ana", rows[0].ContactName)
		assert.Equal(t, "Acme", rows[0].Company)
		assert.Equal(t, `{"plan":"pro"}`, rows[0].ExtraData)
		assert.Equal(t, "Hola {nombre}", rows[0].TemplateContent)
	})

	t.Run("honors the batch limit and ordering", func(t *testing.T) {
		f := setupMessageFixture(t, model.CampaignStatusRunning)
		created := f.createMessages(t, 5)

		rows, err := f.messages.GetPending(context.Background(), 3, 3)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, created[0].ID, rows[0].ID)
		assert.Equal(t, created[2].ID, rows[2].ID)
	})

	t.Run("skips messages with spent retry budget", func(t *testing.T) {
		f := setupMessageFixture(t, model.CampaignStatusRunning)
		msgs := f.createMessages(t, 2)
		require.NoError(t, f.db.rawDB.Model(&model.Message{}).
			Where("id = ?", msgs[0].ID).Update("retry_count", 3).Error)

		rows, err := f.messages.GetPending(context.Background(), 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, msgs[1].ID, rows[0].ID)
	})

	t.Run("skips campaigns that are not running", func(t *testing.T) {
		f := setupMessageFixture(t, model.CampaignStatusPending)
		f.createMessages(t, 2)

		rows, err := f.messages.GetPending(context.Background(), 10, 3)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestMessageRepository_StatusTransitions(t *testing.T) {
	f := setupMessageFixture(t, model.CampaignStatusRunning)
	msgs := f.createMessages(t, 3)
	ctx := context.Background()

	t.Run("mark queued", func(t *testing.T) {
		require.NoError(t, f.messages.MarkQueued(ctx, []int64{msgs[0].ID, msgs[1].ID}))
		status, err := f.messages.GetStatus(ctx, msgs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.MessageStatusQueued, status)
	})

	t.Run("set sent stamps sid and time", func(t *testing.T) {
		now := time.Now()
		require.NoError(t, f.messages.SetSent(ctx, msgs[0].ID, "SM100", now))

		var got model.Message
		require.NoError(t, f.db.rawDB.First(&got, msgs[0].ID).Error)
		assert.Equal(t, model.MessageStatusSent, got.Status)
		assert.Equal(t, "SM100", got.ProviderSID)
		require.NotNil(t, got.SentAt)
	})

	t.Run("set failed spends a retry unit", func(t *testing.T) {
		require.NoError(t, f.messages.SetFailed(ctx, msgs[1].ID, "boom"))
		require.NoError(t, f.messages.SetFailed(ctx, msgs[1].ID, "boom again"))

		var got model.Message
		require.NoError(t, f.db.rawDB.First(&got, msgs[1].ID).Error)
		assert.Equal(t, model.MessageStatusFailed, got.Status)
		assert.Equal(t, "boom again", got.ErrorMessage)
		assert.Equal(t, 2, got.RetryCount)
	})

	t.Run("get status of unknown message", func(t *testing.T) {
		_, err := f.messages.GetStatus(ctx, 9999)
		assert.Error(t, err)
	})
}

func TestMessageRepository_PromoteFailed(t *testing.T) {
	f := setupMessageFixture(t, model.CampaignStatusRunning)
	msgs := f.createMessages(t, 3)
	ctx := context.Background()

	require.NoError(t, f.messages.SetFailed(ctx, msgs[0].ID, "transient"))
	require.NoError(t, f.messages.SetFailed(ctx, msgs[1].ID, "permanent"))
	require.NoError(t, f.db.rawDB.Model(&model.Message{}).
		Where("id = ?", msgs[1].ID).Update("retry_count", 3).Error)

	// both failures are fresh, nothing is old enough yet
	n, err := f.messages.PromoteFailed(ctx, 3, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	// with a future cutoff only the message with budget left is promoted
	n, err = f.messages.PromoteFailed(ctx, 3, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// the promoted row is pending again with the error wiped
	var promoted model.Message
	require.NoError(t, f.db.rawDB.First(&promoted, msgs[0].ID).Error)
	assert.Equal(t, model.MessageStatusPending, promoted.Status)
	assert.Empty(t, promoted.ErrorMessage)

	var exhausted model.Message
	require.NoError(t, f.db.rawDB.First(&exhausted, msgs[1].ID).Error)
	assert.Equal(t, model.MessageStatusFailed, exhausted.Status)
	assert.Equal(t, "permanent", exhausted.ErrorMessage)
}

func TestMessageRepository_ListAwaitingReconcile(t *testing.T) {
	f := setupMessageFixture(t, model.CampaignStatusRunning)
	msgs := f.createMessages(t, 4)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	require.NoError(t, f.messages.SetSent(ctx, msgs[0].ID, "SM1", old))
	require.NoError(t, f.messages.SetSent(ctx, msgs[1].ID, "SM2", time.Now()))
	require.NoError(t, f.messages.SetSent(ctx, msgs[2].ID, "", old)) // no sid, nothing to ask about

	rows, err := f.messages.ListAwaitingReconcile(ctx, time.Now().Add(-5*time.Minute), 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, msgs[0].ID, rows[0].ID)
}

func TestMessageRepository_Reconcile(t *testing.T) {
	f := setupMessageFixture(t, model.CampaignStatusRunning)
	msgs := f.createMessages(t, 2)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, f.messages.Reconcile(ctx, msgs[0].ID, model.MessageStatusDelivered, now))
	require.NoError(t, f.messages.Reconcile(ctx, msgs[1].ID, model.MessageStatusRead, now))

	var got model.Message
	require.NoError(t, f.db.rawDB.First(&got, msgs[0].ID).Error)
	assert.Equal(t, model.MessageStatusDelivered, got.Status)
	assert.NotNil(t, got.DeliveredAt)

	got = model.Message{}
	require.NoError(t, f.db.rawDB.First(&got, msgs[1].ID).Error)
	assert.Equal(t, model.MessageStatusRead, got.Status)
	assert.NotNil(t, got.ReadAt)
}

func TestMessageRepository_CancelPending(t *testing.T) {
	f := setupMessageFixture(t, model.CampaignStatusRunning)
	msgs := f.createMessages(t, 3)
	ctx := context.Background()

	require.NoError(t, f.messages.SetSent(ctx, msgs[0].ID, "SM1", time.Now()))
	require.NoError(t, f.messages.MarkQueued(ctx, []int64{msgs[1].ID}))

	n, err := f.messages.CancelPending(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// the already sent message keeps its status
	status, err := f.messages.GetStatus(ctx, msgs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusSent, status)
}

func TestMessageRepository_Progress(t *testing.T) {
	f := setupMessageFixture(t, model.CampaignStatusRunning)
	msgs := f.createMessages(t, 4)
	ctx := context.Background()

	require.NoError(t, f.messages.SetSent(ctx, msgs[0].ID, "SM1", time.Now()))
	require.NoError(t, f.messages.Reconcile(ctx, msgs[1].ID, model.MessageStatusDelivered, time.Now()))
	require.NoError(t, f.messages.SetFailed(ctx, msgs[2].ID, "boom"))

	p, err := f.messages.Progress(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.Total)
	assert.Equal(t, int64(1), p.Pending)
	assert.Equal(t, int64(1), p.Sent)
	assert.Equal(t, int64(1), p.Delivered)
	assert.Equal(t, int64(1), p.Failed)
	assert.InDelta(t, 75.0, p.Percent, 0.001)
}
