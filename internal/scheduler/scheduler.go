package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/internal/provider"
	"github.com/whatsmanager/campaign-gateway/internal/queue"
	"github.com/whatsmanager/campaign-gateway/internal/template"
	"github.com/whatsmanager/campaign-gateway/pkg/logger"
	"github.com/whatsmanager/campaign-gateway/pkg/prom"
)

var (
	ErrCampaignNotPending = errors.New("campaign is not in pending state")
	ErrCampaignCancelled  = errors.New("campaign is already cancelled")
	ErrTemplateNotFound   = errors.New("template not found or inactive")
	ErrNoContacts         = errors.New("none of the given contacts exist")
)

// Options wires the scheduler's collaborators and tuning knobs. Everything
// is injected; the scheduler holds no package-level state.
type Options struct {
	Campaigns   CampaignStore
	Messages    MessageStore
	Contacts    ContactStore
	Templates   TemplateStore
	Attachments AttachmentStore
	Provider    Provider
	Queue       *queue.Queue
	Guard       *SendGuard // optional, nil disables the dedup guard

	MaxRetryAttempts   int
	RetryDelay         time.Duration
	DispatchBatchSize  int
	ReconcileBatchSize int
	ReconcileGrace     time.Duration

	CampaignSweepInterval time.Duration
	DispatchInterval      time.Duration
	FailedSweepInterval   time.Duration
	ReconcileInterval     time.Duration
}

// Scheduler drives the whole delivery pipeline: it expands due campaigns
// into messages, feeds the send queue, persists send outcomes, promotes
// retryable failures and reconciles delivery statuses with the provider.
// All four periodic jobs run cooperatively on a single goroutine.
type Scheduler struct {
	opts Options
	hub  *eventHub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Scheduler {
	if opts.MaxRetryAttempts < 1 {
		opts.MaxRetryAttempts = 3
	}
	if opts.DispatchBatchSize < 1 {
		opts.DispatchBatchSize = 10
	}
	if opts.ReconcileBatchSize < 1 {
		opts.ReconcileBatchSize = 50
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 10 * time.Minute
	}
	if opts.ReconcileGrace <= 0 {
		opts.ReconcileGrace = 5 * time.Minute
	}
	if opts.CampaignSweepInterval <= 0 {
		opts.CampaignSweepInterval = 10 * time.Second
	}
	if opts.DispatchInterval <= 0 {
		opts.DispatchInterval = 5 * time.Second
	}
	if opts.FailedSweepInterval <= 0 {
		opts.FailedSweepInterval = 5 * time.Minute
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = time.Hour
	}
	return &Scheduler{
		opts: opts,
		hub:  newEventHub(),
	}
}

// Start launches the timer loop and the result drain. Idempotent Start is
// not supported; call it once.
func (s *Scheduler) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(2)
	go s.run()
	go s.drainResults()
	logger.Info("scheduler started",
		"campaign_sweep", s.opts.CampaignSweepInterval,
		"dispatch", s.opts.DispatchInterval,
		"failed_sweep", s.opts.FailedSweepInterval,
		"reconcile", s.opts.ReconcileInterval)
}

// Stop cancels the timers, stops the queue and waits for the in-flight
// drain to persist its remaining results before returning.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.opts.Queue.Stop()
	s.wg.Wait()
	s.hub.close()
	logger.Info("scheduler stopped")
}

// Schedule validates and stores a campaign. With no scheduled time the
// campaign starts right away; otherwise the sweep picks it up when due.
func (s *Scheduler) Schedule(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tpl, err := s.opts.Templates.Get(ctx, req.TemplateID)
	if err != nil || tpl == nil || !tpl.IsActive {
		return nil, ErrTemplateNotFound
	}

	total, err := s.opts.Contacts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count contacts: %w", err)
	}

	campaign := &model.Campaign{
		Name:          req.Name,
		TemplateID:    req.TemplateID,
		ScheduledAt:   req.ScheduledAt,
		CreatedBy:     req.CreatedBy,
		TotalContacts: int(total),
		Status:        model.CampaignStatusPending,
	}
	if err := s.opts.Campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	logger.Info("campaign scheduled", "campaign_id", campaign.ID, "name", campaign.Name,
		"scheduled_at", campaign.ScheduledAt)

	if campaign.ScheduledAt == nil {
		if err := s.startCampaign(ctx, campaign); err != nil {
			return nil, err
		}
	}

	return campaign, nil
}

// SendImmediate creates a campaign for exactly the given contacts and
// starts it right away. This is the one path where recipients are pinned
// at call time; scheduled campaigns resolve the live contact book when
// they start instead.
func (s *Scheduler) SendImmediate(ctx context.Context, req model.ImmediateSendRequest) (*model.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tpl, err := s.opts.Templates.Get(ctx, req.TemplateID)
	if err != nil || tpl == nil || !tpl.IsActive {
		return nil, ErrTemplateNotFound
	}

	contacts, err := s.opts.Contacts.GetByIDs(ctx, req.ContactIDs)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil, ErrNoContacts
	}
	if len(contacts) < len(req.ContactIDs) {
		logger.Warn("some contact ids do not exist, sending to the rest",
			"requested", len(req.ContactIDs), "found", len(contacts))
	}

	campaign := &model.Campaign{
		Name:          "Envío inmediato - " + time.Now().Format("2006-01-02 15:04"),
		TemplateID:    req.TemplateID,
		CreatedBy:     req.CreatedBy,
		TotalContacts: len(contacts),
		Status:        model.CampaignStatusPending,
	}
	if err := s.opts.Campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	if err := s.startWithContacts(ctx, campaign, contacts); err != nil {
		return nil, err
	}

	logger.Info("immediate send started", "campaign_id", campaign.ID, "contacts", len(contacts))
	return campaign, nil
}

// StartNow starts a pending campaign ahead of its scheduled time.
func (s *Scheduler) StartNow(ctx context.Context, campaignID int64) error {
	campaign, err := s.opts.Campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignStatusPending {
		return ErrCampaignNotPending
	}
	return s.startCampaign(ctx, campaign)
}

// Cancel marks the campaign cancelled and flips every still-pending message
// to cancelled. Messages already handed to the provider keep their status;
// queued-in-memory items are caught by the drain's cancellation check.
func (s *Scheduler) Cancel(ctx context.Context, campaignID int64) error {
	campaign, err := s.opts.Campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status == model.CampaignStatusCancelled {
		return ErrCampaignCancelled
	}

	if err := s.opts.Campaigns.SetStatus(ctx, campaignID, model.CampaignStatusCancelled); err != nil {
		return fmt.Errorf("cancel campaign: %w", err)
	}

	n, err := s.opts.Messages.CancelPending(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("cancel pending messages: %w", err)
	}

	logger.Info("campaign cancelled", "campaign_id", campaignID, "messages_cancelled", n)
	s.hub.publish(Event{Type: EventCampaignCancelled, CampaignID: campaignID})
	return nil
}

// Progress returns the campaign's delivery rollup.
func (s *Scheduler) Progress(ctx context.Context, campaignID int64) (*model.CampaignProgress, error) {
	if _, err := s.opts.Campaigns.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.opts.Messages.Progress(ctx, campaignID)
}

// Subscribe returns a buffered channel of delivery events for one campaign.
// The channel closes when the scheduler stops; slow consumers lose events.
func (s *Scheduler) Subscribe(campaignID int64) <-chan Event {
	return s.hub.subscribe(campaignID)
}

// startCampaign resolves the live contact book and expands the campaign
// against it.
func (s *Scheduler) startCampaign(ctx context.Context, campaign *model.Campaign) error {
	contacts, err := s.opts.Contacts.List(ctx)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	return s.startWithContacts(ctx, campaign, contacts)
}

// startWithContacts creates one pending message per contact and flips the
// campaign to running.
func (s *Scheduler) startWithContacts(ctx context.Context, campaign *model.Campaign, contacts []model.Contact) error {
	messages := make([]model.Message, 0, len(contacts))
	for _, c := range contacts {
		messages = append(messages, model.Message{
			CampaignID: campaign.ID,
			ContactID:  c.ID,
			TemplateID: campaign.TemplateID,
			Status:     model.MessageStatusPending,
		})
	}
	if len(messages) > 0 {
		if err := s.opts.Messages.BulkCreate(ctx, messages); err != nil {
			return fmt.Errorf("create campaign messages: %w", err)
		}
	} else {
		logger.Warn("campaign started with no contacts", "campaign_id", campaign.ID)
	}

	now := time.Now()
	if err := s.opts.Campaigns.Start(ctx, campaign.ID, len(contacts), now); err != nil {
		return fmt.Errorf("start campaign: %w", err)
	}

	campaign.Status = model.CampaignStatusRunning
	campaign.TotalContacts = len(contacts)
	campaign.ExecutedAt = &now

	prom.CampaignStarted()
	s.hub.publish(Event{Type: EventCampaignStarted, CampaignID: campaign.ID})
	logger.Info("campaign started", "campaign_id", campaign.ID, "messages", len(messages))
	return nil
}

// run is the cooperative timer loop. Jobs share one goroutine and fire on
// a coarse tick, so a long job delays the others instead of racing them.
func (s *Scheduler) run() {
	defer s.wg.Done()

	type job struct {
		name     string
		interval time.Duration
		next     time.Time
		fire     func(context.Context)
	}

	now := time.Now()
	jobs := []*job{
		{name: "campaign_sweep", interval: s.opts.CampaignSweepInterval, next: now, fire: s.sweepCampaigns},
		{name: "dispatch", interval: s.opts.DispatchInterval, next: now, fire: s.dispatch},
		{name: "failed_sweep", interval: s.opts.FailedSweepInterval, next: now.Add(s.opts.FailedSweepInterval), fire: s.sweepFailed},
		{name: "reconcile", interval: s.opts.ReconcileInterval, next: now.Add(s.opts.ReconcileInterval), fire: s.reconcile},
	}

	// coarse tick, never finer than the most frequent job needs
	tick := time.Second
	for _, j := range jobs {
		if j.interval < tick {
			tick = j.interval
		}
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case tick := <-ticker.C:
			for _, j := range jobs {
				if tick.Before(j.next) {
					continue
				}
				j.fire(s.ctx)
				j.next = time.Now().Add(j.interval)
				if s.ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// sweepCampaigns starts every pending campaign whose scheduled time has
// arrived.
func (s *Scheduler) sweepCampaigns(ctx context.Context) {
	due, err := s.opts.Campaigns.GetDuePending(ctx, time.Now())
	if err != nil {
		logger.Error("campaign sweep failed", "error", err)
		return
	}
	for i := range due {
		c := &due[i]
		// unscheduled campaigns start inline on creation; give that path a
		// minute before treating the row as stranded, or the sweep could
		// expand it a second time mid-creation
		if c.ScheduledAt == nil && time.Since(c.CreatedAt) < time.Minute {
			continue
		}
		if err := s.startCampaign(ctx, c); err != nil {
			logger.Error("failed to start due campaign", "campaign_id", c.ID, "error", err)
		}
	}
}

// dispatch loads a batch of pending messages, renders them and hands the
// resulting items to the queue, then kicks a drain. The drain runs on its
// own goroutine; the single-flight guard makes overlapping kicks harmless.
func (s *Scheduler) dispatch(ctx context.Context) {
	rows, err := s.opts.Messages.GetPending(ctx, s.opts.DispatchBatchSize, s.opts.MaxRetryAttempts)
	if err != nil {
		logger.Error("dispatch query failed", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	var queuedIDs []int64
	var items []queue.Item

	for _, row := range rows {
		if s.opts.Guard.AlreadySent(row.ID) {
			// redis remembers a successful send the database lost track
			// of, most likely a crash between send and persist
			logger.Warn("send already recorded for message, repairing status",
				"message_id", row.ID)
			if err := s.opts.Messages.SetSent(ctx, row.ID, "", time.Now()); err != nil {
				logger.Error("failed to repair message status", "message_id", row.ID, "error", err)
			}
			continue
		}

		built, err := s.buildItems(ctx, row)
		if err != nil {
			logger.Warn("message failed before dispatch", "message_id", row.ID, "error", err)
			if ferr := s.opts.Messages.SetFailed(ctx, row.ID, err.Error()); ferr != nil {
				logger.Error("failed to persist dispatch failure", "message_id", row.ID, "error", ferr)
			}
			prom.MessageFailed("")
			s.hub.publish(Event{Type: EventMessageFailed, CampaignID: row.CampaignID, MessageID: row.ID, Error: err.Error()})
			continue
		}

		queuedIDs = append(queuedIDs, row.ID)
		items = append(items, built...)
	}

	if len(items) == 0 {
		return
	}
	if err := s.opts.Messages.MarkQueued(ctx, queuedIDs); err != nil {
		logger.Error("failed to mark messages queued", "error", err)
		return
	}
	s.opts.Queue.Add(items...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.opts.Queue.Process(s.ctx)
	}()
}

// buildItems turns one pending row into queue items: the rendered body as
// the primary item, plus one follow-up item per extra attachment.
func (s *Scheduler) buildItems(ctx context.Context, row model.PendingMessage) ([]queue.Item, error) {
	phone := s.opts.Provider.ValidatePhone(row.PhoneNumber)
	if !phone.Valid {
		return nil, fmt.Errorf("invalid phone number %q: %s", row.PhoneNumber, phone.Error)
	}

	data := map[string]string{
		"nombre":   row.ContactName,
		"email":    row.Email,
		"empresa":  row.Company,
		"telefono": row.PhoneNumber,
	}
	if row.ExtraData != "" {
		var extra map[string]any
		if err := json.Unmarshal([]byte(row.ExtraData), &extra); err != nil {
			logger.Warn("contact extra_data is not valid JSON, ignoring",
				"contact_id", row.ContactID, "error", err)
		} else {
			for k, v := range extra {
				data[k] = fmt.Sprint(v)
			}
		}
	}

	body := template.Render(row.TemplateContent, data)

	var urls []string
	attachments, err := s.opts.Attachments.ForTemplate(ctx, row.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	for _, att := range attachments {
		if att.PublicURL == "" {
			logger.Warn("attachment has no public URL, skipping",
				"attachment_id", att.ID, "file", att.FileName)
			continue
		}
		if v := provider.ValidateMediaURL(att.PublicURL); !v.Valid {
			logger.Warn("attachment URL rejected, skipping",
				"attachment_id", att.ID, "url", att.PublicURL, "error", v.Error)
			continue
		}
		urls = append(urls, att.PublicURL)
	}

	base := queue.Item{
		MessageID:  row.ID,
		CampaignID: row.CampaignID,
		To:         phone.Formatted,
	}

	if len(urls) <= 1 {
		item := base
		item.Body = body
		item.MediaURLs = urls
		item.Primary = true
		item.FileIndex = 1
		item.FileCount = 1
		return []queue.Item{item}, nil
	}

	// one item per attachment: the first carries the rendered body, the
	// rest a short counter caption
	items := make([]queue.Item, 0, len(urls))
	for i, u := range urls {
		item := base
		item.MediaURLs = []string{u}
		item.FileIndex = i + 1
		item.FileCount = len(urls)
		if i == 0 {
			item.Body = body
			item.Primary = true
		} else {
			item.Body = fmt.Sprintf("📎 Archivo %d de %d", i+1, len(urls))
		}
		items = append(items, item)
	}
	return items, nil
}

// sweepFailed gives failed messages with retry budget left another shot
// once the retry delay has passed.
func (s *Scheduler) sweepFailed(ctx context.Context) {
	n, err := s.opts.Messages.PromoteFailed(ctx, s.opts.MaxRetryAttempts, time.Now().Add(-s.opts.RetryDelay))
	if err != nil {
		logger.Error("failed-message sweep failed", "error", err)
		return
	}
	if n > 0 {
		prom.MessagesPromoted(float64(n))
		logger.Info("promoted failed messages for retry", "count", n)
	}
}

// reconcile asks the provider for the current status of messages that were
// sent a while ago but never confirmed, and folds the answers back in.
func (s *Scheduler) reconcile(ctx context.Context) {
	cutoff := time.Now().Add(-s.opts.ReconcileGrace)
	rows, err := s.opts.Messages.ListAwaitingReconcile(ctx, cutoff, s.opts.ReconcileBatchSize)
	if err != nil {
		logger.Error("reconcile query failed", "error", err)
		return
	}

	for _, msg := range rows {
		providerStatus, ok := s.opts.Provider.GetStatus(ctx, msg.ProviderSID)
		if !ok {
			continue
		}
		mapped := mapProviderStatus(providerStatus)
		if mapped == "" || mapped == msg.Status {
			continue
		}
		if err := s.opts.Messages.Reconcile(ctx, msg.ID, mapped, time.Now()); err != nil {
			logger.Error("failed to persist reconciled status", "message_id", msg.ID, "error", err)
			continue
		}
		if mapped == model.MessageStatusFailed {
			// the provider gave up after accepting the message, let the
			// retry sweep take it again
			s.opts.Guard.Clear(msg.ID)
		}
		prom.StatusReconciled(string(mapped))
		logger.Info("message status reconciled", "message_id", msg.ID,
			"from", msg.Status, "to", mapped)
	}
}

// mapProviderStatus translates the provider's delivery vocabulary into
// ours. An empty result means no actionable news: only rows already
// marked sent are polled, so `sent`, `queued` and `accepted` answers
// cannot move anything.
func mapProviderStatus(status string) model.MessageStatus {
	switch status {
	case "delivered":
		return model.MessageStatusDelivered
	case "read":
		return model.MessageStatusRead
	case "failed", "undelivered":
		return model.MessageStatusFailed
	}
	return ""
}

// drainResults persists queue outcomes. It runs until the queue's result
// channel closes, which Stop arranges, so late results from an in-flight
// drain are never lost. Persistence uses a fresh context because s.ctx is
// already cancelled during shutdown.
func (s *Scheduler) drainResults() {
	defer s.wg.Done()
	for res := range s.opts.Queue.Results() {
		s.handleResult(res)
	}
}

func (s *Scheduler) handleResult(res queue.Result) {
	ctx := context.Background()
	item := res.Item

	if res.Requeued {
		logger.Debug("send attempt failed, item requeued",
			"message_id", item.MessageID, "attempt", item.Attempts, "error", res.Send.Error)
		return
	}

	if !item.Primary {
		if !res.Send.Success {
			logger.Warn("attachment send failed",
				"message_id", item.MessageID, "file_index", item.FileIndex, "error", res.Send.Error)
		}
		return
	}

	// cancellation guard: a cancel that landed while the item sat in the
	// queue wins over the send outcome
	status, err := s.opts.Messages.GetStatus(ctx, item.MessageID)
	if err == nil && status == model.MessageStatusCancelled {
		logger.Info("message was cancelled mid-flight, discarding result", "message_id", item.MessageID)
		return
	}

	if res.Send.Success {
		if !s.opts.Guard.MarkSent(item.MessageID) {
			logger.Warn("duplicate send detected by guard", "message_id", item.MessageID)
		}
		if err := s.opts.Messages.SetSent(ctx, item.MessageID, res.Send.SID, time.Now()); err != nil {
			logger.Error("failed to persist sent status", "message_id", item.MessageID, "error", err)
			return
		}
		prom.MessageSent(res.Duration.Seconds())
		s.hub.publish(Event{Type: EventMessageSent, CampaignID: item.CampaignID, MessageID: item.MessageID})
		return
	}

	if err := s.opts.Messages.SetFailed(ctx, item.MessageID, res.Send.Error); err != nil {
		logger.Error("failed to persist failed status", "message_id", item.MessageID, "error", err)
		return
	}
	prom.MessageFailed(res.Send.ErrorCode)
	s.hub.publish(Event{Type: EventMessageFailed, CampaignID: item.CampaignID, MessageID: item.MessageID, Error: res.Send.Error})
}
