package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/florence-gateway/backend/internal/events"
	"github.com/florence-gateway/backend/internal/models"
	"github.com/florence-gateway/backend/internal/payproof"
	"github.com/florence-gateway/backend/internal/repositories"
	"go.uber.org/zap"
)

type fakeClient struct {
	mu      sync.Mutex
	sent    []string
	files   map[string][]byte
	failAll bool
}

func (c *fakeClient) Send(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return errors.New("send failed")
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeClient) FetchBytes(_ context.Context, ref string) ([]byte, string, error) {
	data, ok := c.files[ref]
	if !ok {
		return nil, "", errors.New("file not found")
	}
	return data, "application/octet-stream", nil
}

func (c *fakeClient) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

type fakeModel struct {
	reply     string
	err       error
	calls     int
	turns     []models.Turn
	items     []ModelAttachment
	lastQuery string
}

func (m *fakeModel) Complete(_ context.Context, turns []models.Turn) (string, error) {
	m.calls++
	m.turns = turns
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *fakeModel) CompleteWithAttachments(_ context.Context, items []ModelAttachment, prompt string) (string, error) {
	m.calls++
	m.items = items
	m.lastQuery = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

type harness struct {
	users   *repositories.MemoryUserStore
	reqs    *repositories.MemoryRequestStore
	txs     *repositories.MemoryTransactionLog
	history *repositories.MemoryConversationStore
	bus     *events.LocalBus
	ledger  *LedgerService
	tracker *RequestTracker
	pay     *PaymentService
	model   *fakeModel
	client  *fakeClient
	gw      *Gateway
	events  []events.Event
}

func newHarness() *harness {
	h := &harness{
		users:   repositories.NewMemoryUserStore(),
		reqs:    repositories.NewMemoryRequestStore(),
		txs:     repositories.NewMemoryTransactionLog(),
		history: repositories.NewMemoryConversationStore(20),
		bus:     events.NewLocalBus(),
		model:   &fakeModel{reply: "model says hi"},
		client:  &fakeClient{files: map[string][]byte{}},
	}
	_ = h.bus.Subscribe(context.Background(), events.StreamLedger, func(e events.Event) {
		h.events = append(h.events, e)
	})

	log := zap.NewNop()
	h.ledger = NewLedgerService(h.users, h.txs, h.bus, map[models.Channel]ChannelDefaults{
		models.ChannelTelegram: {InitialTokens: 10, UpdateProfile: true},
		models.ChannelWhatsApp: {InitialTokens: 100, ReferralCode: true},
	}, time.UTC, log)
	h.tracker = NewRequestTracker(h.reqs, h.bus, log)
	verifier := payproof.NewVerifierWithExtractor(func(b []byte) (string, error) { return string(b), nil })
	h.pay = NewPaymentService(h.ledger, h.tracker, verifier, h.bus, 100, log)
	h.gw = NewGateway(h.ledger, h.tracker, h.pay, h.model, h.history, GatewayConfig{HistoryTurns: 10}, log)
	h.gw.RegisterChannel(models.ChannelTelegram, h.client)
	h.gw.RegisterChannel(models.ChannelWhatsApp, h.client)
	return h
}

func (h *harness) seed(u models.UserRecord) {
	_ = h.users.Put(context.Background(), &u)
}

func (h *harness) user(channel models.Channel, id string) *models.UserRecord {
	u, err := h.users.Get(context.Background(), models.UserKey(channel, id))
	if err != nil {
		return nil
	}
	return u
}

func (h *harness) hasEvent(eventType string) bool {
	for _, e := range h.events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

var baseTime = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func textEvent(channel models.Channel, id, body string, at time.Time) models.InboundEvent {
	kind, cmd := models.ClassifyText(body)
	return models.InboundEvent{
		Kind:        kind,
		Channel:     channel,
		SenderID:    id,
		DisplayName: "Ada Lovelace",
		Body:        body,
		Command:     cmd,
		ReceivedAt:  at,
	}
}

func mediaEvent(id string, at time.Time, mimes ...string) models.InboundEvent {
	ev := models.InboundEvent{
		Kind:        models.EventMedia,
		Channel:     models.ChannelTelegram,
		SenderID:    id,
		DisplayName: "Ada",
		ReceivedAt:  at,
	}
	for i, mt := range mimes {
		ev.Attachments = append(ev.Attachments, models.Attachment{Ref: "img" + string(rune('a'+i)), MimeType: mt})
	}
	return ev
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }
