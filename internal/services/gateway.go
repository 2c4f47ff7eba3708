package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/florence-gateway/backend/internal/llm"
	"github.com/florence-gateway/backend/internal/models"
	"github.com/florence-gateway/backend/internal/repositories"
	"go.uber.org/zap"
)

const (
	MaxAttachments = 5
	TextCost       = 1
	MediaCost      = 2

	defaultImagePrompt = "Describe this image."
)

type GatewayConfig struct {
	HistoryTurns int
}

// Gateway routes inbound events from every channel through the ledger,
// the payment flow and the model backend.
type Gateway struct {
	ledger   *LedgerService
	tracker  *RequestTracker
	payments *PaymentService
	model    ModelBackend
	history  repositories.ConversationStore
	channels map[models.Channel]ChannelClient
	cfg      GatewayConfig
	now      func() time.Time
	log      *zap.Logger
}

func NewGateway(
	ledger *LedgerService,
	tracker *RequestTracker,
	payments *PaymentService,
	model ModelBackend,
	history repositories.ConversationStore,
	cfg GatewayConfig,
	log *zap.Logger,
) *Gateway {
	return &Gateway{
		ledger:   ledger,
		tracker:  tracker,
		payments: payments,
		model:    model,
		history:  history,
		channels: make(map[models.Channel]ChannelClient),
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// RegisterChannel attaches the outbound side of a channel adapter.
func (g *Gateway) RegisterChannel(channel models.Channel, client ChannelClient) {
	g.channels[channel] = client
}

// Handle processes one inbound event end to end. The returned error is for
// logging only; the user has already been told what happened where possible.
// Redelivered events are processed again.
func (g *Gateway) Handle(ctx context.Context, ev models.InboundEvent) error {
	client, ok := g.channels[ev.Channel]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, ev.Channel)
	}
	if ev.RecipientID == "" {
		ev.RecipientID = ev.SenderID
	}
	now := ev.ReceivedAt
	if now.IsZero() {
		now = g.now()
	}

	unlock := g.ledger.Lock(ev.UserKey())
	defer unlock()

	obs, err := g.ledger.Observe(ctx, ev, now)
	if err != nil {
		g.log.Error("ledger observe failed", zap.String("user", ev.UserKey()), zap.Error(err))
		g.send(ctx, client, ev, replyApology)
		return err
	}

	switch ev.Kind {
	case models.EventCommand:
		if reply, ok := g.command(ctx, ev, obs, now); ok {
			return g.reply(ctx, client, ev, obs, reply)
		}
		// unknown commands go to the model as plain text
		return g.prompt(ctx, client, ev, obs)
	case models.EventDocument:
		return g.document(ctx, client, ev, obs)
	case models.EventText, models.EventMedia:
		return g.prompt(ctx, client, ev, obs)
	default:
		return g.reply(ctx, client, ev, obs, replyUnsupportedEvent)
	}
}

func (g *Gateway) command(ctx context.Context, ev models.InboundEvent, obs *Observation, now time.Time) (string, bool) {
	switch ev.Command {
	case "/start", "/help":
		return replyWelcome(obs.User, obs.IsNew), true
	case "/about":
		return replyAbout(), true
	case "/tokens":
		return replyTokens(obs.User), true
	case "/streak":
		return replyStreak(obs.User), true
	case "/payments":
		if _, err := g.tracker.OpenRequest(ctx, ev.UserKey(), now); err != nil {
			g.log.Error("open payment request failed", zap.String("user", ev.UserKey()), zap.Error(err))
			return replyApology, true
		}
		return replyPaymentInstructions(g.payments.Grant()), true
	}
	return "", false
}

func (g *Gateway) document(ctx context.Context, client ChannelClient, ev models.InboundEvent, obs *Observation) error {
	if len(ev.Attachments) == 0 {
		return g.reply(ctx, client, ev, obs, replyUnsupportedEvent)
	}

	res, err := g.payments.Submit(ctx, obs.User, client, ev.Attachments[0])
	switch {
	case errors.Is(err, ErrNoOpenRequest):
		return g.reply(ctx, client, ev, obs, replyNeedRequest)
	case err != nil:
		g.log.Error("payment submit failed", zap.String("user", ev.UserKey()), zap.Error(err))
		g.send(ctx, client, ev, replyApology)
		return err
	case res.Valid:
		return g.reply(ctx, client, ev, obs, replyPaymentAccepted(g.payments.Grant(), obs.User.Tokens))
	default:
		return g.reply(ctx, client, ev, obs, replyPaymentRejected(res.Reason))
	}
}

func (g *Gateway) prompt(ctx context.Context, client ChannelClient, ev models.InboundEvent, obs *Observation) error {
	user := obs.User
	if user.Tokens <= 0 {
		return g.reply(ctx, client, ev, obs, replyNoTokens())
	}

	cost, err := promptCost(ev)
	switch {
	case errors.Is(err, ErrTooManyAttachments):
		return g.reply(ctx, client, ev, obs, fmt.Sprintf(replyTooMany, MaxAttachments))
	case errors.Is(err, ErrUnsupportedMimeType):
		return g.reply(ctx, client, ev, obs, replyUnsupportedMime)
	}

	if err := g.ledger.Spend(ctx, user, cost); err != nil {
		if errors.Is(err, ErrInsufficientTokens) {
			return g.reply(ctx, client, ev, obs, replyNoTokens())
		}
		g.log.Error("spend failed", zap.String("user", ev.UserKey()), zap.Error(err))
		g.send(ctx, client, ev, replyApology)
		return err
	}

	answer, err := g.ask(ctx, client, ev)
	if err == nil {
		err = client.Send(ctx, ev.RecipientID, withNotices(answer, obs))
	}
	if err != nil {
		g.refund(ctx, user, cost)
		if errors.Is(err, ErrUnsupportedMimeType) {
			return g.reply(ctx, client, ev, obs, replyUnsupportedMime)
		}
		g.log.Error("prompt failed", zap.String("user", ev.UserKey()), zap.Int("refunded", cost), zap.Error(err))
		g.send(ctx, client, ev, replyApology)
		return err
	}

	g.remember(ctx, ev, answer)
	return nil
}

// promptCost prices a prompt and applies the attachment limits.
func promptCost(ev models.InboundEvent) (int, error) {
	if ev.Kind != models.EventMedia || len(ev.Attachments) == 0 {
		return TextCost, nil
	}
	if len(ev.Attachments) > MaxAttachments {
		return 0, ErrTooManyAttachments
	}
	for _, a := range ev.Attachments {
		// an empty type is sniffed after download
		if a.MimeType != "" && !llm.IsSupportedImage(a.MimeType) {
			return 0, ErrUnsupportedMimeType
		}
	}
	return MediaCost * len(ev.Attachments), nil
}

func (g *Gateway) ask(ctx context.Context, client ChannelClient, ev models.InboundEvent) (string, error) {
	if ev.Kind != models.EventMedia || len(ev.Attachments) == 0 {
		turns, err := g.history.Recent(ctx, ev.UserKey(), g.cfg.HistoryTurns)
		if err != nil {
			g.log.Warn("history unavailable", zap.String("user", ev.UserKey()), zap.Error(err))
			turns = nil
		}
		turns = append(turns, models.Turn{Role: models.RoleUser, Content: ev.Body})
		return g.model.Complete(ctx, turns)
	}

	items := make([]ModelAttachment, 0, len(ev.Attachments))
	for _, a := range ev.Attachments {
		data, contentType, err := client.FetchBytes(ctx, a.Ref)
		if err != nil {
			return "", fmt.Errorf("failed to fetch attachment: %w", err)
		}
		mt := a.MimeType
		if mt == "" {
			mt = contentType
		}
		items = append(items, ModelAttachment{Data: data, MimeType: mt})
	}

	prompt := strings.TrimSpace(ev.Body)
	if prompt == "" {
		prompt = defaultImagePrompt
	}
	return g.model.CompleteWithAttachments(ctx, items, prompt)
}

func (g *Gateway) remember(ctx context.Context, ev models.InboundEvent, answer string) {
	content := ev.Body
	if ev.Kind == models.EventMedia {
		content = strings.TrimSpace(fmt.Sprintf("[%d image(s)] %s", len(ev.Attachments), ev.Body))
	}
	err := g.history.Append(ctx, ev.UserKey(),
		models.Turn{Role: models.RoleUser, Content: content},
		models.Turn{Role: models.RoleAssistant, Content: answer},
	)
	if err != nil {
		g.log.Warn("failed to store history", zap.String("user", ev.UserKey()), zap.Error(err))
	}
}

func (g *Gateway) refund(ctx context.Context, user *models.UserRecord, n int) {
	if err := g.ledger.Refund(ctx, user, n); err != nil {
		g.log.Error("refund failed",
			zap.String("user", user.Key()),
			zap.Int("tokens", n),
			zap.Error(err),
		)
	}
}

// reply sends text with the observation notices appended.
func (g *Gateway) reply(ctx context.Context, client ChannelClient, ev models.InboundEvent, obs *Observation, text string) error {
	if err := client.Send(ctx, ev.RecipientID, withNotices(text, obs)); err != nil {
		g.log.Error("send failed", zap.String("user", ev.UserKey()), zap.Error(err))
		return err
	}
	return nil
}

// send is best effort, used for apologies.
func (g *Gateway) send(ctx context.Context, client ChannelClient, ev models.InboundEvent, text string) {
	if err := client.Send(ctx, ev.RecipientID, text); err != nil {
		g.log.Warn("send failed", zap.String("user", ev.UserKey()), zap.Error(err))
	}
}

func withNotices(text string, obs *Observation) string {
	if n := notices(obs); n != "" {
		return text + "\n\n" + n
	}
	return text
}
