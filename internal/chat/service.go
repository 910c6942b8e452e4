package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	pkgerrors "github.com/pkg/errors"
	"github.com/talkincode/wadesk/internal/app"
	"github.com/talkincode/wadesk/internal/auth"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/realtime"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/pkg/common"
	"go.uber.org/zap"
)

// TopicRatingNew carries RatingEvent values from the public rating page
const TopicRatingNew = "rating:new"

// EventTimeout bounds the work done for one socket event
const EventTimeout = 15 * time.Second

const defaultRatingTTL = 7 * 24 * time.Hour

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInstanceForbidden    = errors.New("instance not allowed for this session")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrUnknownEvent         = errors.New("unknown event")
	ErrTransportFailed      = errors.New("failed to deliver message")
	// ErrMediaUnsupported the transport only delivers text; media without a
	// caption can only be kept as an internal note
	ErrMediaUnsupported = errors.New("media messages need text content")
	ErrAlreadyClosed    = errors.New("conversation already closed")
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Session identifies the connection an event came from
type Session struct {
	ConnID string
	Claims *auth.Claims
}

// Repositories the chat service reads and writes
type Repositories struct {
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Instances     repository.InstanceRepository
	Ratings       repository.RatingRepository
}

type Options struct {
	// PublicURL is the base of customer facing rating links
	PublicURL string
	RatingTTL time.Duration
	// AlertRecipients receive a mail for every low rating when a mailer is set
	AlertRecipients []string
}

// Service implements the conversation messaging channel. It owns all
// mutations of the hub's room membership.
type Service struct {
	repos    Repositories
	hub      *realtime.Hub
	services *app.Services
	opts     Options
	now      func() time.Time
}

func NewService(repos Repositories, hub *realtime.Hub, services *app.Services, opts Options) *Service {
	if services == nil {
		services = &app.Services{}
	}
	if opts.RatingTTL <= 0 {
		opts.RatingTTL = defaultRatingTTL
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	return &Service{repos: repos, hub: hub, services: services, opts: opts, now: time.Now}
}

func (s *Service) Hub() *realtime.Hub {
	return s.hub
}

// Subscribe wires rating events published by the public rating endpoint
func (s *Service) Subscribe(bus EventBus.Bus) error {
	return bus.SubscribeAsync(TopicRatingNew, s.onRatingEvent, false)
}

func (s *Service) onRatingEvent(evt RatingEvent) {
	defer func() {
		if err := recover(); err != nil {
			zap.L().Error("rating event handler panic", zap.Any("panic", err))
		}
	}()
	s.notifyRating(evt.TenantID, RatingInput{
		Rating:         evt.Rating,
		ConversationID: evt.ConversationID,
		AgentID:        evt.AgentID,
		Comment:        evt.Comment,
	})
}

// Connect attaches a client and joins its rooms: the requested instances
// the tenant owns and the session may use, the tenant admin room for
// admins and the user's own room.
func (s *Service) Connect(ctx context.Context, client realtime.Client, claims *auth.Claims, requested []int64) ([]int64, error) {
	owned, err := s.repos.Instances.ListIDs(ctx, claims.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list tenant instances")
	}
	ownedSet := make(map[int64]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}

	s.hub.Attach(client)
	var joined []int64
	for _, id := range requested {
		if _, ok := ownedSet[id]; !ok || !claims.CanUseInstance(id) {
			continue
		}
		s.hub.Join(realtime.InstanceRoom(id), client)
		joined = append(joined, id)
	}
	if claims.Role == domain.RoleAdmin || claims.Role == domain.RoleSuper {
		s.hub.Join(realtime.AdminsRoom(claims.TenantID), client)
	}
	s.hub.Join(realtime.UserRoom(claims.TenantID, claims.UserID), client)

	zap.L().Info("socket connected",
		zap.String("conn_id", client.ID()),
		zap.Int64("tenant_id", claims.TenantID),
		zap.Int64("user_id", claims.UserID),
		zap.Int64s("instances", joined))
	return joined, nil
}

func (s *Service) Disconnect(client realtime.Client, claims *auth.Claims) {
	s.hub.Detach(client)
	zap.L().Info("socket disconnected",
		zap.String("conn_id", client.ID()),
		zap.Int64("tenant_id", claims.TenantID),
		zap.Int64("user_id", claims.UserID))
}

// HandleFrame decodes a raw frame and dispatches it
func (s *Service) HandleFrame(sess Session, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		s.replyError(sess, ErrInvalidPayload)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), EventTimeout)
	defer cancel()
	s.Dispatch(ctx, sess, frame.Event, frame.Data)
}

// Dispatch runs one event handler. Failures and panics are logged and
// reported to the originating connection only.
func (s *Service) Dispatch(ctx context.Context, sess Session, event string, data map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("socket event panic",
				zap.String("event", event),
				zap.String("conn_id", sess.ConnID),
				zap.Any("panic", r))
			s.replyError(sess, fmt.Errorf("panic: %v", r))
		}
	}()

	var err error
	switch event {
	case EventMessageSend:
		var in SendInput
		if err = decodeData(data, &in); err == nil {
			_, err = s.SendMessage(ctx, sess, in)
		}
	case EventConversationClose:
		var in CloseInput
		if err = decodeData(data, &in); err == nil {
			err = s.CloseConversation(ctx, sess, in)
		}
	case EventRatingNew:
		var in RatingInput
		if err = decodeData(data, &in); err == nil {
			err = s.NewRating(ctx, sess, in)
		}
	case EventTypingStart, EventTypingStop:
		var in ConversationRef
		if err = decodeData(data, &in); err == nil {
			err = s.Typing(ctx, sess, in, event == EventTypingStart)
		}
	case EventMessageRead:
		var in ConversationRef
		if err = decodeData(data, &in); err == nil {
			err = s.MarkRead(ctx, sess, in)
		}
	default:
		err = ErrUnknownEvent
	}
	if err != nil {
		zap.L().Warn("socket event failed",
			zap.String("event", event),
			zap.String("conn_id", sess.ConnID),
			zap.Int64("tenant_id", sess.Claims.TenantID),
			zap.Error(err))
		s.replyError(sess, err)
	}
}

func (s *Service) conversation(ctx context.Context, sess Session, id int64) (*domain.Conversation, error) {
	if id == 0 {
		return nil, ErrInvalidPayload
	}
	conv, err := s.repos.Conversations.Get(ctx, sess.Claims.TenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load conversation")
	}
	if !sess.Claims.CanUseInstance(conv.InstanceID) {
		return nil, ErrInstanceForbidden
	}
	return conv, nil
}

// SendMessage delivers through the transport (unless internal), persists,
// touches the conversation and echoes message:new to the whole instance
// room including the sender.
func (s *Service) SendMessage(ctx context.Context, sess Session, in SendInput) (*domain.Message, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && in.MediaID == nil {
		return nil, ErrInvalidPayload
	}
	if in.Content == "" && !in.IsInternal {
		return nil, ErrMediaUnsupported
	}
	if in.Type == "" {
		in.Type = defaultMessageType
	}
	conv, err := s.conversation(ctx, sess, in.ConversationID)
	if err != nil {
		return nil, err
	}

	var ref string
	var externalID *string
	if in.IsInternal {
		ref = internalMessagePrefix + uuid.NewString()
	} else {
		if s.services.Transport == nil {
			return nil, app.ErrServiceUnavailable
		}
		id, err := s.services.Transport.SendMessage(ctx, conv.InstanceID, conv.ChatID, in.Content)
		if err != nil {
			zap.L().Warn("transport send failed",
				zap.Int64("conversation_id", conv.ID),
				zap.Int64("instance_id", conv.InstanceID),
				zap.Error(err))
			return nil, ErrTransportFailed
		}
		ref = id
		externalID = &id
	}

	now := s.now()
	msg := &domain.Message{
		ID:             common.UUIDint64(),
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		ExternalID:     externalID,
		SenderID:       strconv.FormatInt(sess.Claims.UserID, 10),
		SenderName:     sess.Claims.Username,
		Type:           in.Type,
		Content:        in.Content,
		MediaID:        in.MediaID,
		ReplyTo:        in.ReplyTo,
		Sent:           !in.IsInternal,
		IsFromMe:       true,
		IsInternal:     in.IsInternal,
		CreatedAt:      now,
	}
	if err := s.repos.Messages.Create(ctx, msg); err != nil {
		zap.L().Error("message persist failed after delivery",
			zap.Int64("conversation_id", conv.ID),
			zap.String("ref", ref),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "persist message")
	}
	if err := s.repos.Conversations.Touch(ctx, conv.TenantID, conv.ID, now); err != nil {
		zap.L().Warn("conversation touch failed", zap.Int64("conversation_id", conv.ID), zap.Error(err))
	}

	s.broadcast(realtime.InstanceRoom(conv.InstanceID), EventMessageNew, messageNewData{
		ConversationID: conv.ID,
		InstanceID:     conv.InstanceID,
		Ref:            ref,
		Message:        msg,
	}, "")
	return msg, nil
}

// CloseConversation commits the closed status first. The rating link sent
// to the customer afterwards is best effort.
func (s *Service) CloseConversation(ctx context.Context, sess Session, in CloseInput) error {
	conv, err := s.conversation(ctx, sess, in.ConversationID)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.repos.Conversations.Close(ctx, conv.TenantID, conv.ID, sess.Claims.UserID, now); err != nil {
		if errors.Is(err, repository.ErrAlreadyClosed) {
			return ErrAlreadyClosed
		}
		return pkgerrors.Wrap(err, "close conversation")
	}
	zap.L().Info("conversation closed",
		zap.Int64("conversation_id", conv.ID),
		zap.Int64("closed_by", sess.Claims.UserID))

	sent := s.sendRatingLink(ctx, conv, now)

	data := closedData{
		ConversationID: conv.ID,
		InstanceID:     conv.InstanceID,
		ClosedBy:       sess.Claims.UserID,
		ClosedAt:       now.Format(time.RFC3339),
		RatingSent:     sent,
	}
	s.reply(sess, EventConversationCloseOK, data)
	s.broadcast(realtime.InstanceRoom(conv.InstanceID), EventConversationClosed, data, "")
	return nil
}

func (s *Service) sendRatingLink(ctx context.Context, conv *domain.Conversation, now time.Time) bool {
	if s.services.Transport == nil {
		zap.L().Warn("rating link skipped", zap.Int64("conversation_id", conv.ID), zap.Error(app.ErrServiceUnavailable))
		return false
	}
	rating := &domain.Rating{
		ID:             common.UUIDint64(),
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		AgentID:        conv.AssignedAgentID,
		Token:          strings.ReplaceAll(uuid.NewString(), "-", ""),
		ExpiresAt:      now.Add(s.opts.RatingTTL),
		CreatedAt:      now,
	}
	if s.repos.Ratings != nil {
		if err := s.repos.Ratings.Create(ctx, rating); err != nil {
			zap.L().Warn("rating link not stored", zap.Int64("conversation_id", conv.ID), zap.Error(err))
			return false
		}
	}
	link := fmt.Sprintf("%s/rating/%s", s.opts.PublicURL, rating.Token)
	text := "Obrigado pelo contato! Avalie nosso atendimento: " + link
	if _, err := s.services.Transport.SendMessage(ctx, conv.InstanceID, conv.ChatID, text); err != nil {
		zap.L().Warn("rating link delivery failed",
			zap.Int64("conversation_id", conv.ID),
			zap.Int64("instance_id", conv.InstanceID),
			zap.Error(err))
		return false
	}
	return true
}

// NewRating raises low rating notifications; nothing is stored here
func (s *Service) NewRating(ctx context.Context, sess Session, in RatingInput) error {
	if in.Rating < 1 || in.Rating > 5 {
		return ErrInvalidPayload
	}
	s.notifyRating(sess.Claims.TenantID, in)
	return nil
}

func (s *Service) notifyRating(tenantID int64, in RatingInput) {
	if in.Rating > lowRatingThreshold {
		return
	}
	data := lowRatingData{
		ConversationID: in.ConversationID,
		AgentID:        in.AgentID,
		Rating:         in.Rating,
		Comment:        in.Comment,
	}
	s.broadcast(realtime.AdminsRoom(tenantID), EventNotificationLowRating, data, "")
	if in.AgentID != nil && *in.AgentID != 0 {
		s.broadcast(realtime.UserRoom(tenantID, *in.AgentID), EventNotificationLowRating, data, "")
	}
	zap.L().Info("low rating notified",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("conversation_id", in.ConversationID),
		zap.Int("rating", in.Rating))

	if s.services.Mailer != nil && len(s.opts.AlertRecipients) > 0 {
		go func() {
			subject := fmt.Sprintf("Avaliação baixa (%d) na conversa %d", in.Rating, in.ConversationID)
			body := fmt.Sprintf("Tenant %d\nConversa %d\nNota %d\nComentário: %s", tenantID, in.ConversationID, in.Rating, in.Comment)
			if err := s.services.Mailer.Send(s.opts.AlertRecipients, subject, body); err != nil {
				zap.L().Warn("low rating mail failed", zap.Error(err))
			}
		}()
	}
}

// Typing relays typing state to the instance room, sender excluded
func (s *Service) Typing(ctx context.Context, sess Session, in ConversationRef, typing bool) error {
	conv, err := s.conversation(ctx, sess, in.ConversationID)
	if err != nil {
		return err
	}
	s.broadcast(realtime.InstanceRoom(conv.InstanceID), EventConversationTyping, typingData{
		ConversationID: conv.ID,
		UserID:         sess.Claims.UserID,
		Username:       sess.Claims.Username,
		Typing:         typing,
	}, sess.ConnID)
	return nil
}

// MarkRead resets the unread counter without broadcasting
func (s *Service) MarkRead(ctx context.Context, sess Session, in ConversationRef) error {
	conv, err := s.conversation(ctx, sess, in.ConversationID)
	if err != nil {
		return err
	}
	return s.repos.Conversations.ResetUnread(ctx, conv.TenantID, conv.ID)
}

// SubmitPublicRating stores a customer's answer to a rating link and
// publishes it for notification.
func (s *Service) SubmitPublicRating(ctx context.Context, bus EventBus.Bus, token string, score int, comment string) (*domain.Rating, error) {
	if score < 1 || score > 5 || token == "" {
		return nil, ErrInvalidPayload
	}
	if s.repos.Ratings == nil {
		return nil, app.ErrServiceUnavailable
	}
	rating, err := s.repos.Ratings.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.repos.Ratings.Answer(ctx, rating.ID, score, comment, now); err != nil {
		return nil, err
	}
	rating.Score = score
	rating.Comment = comment
	rating.AnsweredAt = &now
	if bus != nil {
		bus.Publish(TopicRatingNew, RatingEvent{
			TenantID:       rating.TenantID,
			ConversationID: rating.ConversationID,
			AgentID:        rating.AgentID,
			Rating:         score,
			Comment:        comment,
		})
	}
	return rating, nil
}

func (s *Service) encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}

func (s *Service) broadcast(room, event string, data interface{}, excludeID string) {
	payload, err := s.encode(event, data)
	if err != nil {
		zap.L().Error("encode frame failed", zap.String("event", event), zap.Error(err))
		return
	}
	s.hub.Broadcast(room, payload, excludeID)
}

func (s *Service) reply(sess Session, event string, data interface{}) {
	payload, err := s.encode(event, data)
	if err != nil {
		zap.L().Error("encode frame failed", zap.String("event", event), zap.Error(err))
		return
	}
	s.hub.SendTo(sess.ConnID, payload)
}

// replyError keeps internal detail out of the frame; only known errors
// carry their own message.
func (s *Service) replyError(sess Session, err error) {
	msg := "failed to process event"
	switch {
	case errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrInstanceForbidden),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrUnknownEvent),
		errors.Is(err, ErrTransportFailed),
		errors.Is(err, ErrMediaUnsupported),
		errors.Is(err, ErrAlreadyClosed),
		errors.Is(err, app.ErrServiceUnavailable):
		msg = err.Error()
	}
	s.reply(sess, EventError, errorData{Message: msg})
}
