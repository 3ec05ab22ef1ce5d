package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Degefa-Gomora/evangadiForum1/internal/audit"
	"github.com/Degefa-Gomora/evangadiForum1/internal/auth"
	"github.com/Degefa-Gomora/evangadiForum1/internal/cache"
	"github.com/Degefa-Gomora/evangadiForum1/internal/directory"
	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/internal/kafka"
	"github.com/Degefa-Gomora/evangadiForum1/internal/presence"
	"github.com/Degefa-Gomora/evangadiForum1/internal/reaction"
	"github.com/Degefa-Gomora/evangadiForum1/internal/repository"
	"github.com/Degefa-Gomora/evangadiForum1/internal/room"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

// Config holds the protocol-level tunables.
type Config struct {
	HistoryPageSize    int
	MaxAttachmentBytes int
	SweepInterval      time.Duration
	InactivityTimeout  time.Duration
	CacheTTL           time.Duration
}

type chatService struct {
	hub      Broadcaster
	repo     repository.MessageRepository
	verifier auth.Verifier
	users    directory.UserDirectory
	presence *presence.Tracker
	cache    cache.HistoryCache // nil when disabled
	producer kafka.EventProducer
	config   Config

	locks  *messageLocks
	sf     singleflight.Group
	now    func() time.Time
	cancel context.CancelFunc
}

// NewChatService wires the protocol together. cache may be nil; pass
// kafka.NopProducer when the event feed is disabled.
func NewChatService(
	h Broadcaster,
	repo repository.MessageRepository,
	verifier auth.Verifier,
	users directory.UserDirectory,
	tracker *presence.Tracker,
	historyCache cache.HistoryCache,
	producer kafka.EventProducer,
	cfg Config,
) ChatService {
	return &chatService{
		hub:      h,
		repo:     repo,
		verifier: verifier,
		users:    users,
		presence: tracker,
		cache:    historyCache,
		producer: producer,
		config:   cfg,
		locks:    newMessageLocks(),
		now:      time.Now,
	}
}

// HandleConnect registers a connection that arrived with a verified
// handshake identity. Anonymous connections stay read-only observers.
func (s *chatService) HandleConnect(ctx context.Context, c Conn, identity *domain.Identity) {
	if identity == nil {
		return
	}
	c.SetIdentity(identity)
	s.presence.Register(c.ID(), *identity, room.PublicRoomID())
	s.broadcastPresence()
	audit.Log(ctx, audit.ActionIdentify, identity.UserID, "connection identified at handshake")

	c.SendMessage(&domain.IdentifiedEvent{
		Type: domain.EventIdentified,
		User: domain.UserSummary{
			UserID:    identity.UserID,
			Username:  identity.Username,
			AvatarURL: identity.AvatarURL,
		},
	})
}

func (s *chatService) HandleIdentify(ctx context.Context, c Conn, token string) error {
	identity, err := s.verifier.Verify(token)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionIdentifyFailed, "", err.Error(), "identify rejected")
		return c.SendMessage(domain.NewErrorEvent(domain.ErrCodeUnauthenticated, "invalid or expired token"))
	}

	c.SetIdentity(identity)
	s.presence.Register(c.ID(), *identity, room.PublicRoomID())
	s.broadcastPresence()
	audit.Log(ctx, audit.ActionIdentify, identity.UserID, "connection identified")

	return c.SendMessage(&domain.IdentifiedEvent{
		Type: domain.EventIdentified,
		User: domain.UserSummary{
			UserID:    identity.UserID,
			Username:  identity.Username,
			AvatarURL: identity.AvatarURL,
		},
	})
}

func (s *chatService) HandleJoinRoom(ctx context.Context, c Conn, roomID string) error {
	s.touch(c)

	if roomID == "" {
		roomID = room.PublicRoomID()
	}

	identity := c.Identity()
	if roomID != room.PublicRoomID() {
		// Private rooms require an identity that is one of the two
		// participants.
		if identity == nil {
			return s.sendError(c, domain.ErrUnauthenticated)
		}
		if !room.IsParticipant(roomID, identity.UserID) {
			return s.sendError(c, domain.ErrForbidden)
		}
	}

	s.hub.JoinRoom(c.ID(), roomID)
	if identity != nil {
		s.presence.SetRoom(identity.UserID, roomID)
		audit.LogWithDetail(ctx, audit.ActionJoinRoom, identity.UserID, roomID, "joined room")
	}

	return c.SendMessage(&domain.RoomJoinedEvent{
		Type:   domain.EventRoomJoined,
		RoomID: roomID,
	})
}

func (s *chatService) HandleLeaveRoom(ctx context.Context, c Conn, roomID string) error {
	s.touch(c)

	s.hub.LeaveRoom(c.ID(), roomID)
	if identity := c.Identity(); identity != nil {
		audit.LogWithDetail(ctx, audit.ActionLeaveRoom, identity.UserID, roomID, "left room")
	}

	return c.SendMessage(&domain.RoomLeftEvent{
		Type:   domain.EventRoomLeft,
		RoomID: roomID,
	})
}

func (s *chatService) HandleFetchHistory(ctx context.Context, c Conn, roomID, targetUserID string) error {
	s.touch(c)

	visibility := domain.VisibilityPublic
	if targetUserID != "" {
		identity := c.Identity()
		if identity == nil {
			return s.sendError(c, domain.ErrUnauthenticated)
		}
		dmRoom, err := room.PrivateRoomID(identity.UserID, targetUserID)
		if err != nil {
			return s.sendError(c, err)
		}
		roomID = dmRoom
		visibility = domain.VisibilityPrivate
	} else if roomID == "" {
		roomID = room.PublicRoomID()
	}

	messages, err := s.FetchHistoryPage(ctx, roomID, visibility, nil)
	if err != nil {
		return s.sendError(c, domain.ErrHistoryUnavailable)
	}

	return c.SendMessage(&domain.HistoryPageEvent{
		Type:     domain.EventHistoryPage,
		RoomID:   roomID,
		Messages: messages,
	})
}

// FetchHistoryPage reads one ascending page of room history. Paginated
// reads (before != nil) go through the cache with singleflight; the
// latest page is always served fresh.
func (s *chatService) FetchHistoryPage(ctx context.Context, roomID string, visibility domain.Visibility, before *time.Time) ([]domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	if before == nil || s.cache == nil {
		messages, err := s.repo.FetchPage(ctx, roomID, visibility, s.config.HistoryPageSize, before)
		if err != nil {
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("history fetch failed")
			return nil, fmt.Errorf("%w: %v", domain.ErrHistoryUnavailable, err)
		}
		return messages, nil
	}

	key := s.cache.BuildKey(roomID, visibility, s.config.HistoryPageSize, *before)
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			return cached.Messages, nil
		}
		if err != cache.ErrCacheMiss {
			l.Warn().Err(err).Msg("history cache get error")
		}

		messages, err := s.repo.FetchPage(ctx, roomID, visibility, s.config.HistoryPageSize, before)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrHistoryUnavailable, err)
		}

		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.cache.Set(cacheCtx, key, &cache.HistoryPage{Messages: messages}, s.config.CacheTTL); err != nil {
				bl := log.L()
				bl.Warn().Err(err).Msg("history cache set error")
			}
		}()

		return messages, nil
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("history fetch failed")
		return nil, err
	}

	return result.([]domain.ChatMessage), nil
}

func (s *chatService) HandleSendText(ctx context.Context, c Conn, evt *domain.SendTextEvent) error {
	return s.send(ctx, c, evt.RoomID, evt.RecipientID, domain.NewTextBody(evt.Text))
}

func (s *chatService) HandleSendFile(ctx context.Context, c Conn, evt *domain.SendFileEvent) error {
	if len(evt.Data) > s.config.MaxAttachmentBytes {
		return s.sendError(c, fmt.Errorf("%w: attachment exceeds %d bytes", domain.ErrValidation, s.config.MaxAttachmentBytes))
	}
	return s.send(ctx, c, evt.RoomID, evt.RecipientID, domain.NewFileBody(evt.Caption, evt.Data, evt.Name, evt.MimeType))
}

func (s *chatService) HandleSendVoice(ctx context.Context, c Conn, evt *domain.SendVoiceEvent) error {
	if len(evt.Data) > s.config.MaxAttachmentBytes {
		return s.sendError(c, fmt.Errorf("%w: attachment exceeds %d bytes", domain.ErrValidation, s.config.MaxAttachmentBytes))
	}
	return s.send(ctx, c, evt.RoomID, evt.RecipientID, domain.NewVoiceBody(evt.Data, evt.MimeType, evt.DurationSeconds))
}

// send validates, persists and fans out one new message.
func (s *chatService) send(ctx context.Context, c Conn, roomID, recipientID string, body domain.Body) error {
	identity := c.Identity()
	if identity == nil {
		return s.sendError(c, domain.ErrUnauthenticated)
	}
	if !c.AllowSend() {
		return s.sendError(c, domain.ErrRateLimited)
	}
	if err := body.Validate(); err != nil {
		return s.sendError(c, err)
	}

	targetRoom, visibility, err := s.resolveSendRoom(identity, roomID, recipientID)
	if err != nil {
		return s.sendError(c, err)
	}

	msg := &domain.ChatMessage{
		UserID:      identity.UserID,
		Username:    identity.Username,
		AvatarURL:   identity.AvatarURL,
		RoomID:      targetRoom,
		Visibility:  visibility,
		RecipientID: recipientID,
		Body:        body,
		CreatedAt:   s.now().UTC(),
		Reactions:   []domain.Reaction{},
	}

	if err := s.repo.Insert(ctx, msg); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, targetRoom).Msg("failed to persist message")
		return c.SendMessage(domain.NewErrorEvent(domain.ErrCodeInternal, "failed to send message"))
	}

	s.presence.Touch(identity.UserID)
	audit.LogWithDetail(ctx, audit.ActionSendMessage, identity.UserID, targetRoom, "message sent")

	s.hub.BroadcastToRoom(targetRoom, &domain.MessageCreatedEvent{
		Type:    domain.EventMessageCreated,
		Message: *msg,
	}, "")

	s.feed(ctx, kafka.FeedMessageCreated, msg)
	return nil
}

// resolveSendRoom computes the effective room for an outgoing message.
// Direct messages always resolve through the room router from the two
// participant ids, never from a client-supplied room id.
func (s *chatService) resolveSendRoom(identity *domain.Identity, roomID, recipientID string) (string, domain.Visibility, error) {
	if recipientID != "" {
		dmRoom, err := room.PrivateRoomID(identity.UserID, recipientID)
		if err != nil {
			return "", "", err
		}
		return dmRoom, domain.VisibilityPrivate, nil
	}
	if roomID == "" {
		roomID = room.PublicRoomID()
	}
	return roomID, domain.VisibilityPublic, nil
}

func (s *chatService) HandleEditMessage(ctx context.Context, c Conn, messageID int64, newText string) error {
	identity := c.Identity()
	if identity == nil {
		return s.sendError(c, domain.ErrUnauthenticated)
	}
	if strings.TrimSpace(newText) == "" {
		return s.sendError(c, fmt.Errorf("%w: new text must not be empty", domain.ErrValidation))
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.repo.FetchOne(ctx, messageID)
	if err != nil {
		return s.sendError(c, domain.ErrMessageNotFound)
	}
	if msg.UserID != identity.UserID {
		return s.sendError(c, domain.ErrForbidden)
	}
	if msg.Deleted {
		return s.sendError(c, domain.ErrAlreadyDeleted)
	}
	if !msg.Body.Editable() {
		return s.sendError(c, domain.ErrUneditableKind)
	}

	body := domain.NewTextBody(newText)
	editedAt := s.now().UTC()
	updated, err := s.repo.Update(ctx, messageID, domain.MessagePatch{
		Body:     &body,
		EditedAt: &editedAt,
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64(log.FieldMessageID, messageID).Msg("failed to edit message")
		return c.SendMessage(domain.NewErrorEvent(domain.ErrCodeInternal, "failed to edit message"))
	}

	s.presence.Touch(identity.UserID)
	audit.Log(ctx, audit.ActionEditMessage, identity.UserID, "message edited")
	s.broadcastUpdate(ctx, updated)
	return nil
}

func (s *chatService) HandleDeleteMessage(ctx context.Context, c Conn, messageID int64) error {
	identity := c.Identity()
	if identity == nil {
		return s.sendError(c, domain.ErrUnauthenticated)
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.repo.FetchOne(ctx, messageID)
	if err != nil {
		return s.sendError(c, domain.ErrMessageNotFound)
	}
	if msg.UserID != identity.UserID {
		return s.sendError(c, domain.ErrForbidden)
	}
	if msg.Deleted {
		return s.sendError(c, domain.ErrAlreadyDeleted)
	}

	// Irreversible: payload cleared, reactions wiped, tombstone left in
	// place.
	tombstone := domain.TombstoneBody()
	deleted := true
	empty := []domain.Reaction{}
	updated, err := s.repo.Update(ctx, messageID, domain.MessagePatch{
		Body:      &tombstone,
		Deleted:   &deleted,
		Reactions: &empty,
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64(log.FieldMessageID, messageID).Msg("failed to delete message")
		return c.SendMessage(domain.NewErrorEvent(domain.ErrCodeInternal, "failed to delete message"))
	}

	s.presence.Touch(identity.UserID)
	audit.Log(ctx, audit.ActionDeleteMessage, identity.UserID, "message deleted")
	s.broadcastUpdate(ctx, updated)
	return nil
}

func (s *chatService) HandleReactMessage(ctx context.Context, c Conn, messageID int64, symbol string) error {
	identity := c.Identity()
	if identity == nil {
		return s.sendError(c, domain.ErrUnauthenticated)
	}
	if symbol == "" {
		return s.sendError(c, fmt.Errorf("%w: reaction symbol is required", domain.ErrValidation))
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.repo.FetchOne(ctx, messageID)
	if err != nil {
		return s.sendError(c, domain.ErrMessageNotFound)
	}
	if msg.Deleted {
		return s.sendError(c, domain.ErrCannotReactToDeleted)
	}

	toggled := reaction.Toggle(msg.Reactions, symbol, identity.UserID, identity.Username)
	updated, err := s.repo.Update(ctx, messageID, domain.MessagePatch{
		Reactions: &toggled,
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64(log.FieldMessageID, messageID).Msg("failed to persist reaction")
		return c.SendMessage(domain.NewErrorEvent(domain.ErrCodeInternal, "failed to react to message"))
	}

	s.presence.Touch(identity.UserID)
	audit.LogWithDetail(ctx, audit.ActionReact, identity.UserID, symbol, "reaction toggled")
	s.broadcastUpdate(ctx, updated)
	return nil
}

func (s *chatService) HandleTyping(ctx context.Context, c Conn, roomID, recipientID string) error {
	identity := c.Identity()
	if identity == nil {
		return s.sendError(c, domain.ErrUnauthenticated)
	}
	s.presence.Touch(identity.UserID)

	targetRoom, _, err := s.resolveSendRoom(identity, roomID, recipientID)
	if err != nil {
		return s.sendError(c, err)
	}

	// Fire-and-forget to everyone else in the room; consumers expire
	// the indicator on their own.
	return s.hub.BroadcastToRoom(targetRoom, &domain.TypingIndicatorEvent{
		Type:     domain.EventTypingIndicator,
		UserID:   identity.UserID,
		Username: identity.Username,
		RoomID:   targetRoom,
	}, c.ID())
}

func (s *chatService) HandleStopTyping(ctx context.Context, c Conn, roomID, recipientID string) error {
	identity := c.Identity()
	if identity == nil {
		return s.sendError(c, domain.ErrUnauthenticated)
	}
	s.presence.Touch(identity.UserID)

	targetRoom, _, err := s.resolveSendRoom(identity, roomID, recipientID)
	if err != nil {
		return s.sendError(c, err)
	}

	return s.hub.BroadcastToRoom(targetRoom, &domain.TypingStoppedEvent{
		Type:   domain.EventTypingStopped,
		UserID: identity.UserID,
		RoomID: targetRoom,
	}, c.ID())
}

func (s *chatService) HandleListUsers(ctx context.Context, c Conn) error {
	s.touch(c)

	users, err := s.users.ListVerifiedUsers(ctx)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list verified users")
		users = []domain.UserSummary{}
	}

	return c.SendMessage(&domain.UserDirectoryEvent{
		Type:  domain.EventUserDirectory,
		Users: users,
	})
}

// HandlePing answers keepalive probes. A ping counts as activity like
// any other inbound event.
func (s *chatService) HandlePing(ctx context.Context, c Conn) error {
	s.touch(c)
	return c.SendMessage(&domain.BaseEvent{Type: domain.EventPong})
}

func (s *chatService) HandleDisconnect(ctx context.Context, c Conn) error {
	removed := s.presence.Remove(c.ID())
	if removed {
		s.broadcastPresence()
	}
	if identity := c.Identity(); identity != nil {
		audit.Log(ctx, audit.ActionDisconnect, identity.UserID, "connection closed")
	}
	return nil
}

// Start launches the stale-presence sweeper.
func (s *chatService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.sweepLoop(ctx)

	l := log.L()
	l.Info().Dur("interval", s.config.SweepInterval).Dur("timeout", s.config.InactivityTimeout).Msg("presence sweeper started")
	return nil
}

func (s *chatService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.producer.Close(); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("failed to close event producer")
	}
}

func (s *chatService) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.presence.SweepInactive(s.now(), s.config.InactivityTimeout)
			if len(removed) == 0 {
				continue
			}
			for _, e := range removed {
				l := log.L()
				l.Info().Str(log.FieldUserID, e.UserID).Msg("user evicted for inactivity")
			}
			s.broadcastPresence()
		}
	}
}

// broadcastUpdate fans an updated message out to its resolved room.
// Private messages resolve the room from the stored participants, not
// from anything client-supplied.
func (s *chatService) broadcastUpdate(ctx context.Context, msg *domain.ChatMessage) {
	targetRoom := msg.RoomID
	if msg.Visibility == domain.VisibilityPrivate && msg.RecipientID != "" {
		if dmRoom, err := room.PrivateRoomID(msg.UserID, msg.RecipientID); err == nil {
			targetRoom = dmRoom
		}
	}

	s.hub.BroadcastToRoom(targetRoom, &domain.MessageUpdatedEvent{
		Type:    domain.EventMessageUpdated,
		Message: *msg,
	}, "")

	s.feed(ctx, kafka.FeedMessageUpdated, msg)
}

func (s *chatService) broadcastPresence() {
	s.hub.BroadcastToAll(&domain.PresenceSnapshotEvent{
		Type:  domain.EventPresenceSnapshot,
		Users: s.presence.Snapshot(),
	})
}

func (s *chatService) feed(ctx context.Context, kind string, msg *domain.ChatMessage) {
	if err := s.producer.Produce(ctx, &kafka.FeedEvent{Kind: kind, Message: *msg}); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Int64(log.FieldMessageID, msg.MessageID).Msg("failed to publish feed event")
	}
}

func (s *chatService) touch(c Conn) {
	if identity := c.Identity(); identity != nil {
		s.presence.Touch(identity.UserID)
	}
}

func (s *chatService) sendError(c Conn, err error) error {
	return c.SendMessage(domain.ErrorEventFrom(err))
}
