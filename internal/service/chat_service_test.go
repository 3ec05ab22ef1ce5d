package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Degefa-Gomora/evangadiForum1/internal/auth"
	"github.com/Degefa-Gomora/evangadiForum1/internal/cache"
	"github.com/Degefa-Gomora/evangadiForum1/internal/directory"
	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/internal/kafka"
	"github.com/Degefa-Gomora/evangadiForum1/internal/presence"
	"github.com/Degefa-Gomora/evangadiForum1/internal/repository"
	"github.com/Degefa-Gomora/evangadiForum1/internal/service"
)

// fakeConn records everything sent to one connection.
type fakeConn struct {
	id        string
	mu        sync.Mutex
	identity  *domain.Identity
	sent      []interface{}
	allowSend bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, allowSend: true}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Identity() *domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *fakeConn) SetIdentity(identity *domain.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

func (c *fakeConn) SendMessage(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, message)
	return nil
}

func (c *fakeConn) AllowSend() bool { return c.allowSend }

func (c *fakeConn) lastError() *domain.OperationErrorEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if e, ok := c.sent[i].(*domain.OperationErrorEvent); ok {
			return e
		}
	}
	return nil
}

// roomBroadcast is one recorded room fan-out.
type roomBroadcast struct {
	RoomID  string
	Message interface{}
	Exclude string
}

// fakeBroadcaster records fan-out without real connections.
type fakeBroadcaster struct {
	mu      sync.Mutex
	joined  map[string][]string // clientID -> roomIDs
	room    []roomBroadcast
	global  []interface{}
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{joined: make(map[string][]string)}
}

func (b *fakeBroadcaster) JoinRoom(clientID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joined[clientID] = append(b.joined[clientID], roomID)
}

func (b *fakeBroadcaster) LeaveRoom(clientID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rooms := b.joined[clientID]
	for i, r := range rooms {
		if r == roomID {
			b.joined[clientID] = append(rooms[:i], rooms[i+1:]...)
			return
		}
	}
}

func (b *fakeBroadcaster) Rooms(clientID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.joined[clientID]...)
}

func (b *fakeBroadcaster) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = append(b.room, roomBroadcast{RoomID: roomID, Message: message, Exclude: exclude})
	return nil
}

func (b *fakeBroadcaster) BroadcastToAll(message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, message)
	return nil
}

func (b *fakeBroadcaster) lastRoomBroadcast() *roomBroadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.room) == 0 {
		return nil
	}
	out := b.room[len(b.room)-1]
	return &out
}

// fakeHistoryCache records gets and sets; Set signals setDone so tests
// can wait for the asynchronous cache fill.
type fakeHistoryCache struct {
	mu      sync.Mutex
	pages   map[string]*cache.HistoryPage
	gets    int
	setErr  error
	setDone chan string
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{
		pages:   make(map[string]*cache.HistoryPage),
		setDone: make(chan string, 8),
	}
}

func (f *fakeHistoryCache) Get(ctx context.Context, key string) (*cache.HistoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if page, ok := f.pages[key]; ok {
		return page, nil
	}
	return nil, cache.ErrCacheMiss
}

func (f *fakeHistoryCache) Set(ctx context.Context, key string, page *cache.HistoryPage, ttl time.Duration) error {
	defer func() { f.setDone <- key }()
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[key] = page
	return nil
}

func (f *fakeHistoryCache) BuildKey(roomID string, visibility domain.Visibility, limit int, before time.Time) string {
	return fmt.Sprintf("%s:%s:%d:%d", roomID, visibility, limit, before.UnixMilli())
}

func (f *fakeHistoryCache) Close() error { return nil }

func (f *fakeHistoryCache) waitSet(t *testing.T) {
	t.Helper()
	select {
	case <-f.setDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("cache set did not happen")
	}
}

type fixture struct {
	svc      service.ChatService
	hub      *fakeBroadcaster
	repo     *repository.MemoryMessageRepository
	verifier *auth.JWTVerifier
	tracker  *presence.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hub := newFakeBroadcaster()
	repo := repository.NewMemoryMessageRepository()
	verifier := auth.NewJWTVerifier("test-secret", "evangadi-forum")
	tracker := presence.NewTracker()
	users := &directory.StaticUserDirectory{Users: []domain.UserSummary{
		{UserID: "u1", Username: "alice"},
		{UserID: "u2", Username: "bob"},
	}}

	svc := service.NewChatService(hub, repo, verifier, users, tracker, nil, kafka.NopProducer{}, service.Config{
		HistoryPageSize:    200,
		MaxAttachmentBytes: 1024,
		SweepInterval:      time.Minute,
		InactivityTimeout:  5 * time.Minute,
	})

	return &fixture{svc: svc, hub: hub, repo: repo, verifier: verifier, tracker: tracker}
}

func (f *fixture) identifiedConn(t *testing.T, connID, userID, username string) *fakeConn {
	t.Helper()
	c := newFakeConn(connID)
	f.svc.HandleConnect(context.Background(), c, &domain.Identity{UserID: userID, Username: username})
	return c
}

func TestIdentifyWithValidToken(t *testing.T) {
	f := newFixture(t)
	c := newFakeConn("conn-1")

	token, err := f.verifier.Issue(domain.Identity{UserID: "u1", Username: "alice"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := f.svc.HandleIdentify(context.Background(), c, token); err != nil {
		t.Fatalf("HandleIdentify failed: %v", err)
	}

	if c.Identity() == nil || c.Identity().UserID != "u1" {
		t.Fatalf("identity not attached to connection")
	}
	if f.tracker.Count() != 1 {
		t.Fatalf("expected user registered in presence")
	}

	found := false
	for _, msg := range c.sent {
		if e, ok := msg.(*domain.IdentifiedEvent); ok && e.User.UserID == "u1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected identified event on the connection")
	}
}

func TestIdentifyWithBadToken(t *testing.T) {
	f := newFixture(t)
	c := newFakeConn("conn-1")

	if err := f.svc.HandleIdentify(context.Background(), c, "garbage"); err != nil {
		t.Fatalf("HandleIdentify failed: %v", err)
	}

	if c.Identity() != nil {
		t.Fatalf("bad token must not attach an identity")
	}
	e := c.lastError()
	if e == nil || e.Kind != domain.ErrCodeUnauthenticated {
		t.Fatalf("expected UNAUTHENTICATED error, got %+v", e)
	}
}

func TestSendTextBroadcastsToRoom(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	err := f.svc.HandleSendText(context.Background(), c, &domain.SendTextEvent{Text: "hello forum"})
	if err != nil {
		t.Fatalf("HandleSendText failed: %v", err)
	}

	bc := f.hub.lastRoomBroadcast()
	if bc == nil {
		t.Fatalf("expected a room broadcast")
	}
	if bc.RoomID != "forum_lobby" {
		t.Fatalf("expected broadcast to forum_lobby, got %q", bc.RoomID)
	}
	if bc.Exclude != "" {
		t.Fatalf("sender must receive its own message, exclude was %q", bc.Exclude)
	}

	created, ok := bc.Message.(*domain.MessageCreatedEvent)
	if !ok {
		t.Fatalf("expected message_created event, got %T", bc.Message)
	}
	if created.Message.MessageID != 1 {
		t.Fatalf("expected first message id 1, got %d", created.Message.MessageID)
	}
	if created.Message.Body.Text != "hello forum" {
		t.Fatalf("unexpected text %q", created.Message.Body.Text)
	}
	if created.Message.Username != "alice" {
		t.Fatalf("sender snapshot missing, got %q", created.Message.Username)
	}
}

func TestAnonymousCannotSend(t *testing.T) {
	f := newFixture(t)
	c := newFakeConn("conn-1")

	if err := f.svc.HandleSendText(context.Background(), c, &domain.SendTextEvent{Text: "hi"}); err != nil {
		t.Fatalf("HandleSendText failed: %v", err)
	}

	e := c.lastError()
	if e == nil || e.Kind != domain.ErrCodeUnauthenticated {
		t.Fatalf("expected UNAUTHENTICATED, got %+v", e)
	}
	if f.hub.lastRoomBroadcast() != nil {
		t.Fatalf("nothing must be broadcast for a rejected send")
	}
}

func TestPrivateMessageResolvesSortedRoom(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "5", "eve")

	err := f.svc.HandleSendText(context.Background(), c, &domain.SendTextEvent{
		RecipientID: "2",
		Text:        "psst",
	})
	if err != nil {
		t.Fatalf("HandleSendText failed: %v", err)
	}

	bc := f.hub.lastRoomBroadcast()
	if bc == nil {
		t.Fatalf("expected a room broadcast")
	}
	if bc.RoomID != "2-5" {
		t.Fatalf("expected private room 2-5, got %q", bc.RoomID)
	}

	created := bc.Message.(*domain.MessageCreatedEvent)
	if created.Message.Visibility != domain.VisibilityPrivate {
		t.Fatalf("expected private visibility, got %q", created.Message.Visibility)
	}
	if created.Message.RoomID != "2-5" {
		t.Fatalf("stored room must match the resolved room, got %q", created.Message.RoomID)
	}
}

func TestRateLimitedSend(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")
	c.allowSend = false

	if err := f.svc.HandleSendText(context.Background(), c, &domain.SendTextEvent{Text: "spam"}); err != nil {
		t.Fatalf("HandleSendText failed: %v", err)
	}

	e := c.lastError()
	if e == nil || e.Kind != domain.ErrCodeRateLimited {
		t.Fatalf("expected RATE_LIMITED, got %+v", e)
	}
}

func TestAttachmentSizeLimit(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	big := make([]byte, 2048)
	err := f.svc.HandleSendFile(context.Background(), c, &domain.SendFileEvent{
		Data:     big,
		Name:     "huge.bin",
		MimeType: "application/octet-stream",
	})
	if err != nil {
		t.Fatalf("HandleSendFile failed: %v", err)
	}

	e := c.lastError()
	if e == nil || e.Kind != domain.ErrCodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for oversized attachment, got %+v", e)
	}
}

func TestEditOwnTextMessage(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	if err := f.svc.HandleSendText(context.Background(), c, &domain.SendTextEvent{Text: "typo"}); err != nil {
		t.Fatalf("HandleSendText failed: %v", err)
	}

	if err := f.svc.HandleEditMessage(context.Background(), c, 1, "fixed"); err != nil {
		t.Fatalf("HandleEditMessage failed: %v", err)
	}

	bc := f.hub.lastRoomBroadcast()
	updated, ok := bc.Message.(*domain.MessageUpdatedEvent)
	if !ok {
		t.Fatalf("expected message_updated broadcast, got %T", bc.Message)
	}
	if updated.Message.Body.Text != "fixed" {
		t.Fatalf("expected edited text, got %q", updated.Message.Body.Text)
	}
	if updated.Message.EditedAt == nil {
		t.Fatalf("expected edited_at to be set")
	}
}

func TestEditByNonAuthorIsForbidden(t *testing.T) {
	f := newFixture(t)
	author := f.identifiedConn(t, "conn-1", "u1", "alice")
	other := f.identifiedConn(t, "conn-2", "u2", "bob")

	if err := f.svc.HandleSendText(context.Background(), author, &domain.SendTextEvent{Text: "mine"}); err != nil {
		t.Fatalf("HandleSendText failed: %v", err)
	}

	if err := f.svc.HandleEditMessage(context.Background(), other, 1, "hijacked"); err != nil {
		t.Fatalf("HandleEditMessage failed: %v", err)
	}

	e := other.lastError()
	if e == nil || e.Kind != domain.ErrCodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %+v", e)
	}

	stored, err := f.repo.FetchOne(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if stored.Body.Text != "mine" {
		t.Fatalf("message must be unchanged, got %q", stored.Body.Text)
	}
}

func TestEditAttachmentIsRejected(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	err := f.svc.HandleSendFile(context.Background(), c, &domain.SendFileEvent{
		Data:     []byte{0x1},
		Name:     "pic.png",
		MimeType: "image/png",
	})
	if err != nil {
		t.Fatalf("HandleSendFile failed: %v", err)
	}

	if err := f.svc.HandleEditMessage(context.Background(), c, 1, "caption change"); err != nil {
		t.Fatalf("HandleEditMessage failed: %v", err)
	}

	e := c.lastError()
	if e == nil || e.Kind != domain.ErrCodeUneditableKind {
		t.Fatalf("expected UNEDITABLE_KIND, got %+v", e)
	}
}

func TestDeleteLeavesTombstone(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	if err := f.svc.HandleSendText(context.Background(), c, &domain.SendTextEvent{Text: "secret"}); err != nil {
		t.Fatalf("HandleSendText failed: %v", err)
	}
	if err := f.svc.HandleReactMessage(context.Background(), c, 1, "👍"); err != nil {
		t.Fatalf("HandleReactMessage failed: %v", err)
	}

	if err := f.svc.HandleDeleteMessage(context.Background(), c, 1); err != nil {
		t.Fatalf("HandleDeleteMessage failed: %v", err)
	}

	stored, err := f.repo.FetchOne(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if !stored.Deleted {
		t.Fatalf("expected deleted flag set")
	}
	if stored.Body.Kind != domain.BodyKindTombstone {
		t.Fatalf("expected tombstone body, got %q", stored.Body.Kind)
	}
	if stored.Body.Text != domain.DeletedPlaceholder {
		t.Fatalf("expected placeholder text, got %q", stored.Body.Text)
	}
	if len(stored.Reactions) != 0 {
		t.Fatalf("reactions must be cleared on delete, got %v", stored.Reactions)
	}
}

func TestOperationsOnDeletedMessage(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	if err := f.svc.HandleSendText(context.Background(), c, &domain.SendTextEvent{Text: "gone soon"}); err != nil {
		t.Fatalf("HandleSendText failed: %v", err)
	}
	if err := f.svc.HandleDeleteMessage(context.Background(), c, 1); err != nil {
		t.Fatalf("HandleDeleteMessage failed: %v", err)
	}

	if err := f.svc.HandleDeleteMessage(context.Background(), c, 1); err != nil {
		t.Fatalf("HandleDeleteMessage failed: %v", err)
	}
	if e := c.lastError(); e == nil || e.Kind != domain.ErrCodeAlreadyDeleted {
		t.Fatalf("expected ALREADY_DELETED on second delete, got %+v", e)
	}

	if err := f.svc.HandleEditMessage(context.Background(), c, 1, "resurrect"); err != nil {
		t.Fatalf("HandleEditMessage failed: %v", err)
	}
	if e := c.lastError(); e == nil || e.Kind != domain.ErrCodeAlreadyDeleted {
		t.Fatalf("expected ALREADY_DELETED on edit, got %+v", e)
	}

	if err := f.svc.HandleReactMessage(context.Background(), c, 1, "👍"); err != nil {
		t.Fatalf("HandleReactMessage failed: %v", err)
	}
	if e := c.lastError(); e == nil || e.Kind != domain.ErrCodeCannotReactToDeleted {
		t.Fatalf("expected CANNOT_REACT_TO_DELETED, got %+v", e)
	}
}

func TestConcurrentReactionsWithDifferentSymbols(t *testing.T) {
	f := newFixture(t)
	alice := f.identifiedConn(t, "conn-1", "u1", "alice")
	bob := f.identifiedConn(t, "conn-2", "u2", "bob")

	if err := f.svc.HandleSendText(context.Background(), alice, &domain.SendTextEvent{Text: "react to me"}); err != nil {
		t.Fatalf("HandleSendText failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.svc.HandleReactMessage(context.Background(), alice, 1, "👍")
	}()
	go func() {
		defer wg.Done()
		f.svc.HandleReactMessage(context.Background(), bob, 1, "❤️")
	}()
	wg.Wait()

	stored, err := f.repo.FetchOne(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if len(stored.Reactions) != 2 {
		t.Fatalf("both concurrent reactions must survive, got %v", stored.Reactions)
	}
}

func TestJoinPrivateRoomRequiresParticipation(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u3", "mallory")

	if err := f.svc.HandleJoinRoom(context.Background(), c, "u1-u2"); err != nil {
		t.Fatalf("HandleJoinRoom failed: %v", err)
	}

	e := c.lastError()
	if e == nil || e.Kind != domain.ErrCodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %+v", e)
	}
	if rooms := f.hub.Rooms("conn-1"); len(rooms) != 0 {
		t.Fatalf("connection must not join the room, got %v", rooms)
	}
}

func TestAnonymousCanJoinPublicRoom(t *testing.T) {
	f := newFixture(t)
	c := newFakeConn("conn-1")

	if err := f.svc.HandleJoinRoom(context.Background(), c, ""); err != nil {
		t.Fatalf("HandleJoinRoom failed: %v", err)
	}

	rooms := f.hub.Rooms("conn-1")
	if len(rooms) != 1 || rooms[0] != "forum_lobby" {
		t.Fatalf("expected the public room, got %v", rooms)
	}
}

func TestTypingExcludesSender(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	if err := f.svc.HandleTyping(context.Background(), c, "", ""); err != nil {
		t.Fatalf("HandleTyping failed: %v", err)
	}

	bc := f.hub.lastRoomBroadcast()
	if bc == nil {
		t.Fatalf("expected a typing broadcast")
	}
	if bc.Exclude != "conn-1" {
		t.Fatalf("typing must exclude the sender, exclude was %q", bc.Exclude)
	}
	indicator, ok := bc.Message.(*domain.TypingIndicatorEvent)
	if !ok {
		t.Fatalf("expected typing_indicator, got %T", bc.Message)
	}
	if indicator.Username != "alice" {
		t.Fatalf("unexpected typing user %q", indicator.Username)
	}
}

func TestFetchHistoryReturnsPage(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	for _, text := range []string{"one", "two", "three"} {
		if err := f.svc.HandleSendText(context.Background(), c, &domain.SendTextEvent{Text: text}); err != nil {
			t.Fatalf("HandleSendText failed: %v", err)
		}
	}

	if err := f.svc.HandleFetchHistory(context.Background(), c, "", ""); err != nil {
		t.Fatalf("HandleFetchHistory failed: %v", err)
	}

	var page *domain.HistoryPageEvent
	for _, msg := range c.sent {
		if e, ok := msg.(*domain.HistoryPageEvent); ok {
			page = e
		}
	}
	if page == nil {
		t.Fatalf("expected a history_page event")
	}
	if len(page.Messages) != 3 {
		t.Fatalf("expected three messages, got %d", len(page.Messages))
	}
	if page.Messages[0].Body.Text != "one" || page.Messages[2].Body.Text != "three" {
		t.Fatalf("history must be ascending, got %v", page.Messages)
	}
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	if err := f.svc.HandleListUsers(context.Background(), c); err != nil {
		t.Fatalf("HandleListUsers failed: %v", err)
	}

	var dir *domain.UserDirectoryEvent
	for _, msg := range c.sent {
		if e, ok := msg.(*domain.UserDirectoryEvent); ok {
			dir = e
		}
	}
	if dir == nil {
		t.Fatalf("expected a user_directory event")
	}
	if len(dir.Users) != 2 {
		t.Fatalf("expected two verified users, got %d", len(dir.Users))
	}
}

func TestHandshakeIdentityIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	c := newFakeConn("conn-1")

	f.svc.HandleConnect(context.Background(), c, &domain.Identity{UserID: "u1", Username: "alice"})

	var ack *domain.IdentifiedEvent
	for _, msg := range c.sent {
		if e, ok := msg.(*domain.IdentifiedEvent); ok {
			ack = e
		}
	}
	if ack == nil {
		t.Fatalf("expected an identified event on the handshake path")
	}
	if ack.User.UserID != "u1" || ack.User.Username != "alice" {
		t.Fatalf("unexpected identity in ack: %+v", ack.User)
	}
}

func TestStopTypingCountsAsActivity(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	time.Sleep(150 * time.Millisecond)
	if err := f.svc.HandleStopTyping(context.Background(), c, "", ""); err != nil {
		t.Fatalf("HandleStopTyping failed: %v", err)
	}

	removed := f.tracker.SweepInactive(time.Now(), 100*time.Millisecond)
	if len(removed) != 0 {
		t.Fatalf("user evicted right after sending an event: %v", removed)
	}
	if f.tracker.Count() != 1 {
		t.Fatalf("expected the user to stay online")
	}
}

func TestPingCountsAsActivityAndPongs(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	time.Sleep(150 * time.Millisecond)
	if err := f.svc.HandlePing(context.Background(), c); err != nil {
		t.Fatalf("HandlePing failed: %v", err)
	}

	var pong bool
	for _, msg := range c.sent {
		if e, ok := msg.(*domain.BaseEvent); ok && e.Type == domain.EventPong {
			pong = true
		}
	}
	if !pong {
		t.Fatalf("expected a pong reply")
	}

	removed := f.tracker.SweepInactive(time.Now(), 100*time.Millisecond)
	if len(removed) != 0 {
		t.Fatalf("user evicted despite an active keepalive: %v", removed)
	}
}

func newCachedFixture(t *testing.T, hc cache.HistoryCache) *fixture {
	t.Helper()

	hub := newFakeBroadcaster()
	repo := repository.NewMemoryMessageRepository()
	verifier := auth.NewJWTVerifier("test-secret", "evangadi-forum")
	tracker := presence.NewTracker()

	svc := service.NewChatService(hub, repo, verifier, &directory.StaticUserDirectory{}, tracker, hc, kafka.NopProducer{}, service.Config{
		HistoryPageSize:    200,
		MaxAttachmentBytes: 1024,
		SweepInterval:      time.Minute,
		InactivityTimeout:  5 * time.Minute,
		CacheTTL:           time.Minute,
	})

	return &fixture{svc: svc, hub: hub, repo: repo, verifier: verifier, tracker: tracker}
}

func seedLobbyHistory(t *testing.T, repo *repository.MemoryMessageRepository, count int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < count; i++ {
		msg := &domain.ChatMessage{
			UserID:     "u1",
			Username:   "alice",
			RoomID:     "forum_lobby",
			Visibility: domain.VisibilityPublic,
			Body:       domain.NewTextBody("m"),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			Reactions:  []domain.Reaction{},
		}
		if err := repo.Insert(context.Background(), msg); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
}

func TestPaginatedHistoryFillsCache(t *testing.T) {
	hc := newFakeHistoryCache()
	f := newCachedFixture(t, hc)
	seedLobbyHistory(t, f.repo, 2)

	before := time.Now().UTC()
	page, err := f.svc.FetchHistoryPage(context.Background(), "forum_lobby", domain.VisibilityPublic, &before)
	if err != nil {
		t.Fatalf("FetchHistoryPage failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected two messages, got %d", len(page))
	}
	hc.waitSet(t)

	again, err := f.svc.FetchHistoryPage(context.Background(), "forum_lobby", domain.VisibilityPublic, &before)
	if err != nil {
		t.Fatalf("FetchHistoryPage failed: %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("expected the cached page, got %d messages", len(again))
	}
	if hc.gets < 2 {
		t.Fatalf("expected the second read to consult the cache, got %d gets", hc.gets)
	}
}

func TestHistoryCacheWriteFailureIsNonFatal(t *testing.T) {
	hc := newFakeHistoryCache()
	hc.setErr = errors.New("redis down")
	f := newCachedFixture(t, hc)
	seedLobbyHistory(t, f.repo, 1)

	before := time.Now().UTC()
	page, err := f.svc.FetchHistoryPage(context.Background(), "forum_lobby", domain.VisibilityPublic, &before)
	if err != nil {
		t.Fatalf("a failing cache write must not fail the read: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected one message, got %d", len(page))
	}
	hc.waitSet(t)
}

func TestLatestHistoryPageSkipsCache(t *testing.T) {
	hc := newFakeHistoryCache()
	f := newCachedFixture(t, hc)
	seedLobbyHistory(t, f.repo, 1)

	page, err := f.svc.FetchHistoryPage(context.Background(), "forum_lobby", domain.VisibilityPublic, nil)
	if err != nil {
		t.Fatalf("FetchHistoryPage failed: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected one message, got %d", len(page))
	}
	if hc.gets != 0 {
		t.Fatalf("the latest page must not touch the cache, got %d gets", hc.gets)
	}
}

func TestDisconnectBroadcastsPresence(t *testing.T) {
	f := newFixture(t)
	c := f.identifiedConn(t, "conn-1", "u1", "alice")

	before := len(f.hub.global)
	if err := f.svc.HandleDisconnect(context.Background(), c); err != nil {
		t.Fatalf("HandleDisconnect failed: %v", err)
	}

	if f.tracker.Count() != 0 {
		t.Fatalf("expected user removed from presence")
	}
	if len(f.hub.global) <= before {
		t.Fatalf("expected a presence snapshot broadcast")
	}

	snapshot, ok := f.hub.global[len(f.hub.global)-1].(*domain.PresenceSnapshotEvent)
	if !ok {
		t.Fatalf("expected presence_snapshot, got %T", f.hub.global[len(f.hub.global)-1])
	}
	if len(snapshot.Users) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snapshot.Users)
	}
}
