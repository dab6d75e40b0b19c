package ws

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
)

// PushNotifier отправляет пуш-уведомления. Если nil — пуши не отправляются.
type PushNotifier interface {
	Notify(ctx context.Context, userID int64, title, body string, data map[string]string)
}

// Hub is the realtime fan-out core. One connection may subscribe to several
// rooms; subscriptions (client.rooms and byRoom) are mutated only under mu.
// All authorization goes through the same services the REST handlers use.
type Hub struct {
	mu       sync.RWMutex
	clients  map[int64]map[*Client]struct{}
	byRoom   map[int64]map[*Client]struct{}
	total    int
	maxConns int

	rooms    *chat.RoomService
	messages *chat.MessageService
	push     PushNotifier

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(rooms *chat.RoomService, messages *chat.MessageService, maxConns int, push PushNotifier) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		byRoom:     make(map[int64]map[*Client]struct{}),
		maxConns:   maxConns,
		rooms:      rooms,
		messages:   messages,
		push:       push,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[int64]map[*Client]struct{})
	h.byRoom = make(map[int64]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%d", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	lastClient := len(clients) == 0
	if lastClient {
		delete(h.clients, c.userID)
	}
	subscribed := make([]int64, 0, len(c.rooms))
	for roomID := range c.rooms {
		subscribed = append(subscribed, roomID)
		if set, ok := h.byRoom[roomID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byRoom, roomID)
			}
		}
	}
	c.rooms = make(map[int64]struct{})
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if lastClient {
		if err := h.rooms.MarkAllOffline(ctx, c.userID); err != nil {
			logger.Errorf("ws mark offline user=%d: %v", c.userID, err)
		}
	}
	for _, roomID := range subscribed {
		h.broadcastToRoom(roomID, OutgoingEvent{Type: EventUserLeft, Payload: UserLeftPayload{
			RoomID: roomID,
			UserID: c.userID,
		}}, c)
	}
}

// HandleEvent dispatches incoming WebSocket events.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, ev IncomingEvent) {
	switch ev.Type {
	case EventJoinRoom:
		h.handleJoinRoom(ctx, c, ev)
	case EventLeaveRoom:
		h.handleLeaveRoom(ctx, c, ev)
	case EventSendMessage:
		h.handleSendMessage(ctx, c, ev)
	case EventTyping:
		h.handleTyping(ctx, c, ev)
	case EventStopTyping:
		h.handleStopTyping(ctx, c, ev)
	default:
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "unknown event type"}})
	}
}

// handleJoinRoom подписывает соединение на комнату. Это не вступление в
// комнату (см. REST join): подписаться может только действующий участник.
func (h *Hub) handleJoinRoom(ctx context.Context, c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleJoinRoom", time.Now())()
	if ev.RoomID == 0 {
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "roomId required"}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := h.rooms.Participant(ctx, ev.RoomID, c.userID)
	if err != nil {
		if errors.Is(err, chat.ErrNotParticipant) {
			h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "not a participant"}})
			return
		}
		logger.Errorf("ws join room=%d user=%d: %v", ev.RoomID, c.userID, err)
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "internal error"}})
		return
	}

	h.mu.Lock()
	if _, already := c.rooms[ev.RoomID]; already {
		h.mu.Unlock()
		return
	}
	c.rooms[ev.RoomID] = struct{}{}
	if _, ok := h.byRoom[ev.RoomID]; !ok {
		h.byRoom[ev.RoomID] = make(map[*Client]struct{})
	}
	h.byRoom[ev.RoomID][c] = struct{}{}
	h.mu.Unlock()

	if err := h.rooms.SetPresence(ctx, ev.RoomID, c.userID, true); err != nil {
		logger.Errorf("ws set presence room=%d user=%d: %v", ev.RoomID, c.userID, err)
	}

	h.broadcastToRoom(ev.RoomID, OutgoingEvent{Type: EventUserJoined, Payload: UserJoinedPayload{
		RoomID: ev.RoomID,
		UserID: c.userID,
		User:   p.User,
	}}, c)
}

func (h *Hub) handleLeaveRoom(ctx context.Context, c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleLeaveRoom", time.Now())()
	if ev.RoomID == 0 {
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "roomId required"}})
		return
	}

	h.mu.Lock()
	if _, subscribed := c.rooms[ev.RoomID]; !subscribed {
		h.mu.Unlock()
		return
	}
	delete(c.rooms, ev.RoomID)
	if set, ok := h.byRoom[ev.RoomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byRoom, ev.RoomID)
		}
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.rooms.SetPresence(ctx, ev.RoomID, c.userID, false); err != nil {
		logger.Errorf("ws set presence room=%d user=%d: %v", ev.RoomID, c.userID, err)
	}

	h.broadcastToRoom(ev.RoomID, OutgoingEvent{Type: EventUserLeft, Payload: UserLeftPayload{
		RoomID: ev.RoomID,
		UserID: c.userID,
	}}, c)
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleSendMessage", time.Now())()
	if ev.RoomID == 0 {
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "roomId required"}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.messages.Send(ctx, chat.SendInput{
		RoomID:   ev.RoomID,
		SenderID: c.userID,
		Content:  ev.MessageContent,
		Type:     ev.MessageType,
		FileURL:  ev.FileURL,
		FileName: ev.FileName,
		FileSize: ev.FileSize,
		FileType: ev.FileType,
		ReplyTo:  ev.ReplyToMessageID,
	})
	if err != nil {
		h.sendToClient(c, OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: sendErrorText(err)}})
		return
	}

	h.BroadcastMessage(ctx, m)
}

// BroadcastMessage рассылает сохранённое сообщение всем подписчикам комнаты,
// включая отправителя, и шлёт пуши оффлайн-участникам. Используется и
// socket-, и REST-транспортом: побочные эффекты отправки едины.
func (h *Hub) BroadcastMessage(ctx context.Context, m *model.Message) {
	h.broadcastToRoom(m.RoomID, OutgoingEvent{Type: EventReceiveMessage, Payload: m}, nil)

	if h.push == nil {
		return
	}
	roster, err := h.rooms.Roster(ctx, m.RoomID)
	if err != nil {
		logger.Errorf("ws roster room=%d: %v", m.RoomID, err)
		return
	}

	title := "Новое сообщение"
	if m.Sender != nil && m.Sender.Username != "" {
		title = m.Sender.Username
	}
	body := m.Content
	if m.Type != model.MessageTypeText || body == "" {
		body = "Вложение"
	}
	if len(body) > 120 {
		body = body[:117] + "..."
	}
	data := map[string]string{
		"room_id":    formatID(m.RoomID),
		"message_id": formatID(m.ID),
	}
	for _, p := range roster {
		if p.UserID == m.SenderID || p.IsOnline {
			continue
		}
		uid := p.UserID
		go h.push.Notify(context.Background(), uid, title, body, data)
	}
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, ev IncomingEvent) {
	if !h.isSubscribed(c, ev.RoomID) {
		return
	}
	h.broadcastToRoom(ev.RoomID, OutgoingEvent{Type: EventUserTyping, Payload: TypingPayload{
		RoomID:   ev.RoomID,
		UserID:   c.userID,
		UserName: c.username,
	}}, c)
}

func (h *Hub) handleStopTyping(ctx context.Context, c *Client, ev IncomingEvent) {
	if !h.isSubscribed(c, ev.RoomID) {
		return
	}
	h.broadcastToRoom(ev.RoomID, OutgoingEvent{Type: EventUserStoppedTyping, Payload: StoppedTypingPayload{
		RoomID: ev.RoomID,
		UserID: c.userID,
	}}, c)
}

func (h *Hub) isSubscribed(c *Client, roomID int64) bool {
	if roomID == 0 {
		return false
	}
	h.mu.RLock()
	_, ok := c.rooms[roomID]
	h.mu.RUnlock()
	return ok
}

// broadcastToRoom шлёт событие всем подписчикам комнаты; skip исключается
// (nil — доставить всем, включая инициатора).
func (h *Hub) broadcastToRoom(roomID int64, ev OutgoingEvent, skip *Client) {
	h.mu.RLock()
	set, ok := h.byRoom[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(set))
	for c := range set {
		if c == skip {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	logger.Debugf("ws broadcast room=%d type=%s targets=%d", roomID, ev.Type, len(targets))
	for _, c := range targets {
		h.sendToClient(c, ev)
	}
}

func (h *Hub) sendToClient(c *Client, ev OutgoingEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%d", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrValidation):
		return "invalid message"
	case errors.Is(err, chat.ErrAccessDenied):
		return "not a participant"
	case errors.Is(err, chat.ErrNotAuthorized):
		return "read-only access"
	default:
		logger.Errorf("ws send message: %v", err)
		return "failed to send message"
	}
}
