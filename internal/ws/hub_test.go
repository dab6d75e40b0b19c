package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/testutil"
)

// hubFixture поднимает hub над in-memory хранилищем и httptest-сервером,
// который апгрейдит соединение так же, как боевой обработчик (пользователь
// берётся из query, аутентификация здесь не предмет теста).
type hubFixture struct {
	db   *testutil.DB
	hub  *Hub
	srv  *httptest.Server
	room *model.Room
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	ctx := context.Background()

	db := testutil.NewDB()
	db.AddUser(1, "owner", model.GlobalRoleParticipant)
	db.AddUser(2, "bob", model.GlobalRoleParticipant)
	db.AddUser(3, "reader", model.GlobalRoleParticipant)
	db.AddUser(9, "outsider", model.GlobalRoleParticipant)

	rooms := chat.NewRoomService(db.Rooms(), db.Participants(), db.Users(), 0)
	room, err := rooms.CreateRoom(ctx, 1, chat.CreateRoomInput{Name: "general"})
	require.NoError(t, err)
	for _, id := range []int64{2, 3} {
		_, err = rooms.JoinRoom(ctx, room.ID, id)
		require.NoError(t, err)
	}
	db.GrantPermission(room.ID, 2, model.PermissionReadWrite)

	resolver := chat.NewResolver(db.Participants(), db.Permissions())
	messages := chat.NewMessageService(db.Messages(), resolver)

	hub := NewHub(rooms, messages, 0, nil)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64)
		if err != nil || uid == 0 {
			http.Error(w, "bad uid", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cctx, cancel := context.WithCancel(context.Background())
		client := NewClient(hub, conn, uid, r.URL.Query().Get("name"))
		client.Start(cctx, cancel)
		hub.Register(client)
	}))

	t.Cleanup(func() {
		hubCancel()
		<-hub.done
		srv.Close()
	})
	return &hubFixture{db: db, hub: hub, srv: srv, room: room}
}

func (f *hubFixture) dial(t *testing.T, userID int64, username string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") +
		"/?uid=" + strconv.FormatInt(userID, 10) + "&name=" + username
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type recvEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn) recvEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev recvEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func sendEvent(t *testing.T, conn *websocket.Conn, ev IncomingEvent) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ev))
}

// joinAndWait подписывает соединение на комнату и дожидается, пока hub это
// зафиксирует (ack инициатору не отправляется).
func (f *hubFixture) joinAndWait(t *testing.T, conn *websocket.Conn, want int) {
	t.Helper()
	sendEvent(t, conn, IncomingEvent{Type: EventJoinRoom, RoomID: f.room.ID})
	require.Eventually(t, func() bool {
		return f.subscribers(f.room.ID) >= want
	}, 3*time.Second, 10*time.Millisecond)
}

func (f *hubFixture) subscribers(roomID int64) int {
	f.hub.mu.RLock()
	defer f.hub.mu.RUnlock()
	return len(f.hub.byRoom[roomID])
}

func TestHub_JoinBroadcastsToOthers(t *testing.T) {
	f := newHubFixture(t)

	owner := f.dial(t, 1, "owner")
	f.joinAndWait(t, owner, 1)

	bob := f.dial(t, 2, "bob")
	f.joinAndWait(t, bob, 2)

	ev := readEvent(t, owner)
	assert.Equal(t, EventUserJoined, ev.Type)
	var p UserJoinedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, f.room.ID, p.RoomID)
	assert.Equal(t, int64(2), p.UserID)
	require.NotNil(t, p.User)
	assert.Equal(t, "bob", p.User.Username)

	// Сам вошедший user_joined не получает: его первое событие — эхо
	// собственного сообщения.
	sendEvent(t, bob, IncomingEvent{Type: EventSendMessage, RoomID: f.room.ID, MessageContent: "hello"})
	ev = readEvent(t, bob)
	assert.Equal(t, EventReceiveMessage, ev.Type)
}

func TestHub_JoinRequiresMembership(t *testing.T) {
	f := newHubFixture(t)

	outsider := f.dial(t, 9, "outsider")
	sendEvent(t, outsider, IncomingEvent{Type: EventJoinRoom, RoomID: f.room.ID})

	ev := readEvent(t, outsider)
	assert.Equal(t, EventError, ev.Type)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, "not a participant", p.Message)
	assert.Equal(t, 0, f.subscribers(f.room.ID))
}

func TestHub_SendMessageFanOut(t *testing.T) {
	f := newHubFixture(t)

	owner := f.dial(t, 1, "owner")
	f.joinAndWait(t, owner, 1)
	bob := f.dial(t, 2, "bob")
	f.joinAndWait(t, bob, 2)
	readEvent(t, owner) // user_joined от bob

	sendEvent(t, bob, IncomingEvent{Type: EventSendMessage, RoomID: f.room.ID, MessageContent: "first"})
	sendEvent(t, bob, IncomingEvent{Type: EventSendMessage, RoomID: f.room.ID, MessageContent: "second"})

	// Оба подписчика, включая отправителя, получают сообщения в порядке записи.
	for _, conn := range []*websocket.Conn{owner, bob} {
		for _, want := range []string{"first", "second"} {
			ev := readEvent(t, conn)
			require.Equal(t, EventReceiveMessage, ev.Type)
			var m model.Message
			require.NoError(t, json.Unmarshal(ev.Payload, &m))
			assert.Equal(t, want, m.Content)
			assert.Equal(t, int64(2), m.SenderID)
			require.NotNil(t, m.Sender)
			assert.Equal(t, "bob", m.Sender.Username)
		}
	}
}

func TestHub_SendMessageReadOnly(t *testing.T) {
	f := newHubFixture(t)

	reader := f.dial(t, 3, "reader")
	f.joinAndWait(t, reader, 1)

	sendEvent(t, reader, IncomingEvent{Type: EventSendMessage, RoomID: f.room.ID, MessageContent: "hi"})
	ev := readEvent(t, reader)
	assert.Equal(t, EventError, ev.Type)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, "read-only access", p.Message)
}

func TestHub_TypingExcludesSender(t *testing.T) {
	f := newHubFixture(t)

	owner := f.dial(t, 1, "owner")
	f.joinAndWait(t, owner, 1)
	bob := f.dial(t, 2, "bob")
	f.joinAndWait(t, bob, 2)
	readEvent(t, owner) // user_joined

	sendEvent(t, bob, IncomingEvent{Type: EventTyping, RoomID: f.room.ID})
	ev := readEvent(t, owner)
	require.Equal(t, EventUserTyping, ev.Type)
	var p TypingPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, int64(2), p.UserID)
	assert.Equal(t, "bob", p.UserName)

	// Себе typing не приходит: следующее событие bob — эхо его сообщения.
	sendEvent(t, bob, IncomingEvent{Type: EventSendMessage, RoomID: f.room.ID, MessageContent: "marker"})
	ev = readEvent(t, bob)
	assert.Equal(t, EventReceiveMessage, ev.Type)

	sendEvent(t, bob, IncomingEvent{Type: EventStopTyping, RoomID: f.room.ID})
	readEvent(t, owner) // receive_message "marker"
	ev = readEvent(t, owner)
	assert.Equal(t, EventUserStoppedTyping, ev.Type)
}

func TestHub_LeaveRoom(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	owner := f.dial(t, 1, "owner")
	f.joinAndWait(t, owner, 1)
	bob := f.dial(t, 2, "bob")
	f.joinAndWait(t, bob, 2)
	readEvent(t, owner) // user_joined

	sendEvent(t, bob, IncomingEvent{Type: EventLeaveRoom, RoomID: f.room.ID})
	ev := readEvent(t, owner)
	require.Equal(t, EventUserLeft, ev.Type)
	var p UserLeftPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, int64(2), p.UserID)

	require.Eventually(t, func() bool {
		part, err := f.db.Participants().Get(ctx, f.room.ID, 2)
		return err == nil && !part.IsOnline
	}, 3*time.Second, 10*time.Millisecond)
	// Членство в комнате при этом сохраняется.
	_, err := f.db.Participants().Get(ctx, f.room.ID, 2)
	assert.NoError(t, err)
}

func TestHub_DisconnectMarksOffline(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	owner := f.dial(t, 1, "owner")
	f.joinAndWait(t, owner, 1)
	bob := f.dial(t, 2, "bob")
	f.joinAndWait(t, bob, 2)
	readEvent(t, owner) // user_joined

	require.NoError(t, bob.Close())

	ev := readEvent(t, owner)
	require.Equal(t, EventUserLeft, ev.Type)
	var p UserLeftPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, int64(2), p.UserID)

	require.Eventually(t, func() bool {
		part, err := f.db.Participants().Get(ctx, f.room.ID, 2)
		return err == nil && !part.IsOnline
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.subscribers(f.room.ID))
}

func TestHub_UnknownEventType(t *testing.T) {
	f := newHubFixture(t)

	owner := f.dial(t, 1, "owner")
	sendEvent(t, owner, IncomingEvent{Type: "dance"})
	ev := readEvent(t, owner)
	assert.Equal(t, EventError, ev.Type)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, "unknown event type", p.Message)
}
