package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/repository"
	"github.com/nasirmalek/FamilyCircle/internal/repository/sqldb"
	"github.com/nasirmalek/FamilyCircle/internal/service"
	"github.com/nasirmalek/FamilyCircle/internal/storetest"
	"github.com/nasirmalek/FamilyCircle/internal/viewmodel"
)

var testSecret = []byte("test-secret")

type fixture struct {
	handler  http.Handler
	svc      *service.Service
	familyID string
	users    map[string]string
	chatID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := storetest.New(t)
	svc := service.New(storetest.Logger(), nil,
		sqldb.NewChatRepository(b),
		sqldb.NewMessageRepository(b),
		sqldb.NewProfileRepository(b),
		sqldb.NewFamilyRepository(b),
	)

	f := &fixture{
		svc:      svc,
		familyID: storetest.Family(t, b, "Smith Family"),
		users:    map[string]string{},
	}
	for _, name := range []string{"Mom", "Dad", "Sarah", "Stranger"} {
		f.users[name] = storetest.Profile(t, b, name)
		if name != "Stranger" {
			storetest.Member(t, b, f.familyID, f.users[name])
		}
	}

	chat, err := svc.CreateChat(context.Background(), service.CreateChatInput{
		Kind:      models.ChatTypeDirect,
		MemberIDs: []string{f.users["Dad"]},
		FamilyID:  f.familyID,
		CreatorID: f.users["Mom"],
	})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	f.chatID = chat.ID

	f.handler = NewServer(svc, testSecret, storetest.Logger()).Handler()
	return f
}

func (f *fixture) token(t *testing.T, user string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, f.users[user], time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(t, user))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		user   string
		path   string
		status int
	}{
		{"no token", "", "/api/families/" + f.familyID + "/chats", http.StatusUnauthorized},
		{"member lists chats", "Mom", "/api/families/" + f.familyID + "/chats", http.StatusOK},
		{"outsider lists chats", "Stranger", "/api/families/" + f.familyID + "/chats", http.StatusForbidden},
		{"participant reads chat", "Dad", "/api/chats/" + f.chatID, http.StatusOK},
		{"non participant reads chat", "Sarah", "/api/chats/" + f.chatID + "/messages", http.StatusForbidden},
		{"healthz is public", "", "/healthz", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.user, http.MethodGet, tt.path, nil)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestInvalidToken(t *testing.T) {
	f := newFixture(t)

	other, err := IssueToken([]byte("other-secret"), f.users["Mom"], time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	expired, err := IssueToken(testSecret, f.users["Mom"], -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	for _, tok := range []string{other, expired, "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/api/families/"+f.familyID+"/chats", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	}
}

func TestCreateChatEndpoint(t *testing.T) {
	f := newFixture(t)
	path := "/api/families/" + f.familyID + "/chats"

	rec := f.do(t, "Mom", http.MethodPost, path, map[string]any{
		"type": "group", "name": "   ", "member_ids": []string{f.users["Dad"]},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank group name status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["error"]; got != service.ErrMsgNoGroupName {
		t.Errorf("error = %q, want %q", got, service.ErrMsgNoGroupName)
	}

	rec = f.do(t, "Mom", http.MethodPost, path, map[string]any{
		"type": "direct", "member_ids": []string{"missing-user"},
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("backend failure status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["error"]; got != service.CreateChatFailedMsg {
		t.Errorf("error = %q, want %q", got, service.CreateChatFailedMsg)
	}

	rec = f.do(t, "Mom", http.MethodPost, path, map[string]any{
		"type": "group", "name": "Ski Trip 2025", "member_ids": []string{f.users["Dad"], f.users["Sarah"]},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body %s)", rec.Code, rec.Body.String())
	}
	chat := decode[models.Chat](t, rec)
	if len(chat.Participants) != 3 || chat.Participants[0].UserID != f.users["Mom"] {
		t.Errorf("participants = %v", chat.ParticipantIDs())
	}

	rec = f.do(t, "Mom", http.MethodGet, path, nil)
	items := decode[[]viewmodel.ChatListItem](t, rec)
	if len(items) != 2 || items[0].Name != "Ski Trip 2025" {
		t.Fatalf("chat list = %+v", items)
	}
	if items[1].Name != "Dad" || items[1].LastMessage != viewmodel.NoMessagesPlaceholder {
		t.Errorf("direct chat row = %+v, want Dad without messages", items[1])
	}
}

func TestChatListHidesOtherChats(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.SendMessage(context.Background(), f.chatID, "private to Dad", f.users["Mom"]); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	path := "/api/families/" + f.familyID + "/chats"

	rec := f.do(t, "Sarah", http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if items := decode[[]viewmodel.ChatListItem](t, rec); len(items) != 0 {
		t.Errorf("Sarah sees %+v, want no chats", items)
	}

	rec = f.do(t, "Dad", http.MethodGet, path, nil)
	items := decode[[]viewmodel.ChatListItem](t, rec)
	if len(items) != 1 || items[0].LastMessage != "private to Dad" {
		t.Errorf("Dad sees %+v, want the direct chat", items)
	}
}

// partialChats fails every chat creation as if the rollback had failed.
type partialChats struct {
	repository.ChatRepository
}

func (partialChats) CreateGroup(ctx context.Context, familyID, name string, ids []string) (*models.Chat, error) {
	return nil, &models.PartialWriteError{ChatID: "orphan-1", Err: errors.New("rollback failed")}
}

func TestCreateChatPartialWrite(t *testing.T) {
	b := storetest.New(t)
	familyID := storetest.Family(t, b, "Smith Family")
	mom := storetest.Profile(t, b, "Mom")
	dad := storetest.Profile(t, b, "Dad")
	storetest.Member(t, b, familyID, mom)
	storetest.Member(t, b, familyID, dad)

	svc := service.New(storetest.Logger(), nil,
		partialChats{sqldb.NewChatRepository(b)},
		sqldb.NewMessageRepository(b),
		sqldb.NewProfileRepository(b),
		sqldb.NewFamilyRepository(b),
	)
	handler := NewServer(svc, testSecret, storetest.Logger()).Handler()

	body := strings.NewReader(`{"type":"group","name":"Ski Trip 2025","member_ids":["` + dad + `"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/families/"+familyID+"/chats", body)
	tok, err := IssueToken(testSecret, mom, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["error"]; got != service.CreateChatFailedMsg {
		t.Errorf("error = %q, want %q", got, service.CreateChatFailedMsg)
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	f := newFixture(t)
	path := "/api/chats/" + f.chatID + "/messages"

	rec := f.do(t, "Mom", http.MethodPost, path, map[string]string{"content": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank content status = %d", rec.Code)
	}

	rec = f.do(t, "Mom", http.MethodPost, path, map[string]string{"content": "Hello"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d (body %s)", rec.Code, rec.Body.String())
	}

	rec = f.do(t, "Dad", http.MethodGet, path, nil)
	bubbles := decode[[]viewmodel.Bubble](t, rec)
	if len(bubbles) != 1 {
		t.Fatalf("bubbles = %+v", bubbles)
	}
	if b := bubbles[0]; b.Content != "Hello" || b.IsOwn || b.SenderName != "Mom" {
		t.Errorf("bubble seen by Dad = %+v", b)
	}

	rec = f.do(t, "Dad", http.MethodGet, "/api/chats/"+f.chatID, nil)
	resp := decode[chatResponse](t, rec)
	if resp.Header.Subtitle != "Active" {
		t.Errorf("header = %+v", resp.Header)
	}
}

func TestChatSocket(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chats/" + f.chatID + "/ws?token=" + f.token(t, "Mom")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(clientEvent{Event: EventSend, Content: "Hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev serverEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Event == EventError {
			t.Fatalf("server error: %s", ev.Error)
		}
		if ev.State == nil || len(ev.State.Messages) == 0 {
			continue
		}
		last := ev.State.Messages[len(ev.State.Messages)-1]
		if last.Content == "Hello" && last.IsOwn {
			if ev.State.SendError != "" {
				t.Errorf("SendError = %q", ev.State.SendError)
			}
			return
		}
	}
}

func TestChatSocketRejectsOutsider(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chats/" + f.chatID + "/ws?token=" + f.token(t, "Sarah")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded for a non participant")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestSocketSendErrorLogsClosedConnection(t *testing.T) {
	l, hook := logtest.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)

	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		accepted <- conn
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	conn := <-accepted
	conn.Close()

	sock := &socket{conn: conn, log: logrus.NewEntry(l)}
	sock.sendError("unknown event ping")

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.DebugLevel || entry.Message != "failed to send error event" {
		t.Fatalf("log entry = %+v, want debug write failure", entry)
	}
	if entry.Data[logrus.ErrorKey] == nil {
		t.Errorf("log entry has no error field")
	}
}
