package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeServer is an in-memory chat server speaking the REST surface.
type fakeServer struct {
	mu       sync.Mutex
	keys     map[string]string
	messages []*Envelope
}

func newFakeServer() *fakeServer {
	return &fakeServer{keys: make(map[string]string)}
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()

	switch {
	case r.URL.Path == "/api/users/public-key" && r.Method == http.MethodGet:
		pk, ok := s.keys[q.Get("username")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "User not found"})
			return
		}
		json.NewEncoder(w).Encode(PublicKeyRecord{Username: q.Get("username"), PublicKey: pk})

	case r.URL.Path == "/api/users/public-key" && r.Method == http.MethodPost:
		var rec PublicKeyRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec.Username == "" || rec.PublicKey == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "Username and public key are required"})
			return
		}
		s.keys[rec.Username] = rec.PublicKey
		json.NewEncoder(w).Encode(map[string]bool{"success": true})

	case r.URL.Path == "/api/send-message" && r.Method == http.MethodPost:
		var env Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.messages = append(s.messages, &env)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "id": env.ID})

	case r.URL.Path == "/api/users" && r.Method == http.MethodGet:
		out := []map[string]any{}
		for name, pk := range s.keys {
			out = append(out, map[string]any{"username": name, "publicKey": pk, "createdAt": "2024-01-01T00:00:00.000Z"})
		}
		out = append(out, map[string]any{"username": "nokey", "publicKey": nil})
		json.NewEncoder(w).Encode(out)

	case r.URL.Path == "/api/messages" && r.Method == http.MethodGet:
		out := []*Envelope{}
		if user := q.Get("user"); user != "" {
			for _, m := range s.messages {
				if m.To == user {
					out = append(out, m)
				}
			}
		} else {
			u1, u2 := q.Get("user1"), q.Get("user2")
			if u1 == "" || u2 == "" {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "Both user1 and user2 are required"})
				return
			}
			for _, m := range s.messages {
				if (m.From == u1 && m.To == u2) || (m.From == u2 && m.To == u1) {
					out = append(out, m)
				}
			}
		}
		json.NewEncoder(w).Encode(out)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	fake := newFakeServer()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := New(server.URL, WithRetry(NoRetry()))
	if err != nil {
		t.Fatal(err)
	}
	return client, fake
}

func TestClient_PublicKeyRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if err := client.PutPublicKey(ctx, "bob", "cGs="); err != nil {
		t.Fatalf("PutPublicKey() error = %v", err)
	}

	pk, err := client.PublicKey(ctx, "bob")
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	if pk != "cGs=" {
		t.Errorf("PublicKey() = %q, want cGs=", pk)
	}
}

func TestClient_PublicKey_NotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.PublicKey(context.Background(), "nobody")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestClient_PutPublicKey_BadRequest(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.PutPublicKey(context.Background(), "", "")
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestClient_PublicKey_QueryEscaping(t *testing.T) {
	client, fake := newTestClient(t)
	fake.keys["a b&c"] = "eA=="

	pk, err := client.PublicKey(context.Background(), "a b&c")
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	if pk != "eA==" {
		t.Errorf("PublicKey() = %q", pk)
	}
}

func TestClient_SendAndList(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	envs := []*Envelope{
		{ID: "1", From: "alice", To: "bob", Ciphertext: "Y3Q=", IV: "aXY=", Type: "text", Timestamp: ts},
		{ID: "2", From: "bob", To: "alice", Ciphertext: "Y3Q=", IV: "aXY=", Type: "text", Timestamp: ts.Add(time.Second)},
		{ID: "3", From: "carol", To: "bob", EncryptedFile: "Zg==", IV: "aXY=", Type: "file", FileName: "a.txt", Timestamp: ts},
	}
	for _, e := range envs {
		if err := client.SendMessage(ctx, e); err != nil {
			t.Fatalf("SendMessage(%s) error = %v", e.ID, err)
		}
	}

	conv, err := client.Conversation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("Conversation() error = %v", err)
	}
	if len(conv) != 2 {
		t.Fatalf("Conversation() returned %d envelopes, want 2", len(conv))
	}
	if !conv[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", conv[0].Timestamp, ts)
	}

	inbox, err := client.Inbox(ctx, "bob")
	if err != nil {
		t.Fatalf("Inbox() error = %v", err)
	}
	if len(inbox) != 2 {
		t.Fatalf("Inbox() returned %d envelopes, want 2", len(inbox))
	}
	if inbox[1].FileName != "a.txt" || inbox[1].EncryptedFile != "Zg==" {
		t.Errorf("file envelope not preserved: %+v", inbox[1])
	}
}

func TestClient_SendMessage_Replies(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"success flag", 200, `{"success":true,"id":"x"}`, nil},
		{"message only", 200, `{"message":"Message sent successfully","encrypted":true}`, nil},
		{"file message only", 200, `{"message":"File sent successfully","encrypted":true}`, nil},
		{"empty body", 201, ``, nil},
		{"explicit rejection", 200, `{"success":false}`, ErrMessageRejected},
		{"rejection with reason", 200, `{"success":false,"error":"quota"}`, ErrMessageRejected},
		{"missing fields", 400, `{"error":"Missing required fields"}`, ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := New(server.URL, WithRetry(NoRetry()))
			err := client.SendMessage(context.Background(), &Envelope{ID: "x", From: "alice", To: "bob"})
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("SendMessage() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SendMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Users(t *testing.T) {
	client, fake := newTestClient(t)
	fake.keys["alice"] = "a-key"
	fake.keys["bob"] = "b-key"

	users, err := client.Users(context.Background())
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	got := map[string]string{}
	for _, u := range users {
		got[u.Username] = u.PublicKey
	}
	if len(got) != 3 || got["alice"] != "a-key" || got["bob"] != "b-key" || got["nokey"] != "" {
		t.Errorf("Users() = %+v", users)
	}
}

func TestClient_Inbox_PairOnlyServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("user1") == "" || q.Get("user2") == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "Both user1 and user2 are required"})
			return
		}
		json.NewEncoder(w).Encode([]*Envelope{})
	}))
	defer server.Close()

	client, _ := New(server.URL, WithRetry(NoRetry()))
	_, err := client.Inbox(context.Background(), "bob")
	if !IsMissingEndpoint(err) {
		t.Errorf("Inbox() error = %v, want a missing-endpoint error", err)
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Error("400 on a message route should not match ErrUserNotFound")
	}
}

func TestClient_Inbox_MissingEndpointIsNotUserNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client, _ := New(server.URL)
	_, err := client.Inbox(context.Background(), "bob")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Error("404 on a message route should not match ErrUserNotFound")
	}
}
