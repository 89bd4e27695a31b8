package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_SendMessage(t *testing.T) {
	var gotAuth string
	var gotReq request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reply":"Reduza custos fixos."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	history := []Message{
		{Role: RoleUser, Content: "Como melhorar meu caixa?"},
	}
	reply, err := c.SendMessage(context.Background(), history)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply != "Reduza custos fixos." {
		t.Errorf("reply = %q", reply)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != RoleUser {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestClient_SendMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"model unavailable"}`, "status 500: model unavailable"},
		{"plain text error", http.StatusBadGateway, "bad gateway", "status 502: bad gateway"},
		{"empty reply", http.StatusOK, `{"reply":"  "}`, ErrEmptyReply.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "").SendMessage(context.Background(), []Message{{Role: RoleUser, Content: "oi"}})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestClient_MessageFieldFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("no token configured, no Authorization header expected")
		}
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	reply, err := NewClient(srv.URL, "").SendMessage(context.Background(), []Message{{Role: RoleUser, Content: "oi"}})
	if err != nil || reply != "ok" {
		t.Errorf("SendMessage() = %q, %v", reply, err)
	}
}

func TestClient_EmptyConversation(t *testing.T) {
	_, err := NewClient("http://unused", "").SendMessage(context.Background(), nil)
	if !errors.Is(err, ErrEmptyConversation) {
		t.Errorf("error = %v, want ErrEmptyConversation", err)
	}
}
