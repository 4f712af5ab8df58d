package coach

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/piwrite/studio/internal/domain"
)

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPClient(ClientConfig{}, nil); err == nil {
		t.Fatal("Expected error for empty base URL")
	}
}

func TestInvokeRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agents/invoke" {
			t.Errorf("Path = %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Method = %q", r.Method)
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.TriggerKind != TriggerPeriodicCheck {
			t.Errorf("TriggerKind = %q", req.TriggerKind)
		}
		if req.Stage != domain.StageDrafting {
			t.Errorf("Stage = %q", req.Stage)
		}

		resp := Response{
			Messages:         []domain.Message{{Role: "ai", Content: "Keep going!"}},
			SuggestedPrompts: []string{"Add details"},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("Failed to encode response: %v", err)
		}
	}))
	defer srv.Close()

	client, err := NewHTTPClient(ClientConfig{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}

	resp, err := client.Invoke(context.Background(), Request{
		DocumentID:   "doc-1",
		Stage:        domain.StageDrafting,
		TriggerKind:  TriggerPeriodicCheck,
		DocumentText: "<p>a draft</p>",
	})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}

	reply, ok := resp.AssistantReply()
	if !ok || reply != "Keep going!" {
		t.Errorf("AssistantReply() = %q, %v", reply, ok)
	}
}

func TestInvokeBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(ClientConfig{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}

	_, err = client.Invoke(context.Background(), Request{DocumentID: "doc-1"})
	if !errors.Is(err, ErrBadStatus) {
		t.Errorf("Expected ErrBadStatus, got %v", err)
	}
}

func TestInvokeUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client, err := NewHTTPClient(ClientConfig{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}

	_, err = client.Invoke(context.Background(), Request{DocumentID: "doc-1"})
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("Expected ErrUnreachable, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agents/history/doc-1" {
			t.Errorf("Path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(ClientConfig{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}

	msgs, err := client.History(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "hello" {
		t.Errorf("Got messages %+v", msgs)
	}
}

func TestAssistantReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		resp   *Response
		want   string
		wantOK bool
	}{
		{"nil response", nil, "", false},
		{"no messages", &Response{}, "", false},
		{
			"trailing assistant",
			&Response{Messages: []domain.Message{
				{Role: domain.RoleUser, Content: "hi"},
				{Role: domain.RoleAssistant, Content: "hello"},
			}},
			"hello", true,
		},
		{
			"ai role accepted",
			&Response{Messages: []domain.Message{{Role: "ai", Content: "hey"}}},
			"hey", true,
		},
		{
			"trailing user ignored",
			&Response{Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}}},
			"", false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.resp.AssistantReply()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("AssistantReply() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
