package qa_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicegate/internal/infra/qa"
)

func TestClient_AcceptedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"raw json string", `"Refunds within 30 days."`, "Refunds within 30 days."},
		{"text field", `{"text":"Refunds within 30 days."}`, "Refunds within 30 days."},
		{"answer field", `{"answer":"Refunds within 30 days."}`, "Refunds within 30 days."},
		{"result field", `{"result":"Refunds within 30 days."}`, "Refunds within 30 days."},
		{"array of strings", `["Refunds within 30 days.","extra"]`, "Refunds within 30 days."},
		{"array of objects", `[{"text":"Refunds within 30 days."}]`, "Refunds within 30 days."},
		{"nested data text", `{"data":{"text":"Refunds within 30 days."}}`, "Refunds within 30 days."},
		{"nested data answer", `{"data":{"answer":"Refunds within 30 days."}}`, "Refunds within 30 days."},
		{"plain text body", `Refunds within 30 days.`, "Refunds within 30 days."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := qa.NewClient(srv.URL, "")
			got, err := c.Answer(context.Background(), "what is the refund policy")
			if err != nil {
				t.Fatalf("answer: %v", err)
			}
			if got != tt.want {
				t.Errorf("answer: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_UnrecognizedShapeIsLabeled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"done","payload":42}`))
	}))
	defer srv.Close()

	c := qa.NewClient(srv.URL, "")
	got, err := c.Answer(context.Background(), "question")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.HasPrefix(got, "Unrecognized answer payload:") {
		t.Errorf("answer: got %q, want labeled unrecognized payload", got)
	}
}

func TestClient_SendsQuestionAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer qa-key" {
			t.Errorf("authorization header: got %q", got)
		}
		var req struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Question != "what is the refund policy" {
			t.Errorf("question: got %q", req.Question)
		}
		w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer srv.Close()

	c := qa.NewClient(srv.URL, "qa-key")
	if _, err := c.Answer(context.Background(), "what is the refund policy"); err != nil {
		t.Fatalf("answer: %v", err)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := qa.NewClient(srv.URL, "")
	if _, err := c.Answer(context.Background(), "question"); err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}
