package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPublishReport(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("token", "42").WithEndpoint(srv.URL)
	if err := n.PublishReport(context.Background(), "inserted=3"); err != nil {
		t.Fatalf("PublishReport: %v", err)
	}
	if gotPath != "/bottoken/sendMessage" || gotChat != "42" || gotText != "inserted=3" {
		t.Fatalf("unexpected request %s chat=%s text=%s", gotPath, gotChat, gotText)
	}
}

func TestPublishReportServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier("token", "42").WithEndpoint(srv.URL)
	if err := n.PublishReport(context.Background(), "x"); err == nil {
		t.Fatalf("expected error on non-200 status")
	}
}

func TestPublishReportMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "").PublishReport(context.Background(), "x"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", messageLimit)
	got := truncate(long, messageLimit)
	if len(got) > messageLimit {
		t.Fatalf("truncated message too long: %d bytes", len(got))
	}
	if !utf8.ValidString(got) || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated message must stay valid UTF-8 and end with an ellipsis")
	}
	if truncate("short", messageLimit) != "short" {
		t.Fatalf("short messages must be kept")
	}
}
