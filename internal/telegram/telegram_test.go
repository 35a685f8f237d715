package telegram

import (
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetUpdates_MapsCallbackQueryToMessage(t *testing.T) {
	var answered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/getUpdates":
			_, _ = io.WriteString(w, `{"ok":true,"result":[{"update_id":11,"callback_query":{"id":"cb-1","data":"resource:slides","message":{"chat":{"id":123},"date":1700000000}}}]}`)
		case "/answerCallbackQuery":
			answered = true
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	updates, err := c.GetUpdates(0, 0)
	if err != nil {
		t.Fatalf("GetUpdates failed: %v", err)
	}
	if len(updates) != 1 || updates[0].Message == nil || updates[0].Message.Text == nil {
		t.Fatalf("unexpected updates: %#v", updates)
	}
	if *updates[0].Message.Text != "resource:slides" {
		t.Fatalf("unexpected callback mapped text: %q", *updates[0].Message.Text)
	}
	if !answered {
		t.Fatal("expected answerCallbackQuery to be called")
	}
}

func TestGetUpdates_PlainMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getUpdates" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("offset"); got != "5" {
			t.Errorf("unexpected offset: %s", got)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":[{"update_id":5,"message":{"chat":{"id":77},"text":"hello","date":1700000000}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	updates, err := c.GetUpdates(5, 0)
	if err != nil {
		t.Fatalf("GetUpdates failed: %v", err)
	}
	if len(updates) != 1 || *updates[0].Message.Text != "hello" {
		t.Fatalf("unexpected updates: %#v", updates)
	}
	if updates[0].Message.Chat.ID != 77 {
		t.Fatalf("unexpected chat id: %d", updates[0].Message.Chat.ID)
	}
}

func TestSendResourceMenu_SendsInlineKeyboard(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendMessage" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	err := c.SendResourceMenu(123, "pick one", []Resource{
		{Label: "Slides", Callback: "resource:slides"},
		{Label: "Extra", Callback: "resource:extra"},
	})
	if err != nil {
		t.Fatalf("SendResourceMenu failed: %v", err)
	}
	if !strings.Contains(gotBody, `"inline_keyboard"`) {
		t.Fatalf("expected inline keyboard payload, got: %s", gotBody)
	}
	if !strings.Contains(gotBody, `"resource:slides"`) || !strings.Contains(gotBody, `"resource:extra"`) {
		t.Fatalf("expected resource callbacks, got: %s", gotBody)
	}
	if !strings.Contains(gotBody, `"pick one"`) {
		t.Fatalf("expected prompt text, got: %s", gotBody)
	}
}

func TestSendDocument_UploadsMultipart(t *testing.T) {
	var gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendDocument" {
			http.NotFound(w, r)
			return
		}
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	if err := c.SendDocument(123, "course.pdf", []byte("pdf bytes"), "here you go"); err != nil {
		t.Fatalf("SendDocument failed: %v", err)
	}

	mediaType, _, err := mime.ParseMediaType(gotContentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("unexpected content type: %s", gotContentType)
	}
	if !strings.Contains(gotBody, `filename="course.pdf"`) {
		t.Fatalf("expected filename in form, got: %s", gotBody)
	}
	if !strings.Contains(gotBody, "pdf bytes") {
		t.Fatalf("expected file bytes in form, got: %s", gotBody)
	}
	if !strings.Contains(gotBody, "here you go") {
		t.Fatalf("expected caption in form, got: %s", gotBody)
	}
}

func TestSendDocument_RejectedByAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"result":null}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	if err := c.SendDocument(123, "course.pdf", []byte("x"), ""); err == nil {
		t.Fatal("expected error for rejected upload")
	}
}
