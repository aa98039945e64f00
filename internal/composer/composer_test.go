package composer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

type fakeSource struct {
	msg *domain.MailMessage
	err error
}

func (f *fakeSource) GetMessage(_ context.Context, id string) (*domain.MailMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.msg, nil
}

type fakeBoard struct {
	listID string
	input  domain.CardInput
	fail   bool
	calls  int
}

func (f *fakeBoard) CreateCard(_ context.Context, listID string, in domain.CardInput) (*domain.TaskCard, bool) {
	f.calls++
	f.listID = listID
	f.input = in
	if f.fail {
		return nil, false
	}
	return &domain.TaskCard{ID: "card-1", Title: in.Name, Description: in.Description, Due: in.Due, ListID: listID}, true
}

type panickyExtractor struct{}

func (panickyExtractor) ExtractDue(string, *time.Location) *time.Time { panic("boom") }
func (panickyExtractor) ExtractAction(string) string                  { return "" }

func newTestComposer(src MessageSource, ex Extractor) *Composer {
	return New(src, ex, time.UTC, logger.New("error", false))
}

func TestCreateTaskFromMessage(t *testing.T) {
	src := &fakeSource{msg: &domain.MailMessage{
		ID:      "m1",
		From:    "Alice <alice@example.com>",
		Subject: "Quarterly report",
		Snippet: "Please send the figures before 03/14/2025 at 2:30pm. Thanks",
	}}
	board := &fakeBoard{}

	card, ok := newTestComposer(src, nil).CreateTaskFromMessage(context.Background(), "m1", board, "list-9")
	if !ok || card == nil {
		t.Fatalf("CreateTaskFromMessage() = (%v, %v), want card", card, ok)
	}
	if board.listID != "list-9" {
		t.Errorf("listID = %q, want list-9", board.listID)
	}
	if board.input.Name != "Quarterly report" {
		t.Errorf("Name = %q", board.input.Name)
	}
	if board.input.Due == nil {
		t.Fatal("Due = nil, want 2025-03-14 14:30")
	}
	if h, m := board.input.Due.Hour(), board.input.Due.Minute(); h != 14 || m != 30 {
		t.Errorf("due time = %02d:%02d, want 14:30", h, m)
	}

	want := "Re: Quarterly report\nFrom: Alice <alice@example.com>\nAction: send the figures before 03/14/2025 at 2:30pm\nDue: Fri, Mar 14, 2025 2:30 PM"
	if board.input.Description != want {
		t.Errorf("Description =\n%q\nwant\n%q", board.input.Description, want)
	}
}

func TestCreateTaskFromMessageWithoutDate(t *testing.T) {
	src := &fakeSource{msg: &domain.MailMessage{ID: "m2", From: "bob", Subject: "Hello", Snippet: "just saying hi"}}
	board := &fakeBoard{}

	card, ok := newTestComposer(src, nil).CreateTaskFromMessage(context.Background(), "m2", board, "l")
	if !ok {
		t.Fatal("CreateTaskFromMessage() failed")
	}
	if card.Due != nil || board.input.Due != nil {
		t.Errorf("Due = %v, want nil", board.input.Due)
	}
	if board.input.Description != "Re: Hello\nFrom: bob\n" {
		t.Errorf("Description = %q", board.input.Description)
	}
}

func TestCreateTaskFromMessageFailuresAreAbsent(t *testing.T) {
	okMsg := &domain.MailMessage{ID: "m", Subject: "s", Snippet: "x"}

	tests := []struct {
		name   string
		src    *fakeSource
		board  *fakeBoard
		listID string
		ex     Extractor
	}{
		{name: "fetch fails", src: &fakeSource{err: errors.New("HTTP 500")}, board: &fakeBoard{}, listID: "l"},
		{name: "create fails", src: &fakeSource{msg: okMsg}, board: &fakeBoard{fail: true}, listID: "l"},
		{name: "no list", src: &fakeSource{msg: okMsg}, board: &fakeBoard{}, listID: ""},
		{name: "extractor panics", src: &fakeSource{msg: okMsg}, board: &fakeBoard{}, listID: "l", ex: panickyExtractor{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, ok := newTestComposer(tt.src, tt.ex).CreateTaskFromMessage(context.Background(), "m", tt.board, tt.listID)
			if ok || card != nil {
				t.Errorf("CreateTaskFromMessage() = (%v, %v), want (nil, false)", card, ok)
			}
		})
	}
}

func TestDescribeOmitsEmptyParts(t *testing.T) {
	got := Describe(&domain.MailMessage{Subject: "S", From: "F"}, "call back", nil)
	if !strings.HasSuffix(got, "Action: call back\n") || strings.Contains(got, "Due:") {
		t.Errorf("Describe() = %q", got)
	}
}
