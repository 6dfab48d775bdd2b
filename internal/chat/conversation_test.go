package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type stubHandle struct {
	replies []string
	err     error
	sent    []string
}

func (s *stubHandle) Send(ctx context.Context, text string) (Reply, error) {
	s.sent = append(s.sent, text)
	if s.err != nil {
		return Reply{}, s.err
	}
	if len(s.replies) == 0 {
		return Reply{Text: "ok"}, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return Reply{Text: r}, nil
}

type recordingListener struct {
	appended []Message
	failures []error
}

func (l *recordingListener) MessageAppended(ctx context.Context, id uuid.UUID, m Message) {
	l.appended = append(l.appended, m)
}

func (l *recordingListener) SubmitFailed(ctx context.Context, id uuid.UUID, err error) {
	l.failures = append(l.failures, err)
}

func TestSubmit_Success(t *testing.T) {
	h := &stubHandle{replies: []string{"hi there"}}
	c := NewConversation(uuid.New(), h, nil)

	reply, err := c.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Role != RoleModel || reply.Content != "hi there" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != RoleModel || msgs[1].Content != "hi there" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestSubmit_FailureKeepsUserMessage(t *testing.T) {
	h := &stubHandle{err: errors.New("quota exceeded")}
	l := &recordingListener{}
	c := NewConversation(uuid.New(), h, l)

	_, err := c.Submit(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error from failing model")
	}
	if !errors.Is(err, h.err) {
		t.Errorf("expected wrapped model error, got %v", err)
	}

	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Fatalf("expected only the user message, got %+v", msgs)
	}
	if len(l.failures) != 1 {
		t.Errorf("expected 1 failure notification, got %d", len(l.failures))
	}

	// The conversation stays usable.
	h.err = nil
	h.replies = []string{"back again"}
	if _, err := c.Submit(context.Background(), "retry by hand"); err != nil {
		t.Fatalf("expected next submission to succeed, got %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 messages, got %d", c.Len())
	}
}

func TestSubmit_EmptyText(t *testing.T) {
	tests := []string{"", "   ", "\n\t"}

	for _, text := range tests {
		h := &stubHandle{}
		c := NewConversation(uuid.New(), h, nil)

		_, err := c.Submit(context.Background(), text)
		if !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Submit(%q): expected ErrEmptyMessage, got %v", text, err)
		}
		if c.Len() != 0 {
			t.Errorf("Submit(%q): expected no messages appended", text)
		}
		if len(h.sent) != 0 {
			t.Errorf("Submit(%q): model should not be called", text)
		}
	}
}

func TestSubmit_CountAndAlternation(t *testing.T) {
	const n = 5
	c := NewConversation(uuid.New(), &stubHandle{}, nil)

	for i := 0; i < n; i++ {
		if _, err := c.Submit(context.Background(), "ping"); err != nil {
			t.Fatalf("submission %d failed: %v", i, err)
		}
	}

	msgs := c.Messages()
	if len(msgs) != 2*n {
		t.Fatalf("expected %d messages, got %d", 2*n, len(msgs))
	}
	for i, m := range msgs {
		want := RoleUser
		if i%2 == 1 {
			want = RoleModel
		}
		if m.Role != want {
			t.Errorf("message %d: expected role %q, got %q", i, want, m.Role)
		}
	}
}

func TestSubmit_NotifiesUserMessageBeforeModelCall(t *testing.T) {
	l := &recordingListener{}
	var seenAtSend int
	h := &orderingHandle{listener: l, seen: &seenAtSend}
	c := NewConversation(uuid.New(), h, l)

	if _, err := c.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenAtSend != 1 {
		t.Fatalf("expected user message to be announced before the model call, saw %d", seenAtSend)
	}
	if len(l.appended) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(l.appended))
	}
}

type orderingHandle struct {
	listener *recordingListener
	seen     *int
}

func (o *orderingHandle) Send(ctx context.Context, text string) (Reply, error) {
	*o.seen = len(o.listener.appended)
	return Reply{Text: "hi"}, nil
}

func TestMessages_ReturnsCopy(t *testing.T) {
	c := NewConversation(uuid.New(), &stubHandle{}, nil)
	c.Submit(context.Background(), "hello")

	msgs := c.Messages()
	msgs[0].Content = "changed"

	if c.Messages()[0].Content != "hello" {
		t.Fatal("mutating the returned slice must not change the history")
	}
}
