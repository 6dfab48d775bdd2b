package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

var ErrEmptyMessage = errors.New("message is empty")

// Message is one turn of a conversation as stored, using the model's role labels.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Reply is what the model returns for one sent prompt.
type Reply struct {
	Text string
}

// Model starts remote conversations seeded with an existing history.
type Model interface {
	StartConversation(ctx context.Context, history []Message) (Handle, error)
}

// Handle continues one remote conversation.
type Handle interface {
	Send(ctx context.Context, text string) (Reply, error)
}

// Listener is told about messages as they are appended and about failed sends.
type Listener interface {
	MessageAppended(ctx context.Context, conversationID uuid.UUID, m Message)
	SubmitFailed(ctx context.Context, conversationID uuid.UUID, err error)
}

// Conversation is the append-only history of one session together with the
// remote handle that produces model replies.
type Conversation struct {
	ID uuid.UUID

	handle   Handle
	listener Listener
	now      func() time.Time

	// sendMu serialises Submit; mu guards messages so readers never wait on a
	// model call in flight.
	sendMu   sync.Mutex
	mu       sync.RWMutex
	messages []Message
}

func NewConversation(id uuid.UUID, handle Handle, listener Listener) *Conversation {
	return &Conversation{
		ID:       id,
		handle:   handle,
		listener: listener,
		now:      time.Now,
	}
}

// Messages returns a copy of the history in send order.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Submit appends the user's text, forwards it to the model and appends the
// reply. If the model call fails the user message is kept and no reply is
// added.
func (c *Conversation) Submit(ctx context.Context, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.append(ctx, Message{Role: RoleUser, Content: text, CreatedAt: c.now()})

	reply, err := c.handle.Send(ctx, text)
	if err != nil {
		err = fmt.Errorf("failed to send message: %w", err)
		if c.listener != nil {
			c.listener.SubmitFailed(ctx, c.ID, err)
		}
		return Message{}, err
	}

	m := Message{Role: RoleModel, Content: reply.Text, CreatedAt: c.now()}
	c.append(ctx, m)
	return m, nil
}

func (c *Conversation) append(ctx context.Context, m Message) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()

	if c.listener != nil {
		c.listener.MessageAppended(ctx, c.ID, m)
	}
}
