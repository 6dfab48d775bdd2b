package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"

	"astra-chat/internal/chat"
	"astra-chat/internal/telemetry"
)

var ErrEmptyReply = errors.New("model returned an empty reply")

type GeminiService struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	rateChan  chan struct{} // Token bucket
	tracer    trace.Tracer
	metrics   *telemetry.Metrics
}

func NewGeminiService(apiKey, modelName string, temperature float32, concurrentReqs int, metrics *telemetry.Metrics) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)

	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:    client,
		model:     model,
		modelName: modelName,
		rateChan:  rateChan,
		tracer:    telemetry.Tracer(),
		metrics:   metrics,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// StartConversation opens a chat session seeded with history. No request is
// made until the first Send.
func (s *GeminiService) StartConversation(ctx context.Context, history []chat.Message) (chat.Handle, error) {
	cs := s.model.StartChat()
	cs.History = toContents(history)
	return &geminiConversation{svc: s, session: cs}, nil
}

type geminiConversation struct {
	svc     *GeminiService
	session *genai.ChatSession
}

// Send continues the chat. The session keeps its own copy of the history;
// after a failed or empty call it holds the user turn and nothing after it,
// the same as the displayed conversation.
func (c *geminiConversation) Send(ctx context.Context, text string) (chat.Reply, error) {
	ctx, span := c.svc.tracer.Start(ctx, "gemini.send_message",
		trace.WithAttributes(
			attribute.String("gemini.model", c.svc.modelName),
			attribute.Int("gemini.history_len", len(c.session.History)),
		))
	defer span.End()

	if err := c.svc.acquireRate(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return chat.Reply{}, err
	}
	defer c.svc.releaseRate()

	start := time.Now()
	turns := len(c.session.History)
	resp, err := c.session.SendMessage(ctx, genai.Text(text))

	reply, result, err := completeSend(c.session, turns, resp, err)
	c.svc.metrics.RecordModelCall(ctx, result, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return chat.Reply{}, err
	}
	return reply, nil
}

const (
	resultOK    = "ok"
	resultEmpty = "empty"
	resultError = "error"
)

// completeSend turns the outcome of SendMessage into a reply and a metrics
// result label. turns is the session history length before the call; on any
// failure the history is cut back to those turns plus the user turn.
func completeSend(cs *genai.ChatSession, turns int, resp *genai.GenerateContentResponse, err error) (chat.Reply, string, error) {
	if err != nil {
		cs.History = keepTurns(cs.History, turns+1)
		return chat.Reply{}, resultError, fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	reply := extractText(resp)
	if strings.TrimSpace(reply) == "" {
		// SendMessage records a candidate with content even when it has no text.
		cs.History = keepTurns(cs.History, turns+1)
		return chat.Reply{}, resultEmpty, ErrEmptyReply
	}
	return chat.Reply{Text: reply}, resultOK, nil
}

// Helper functions

func toContents(history []chat.Message) []*genai.Content {
	if len(history) == 0 {
		return nil
	}
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := m.Role
		if role != chat.RoleModel {
			role = chat.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return contents
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func keepTurns(history []*genai.Content, n int) []*genai.Content {
	if len(history) <= n {
		return history
	}
	return history[:n]
}
