// Package chat runs a document-grounded conversation against a chat model.
// The parsed documents are seeded into the history once; every later turn
// carries the full transcript.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/docparse/internal/cache"
	"github.com/hyperifyio/docparse/internal/llm"
)

const (
	DefaultSystemPrompt = "You are a helpful assistant analyzing documents. Keep responses concise (approx 100 words) unless asked for details."
	DefaultTemperature  = 0.2

	seedInstruction = "Here are the documents. Please use them as context for all following questions."
	seedAck         = "Understood. I have analyzed the documents and am ready to answer your questions."
)

// ErrEmptyReply means the model answered with no content.
var ErrEmptyReply = errors.New("empty reply")

// Session holds one conversation. It is not safe for concurrent use.
type Session struct {
	Client llm.Client
	Model  string
	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string
	// Temperature overrides DefaultTemperature when set, zero included.
	Temperature *float32
	Cache       *cache.ReplyCache
	// RetryDelay is the pause before the single retry of a failed call.
	RetryDelay time.Duration

	history []openai.ChatCompletionMessage
}

// NewSession returns a session whose history opens with the documents and
// an acknowledgement from the assistant.
func NewSession(client llm.Client, model string, documents []string) *Session {
	s := &Session{Client: client, Model: model, RetryDelay: 100 * time.Millisecond}
	parts := make([]string, 0, len(documents)+1)
	for _, d := range documents {
		if strings.TrimSpace(d) != "" {
			parts = append(parts, d)
		}
	}
	parts = append(parts, seedInstruction)
	s.history = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: strings.Join(parts, "\n\n")},
		{Role: openai.ChatMessageRoleAssistant, Content: seedAck},
	}
	return s
}

// History returns a copy of the conversation so far, seed included.
func (s *Session) History() []openai.ChatCompletionMessage {
	return append([]openai.ChatCompletionMessage(nil), s.history...)
}

func (s *Session) systemPrompt() string {
	if strings.TrimSpace(s.SystemPrompt) != "" {
		return s.SystemPrompt
	}
	return DefaultSystemPrompt
}

func (s *Session) temperature() float32 {
	switch {
	case s.Temperature == nil:
		return DefaultTemperature
	case *s.Temperature == 0:
		// go-openai omits a zero temperature from the request body.
		return math.SmallestNonzeroFloat32
	}
	return *s.Temperature
}

// transcript is the cache key material: system prompt plus every message.
func transcript(system string, msgs []openai.ChatCompletionMessage) string {
	var b strings.Builder
	b.WriteString("system: ")
	b.WriteString(system)
	for _, m := range msgs {
		b.WriteString("\n\n")
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// Send appends message to the conversation and returns the model's reply.
// A failed call leaves the history unchanged.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	if s.Client == nil || strings.TrimSpace(s.Model) == "" {
		return "", errors.New("chat session not configured")
	}
	system := s.systemPrompt()
	msgs := append(s.History(), openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
	key := cache.KeyFrom(s.Model, transcript(system, msgs))

	if s.Cache != nil {
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			var out struct {
				Reply string `json:"reply"`
			}
			if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.Reply) != "" {
				log.Debug().Str("model", s.Model).Msg("reply served from cache")
				s.commit(msgs, out.Reply)
				return out.Reply, nil
			}
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       s.Model,
		Messages:    append([]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: system}}, msgs...),
		Temperature: s.temperature(),
		N:           1,
	}
	resp, err := s.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("model", s.Model).Msg("chat call failed, retrying once")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.RetryDelay):
		}
		resp, err = s.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("chat call (after retry): %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	if s.Cache != nil {
		payload, _ := json.Marshal(map[string]string{"reply": reply})
		if err := s.Cache.Save(ctx, key, payload); err != nil {
			log.Warn().Err(err).Msg("reply cache save failed")
		}
	}
	s.commit(msgs, reply)
	return reply, nil
}

func (s *Session) commit(msgs []openai.ChatCompletionMessage, reply string) {
	s.history = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply})
}

// IsExit reports whether input is one of the words that end a console chat.
func IsExit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", "end", "bye":
		return true
	}
	return false
}
