// Package mock provides hand-written test doubles for the collaborator
// interfaces of package content.
//
// Every mock records its calls and is safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/reelwright/internal/content"
	"github.com/MrWong99/reelwright/internal/transcribe"
)

var (
	_ content.Messenger   = (*Messenger)(nil)
	_ content.Store       = (*Store)(nil)
	_ content.Transcriber = (*Transcriber)(nil)
	_ content.Renderer    = (*Renderer)(nil)
)

// Message is one outbound message recorded by [Messenger].
type Message struct {
	ConversationID string
	Text           string
	Choices        []content.Choice
}

// Messenger records outbound messages.
type Messenger struct {
	mu sync.Mutex

	// SendErr is returned by every Send and SendChoices call.
	SendErr error

	Messages []Message
}

// Send implements content.Messenger.
func (m *Messenger) Send(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Message{ConversationID: id, Text: text})
	return m.SendErr
}

// SendChoices implements content.Messenger.
func (m *Messenger) SendChoices(_ context.Context, id, text string, choices []content.Choice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Message{ConversationID: id, Text: text, Choices: choices})
	return m.SendErr
}

// Texts returns the text of every recorded message in order.
func (m *Messenger) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Messages))
	for i, msg := range m.Messages {
		out[i] = msg.Text
	}
	return out
}

// Reset clears the recorded messages.
func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = nil
}

// Store is an in-memory content.Store.
type Store struct {
	mu       sync.Mutex
	sessions map[string]content.Session

	// GetErr and PutErr are returned by Get and Put when non-nil.
	GetErr error
	PutErr error

	// Puts counts successful Put calls.
	Puts int
}

// Get implements content.Store.
func (s *Store) Get(_ context.Context, id string) (*content.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	c := sess.Clone()
	return &c, nil
}

// Put implements content.Store.
func (s *Store) Put(_ context.Context, sess *content.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	if s.sessions == nil {
		s.sessions = make(map[string]content.Session)
	}
	s.sessions[sess.ID] = sess.Clone()
	s.Puts++
	return nil
}

// Delete implements content.Store.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Transcriber returns a scripted result.
type Transcriber struct {
	mu sync.Mutex

	// RunFunc, when set, computes every result.
	RunFunc func(ctx context.Context, sub transcribe.Submission) (*transcribe.Result, error)

	// Result and Err are returned when RunFunc is nil.
	Result *transcribe.Result
	Err    error

	Calls []transcribe.Submission
}

// Run implements content.Transcriber.
func (t *Transcriber) Run(ctx context.Context, sub transcribe.Submission) (*transcribe.Result, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, sub)
	fn := t.RunFunc
	t.mu.Unlock()
	if fn != nil {
		return fn(ctx, sub)
	}
	return t.Result, t.Err
}

// RenderCall records one Render invocation.
type RenderCall struct {
	Script, AvatarID, VoiceID string
}

// Renderer returns a scripted video URL.
type Renderer struct {
	mu sync.Mutex

	URL string
	Err error

	Calls []RenderCall
}

// Render implements content.Renderer.
func (r *Renderer) Render(_ context.Context, script, avatarID, voiceID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, RenderCall{Script: script, AvatarID: avatarID, VoiceID: voiceID})
	if r.Err != nil {
		return "", r.Err
	}
	return r.URL, nil
}
