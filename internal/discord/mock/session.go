// Package mock provides test doubles for the Discord gateway.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// SentMessage is one recorded ChannelMessageSendComplex call.
type SentMessage struct {
	ChannelID string
	Message   *discordgo.MessageSend
}

// Session records interaction responses and channel messages for test
// assertions. It implements discord.API. Safe for concurrent use.
type Session struct {
	mu sync.Mutex

	// Responses records all InteractionRespond calls.
	Responses []*discordgo.InteractionResponse

	// Sent records all ChannelMessageSendComplex calls.
	Sent []SentMessage

	// Err is returned by every method when non-nil.
	Err error
}

// InteractionRespond records the response and returns the configured error.
func (m *Session) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// ChannelMessageSendComplex records the message and returns a stub.
func (m *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{ChannelID: channelID, Message: data})
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-message", ChannelID: channelID}, nil
}

// LastResponse returns the most recently recorded response, or nil.
func (m *Session) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// Messages returns a copy of the recorded channel messages.
func (m *Session) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}

// Reset clears all recorded calls and errors.
func (m *Session) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = nil
	m.Sent = nil
	m.Err = nil
}
