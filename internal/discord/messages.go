package discord

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/reelwright/internal/content"
)

// onMessage turns a chat message into an input: the first audio attachment
// wins over text.
func (b *Bot) onMessage(m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	id := ConversationID(m.ChannelID, m.GuildID, m.Author.ID)

	if a := FirstAudio(m.Attachments); a != nil {
		b.dispatch(id, content.Input{Kind: content.InputAudio}, func(ctx context.Context) (content.Input, func(), error) {
			audio, cleanup, err := b.download(ctx, a)
			if err != nil {
				// An empty recording reaches the user as a failed transcription.
				slog.Warn("discord: attachment download failed", "conversation", id, "err", err)
			}
			return content.Input{Kind: content.InputAudio, Audio: audio}, cleanup, nil
		})
		return
	}

	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}
	b.dispatch(id, content.Input{Kind: content.InputText, Text: text}, nil)
}
