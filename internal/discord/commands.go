package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/reelwright/internal/content"
)

// ackText answers a slash command; the engine replies in the channel.
const ackText = "✅"

var slashCommands = []struct {
	name, description string
	kind              content.InputKind
}{
	{"start", "Start a new content plan with the questionnaire", content.InputStart},
	{"voice", "Start a new content plan from a voice message", content.InputVoiceStart},
	{"reset", "Forget the current conversation", content.InputReset},
	{"finalize", "Pick one scenario from the current batch", content.InputFinalize},
}

var buttons = map[string]content.InputKind{
	content.ChoiceKeepAll:  content.InputKeepAll,
	content.ChoiceFinalize: content.InputFinalize,
}

func (b *Bot) registerCommands() {
	dm := true
	for _, c := range slashCommands {
		kind := c.kind
		b.router.RegisterCommand(&discordgo.ApplicationCommand{
			Name:         c.name,
			Description:  c.description,
			DMPermission: &dm,
		}, func(r Responder, i *discordgo.InteractionCreate) {
			RespondEphemeral(r, i, ackText)
			b.dispatch(interactionConversation(i), content.Input{Kind: kind}, nil)
		})
	}
	for id, kind := range buttons {
		b.router.RegisterComponent(id, func(r Responder, i *discordgo.InteractionCreate) {
			Acknowledge(r, i)
			b.dispatch(interactionConversation(i), content.Input{Kind: kind}, nil)
		})
	}
}

func interactionConversation(i *discordgo.InteractionCreate) string {
	var userID string
	switch {
	case i.Member != nil && i.Member.User != nil:
		userID = i.Member.User.ID
	case i.User != nil:
		userID = i.User.ID
	}
	return ConversationID(i.ChannelID, i.GuildID, userID)
}
