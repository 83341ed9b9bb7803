package discord

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Responder answers interactions. *discordgo.Session implements it.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// HandlerFunc handles one slash command or button press.
type HandlerFunc func(r Responder, i *discordgo.InteractionCreate)

// CommandRouter dispatches interactions by command name or component
// custom ID.
type CommandRouter struct {
	mu         sync.RWMutex
	defs       map[string]*discordgo.ApplicationCommand
	commands   map[string]HandlerFunc
	components map[string]HandlerFunc
}

func NewCommandRouter() *CommandRouter {
	return &CommandRouter{
		defs:       make(map[string]*discordgo.ApplicationCommand),
		commands:   make(map[string]HandlerFunc),
		components: make(map[string]HandlerFunc),
	}
}

// RegisterCommand adds a slash command. [Bot.Run] uploads the definition.
func (r *CommandRouter) RegisterCommand(cmd *discordgo.ApplicationCommand, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[cmd.Name] = cmd
	r.commands[cmd.Name] = h
}

// RegisterComponent adds a button handler.
func (r *CommandRouter) RegisterComponent(customID string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[customID] = h
}

// ApplicationCommands returns the registered definitions sorted by name.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.SortedFunc(maps.Values(r.defs), func(a, b *discordgo.ApplicationCommand) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// Handle routes i to its handler. Unknown commands and components get an
// ephemeral notice.
func (r *CommandRouter) Handle(resp Responder, i *discordgo.InteractionCreate) {
	var (
		table map[string]HandlerFunc
		key   string
		what  string
	)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		table, key, what = r.commands, i.ApplicationCommandData().Name, "command"
	case discordgo.InteractionMessageComponent:
		table, key, what = r.components, i.MessageComponentData().CustomID, "component"
	default:
		slog.Warn("discord: unhandled interaction type", "type", i.Type)
		return
	}

	r.mu.RLock()
	h, ok := table[key]
	r.mu.RUnlock()
	if !ok {
		slog.Warn("discord: unknown "+what, "key", key)
		RespondEphemeral(resp, i, "Unknown "+what+".")
		return
	}
	h(resp, i)
}

// RespondEphemeral answers i with text only the invoking user sees.
func RespondEphemeral(r Responder, i *discordgo.InteractionCreate, text string) {
	respond(r, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
	})
}

// Acknowledge confirms a button press without editing the message. The
// engine answers in the channel afterwards.
func Acknowledge(r Responder, i *discordgo.InteractionCreate) {
	respond(r, i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate})
}

func respond(r Responder, i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) {
	if err := r.InteractionRespond(i.Interaction, resp); err != nil {
		slog.Warn("discord: interaction response failed", "type", resp.Type, "err", err)
	}
}
