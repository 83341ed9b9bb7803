// Package discord is the chat gateway of the content bot. It owns the
// discordgo.Session lifecycle, turns messages, voice notes, slash commands
// and button presses into [content.Input] values, and delivers the engine's
// replies as embeds.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/reelwright/internal/content"
)

// Embed colour of outbound messages.
const embedColor = 0x5865F2

// DefaultMaxAudioBytes caps attachment downloads when Config leaves it unset.
const DefaultMaxAudioBytes = 20 << 20

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token without the "Bot " prefix.
	Token string

	// GuildID scopes slash command registration. Empty registers globally.
	GuildID string

	// MaxAudioBytes rejects larger attachments before and while downloading.
	MaxAudioBytes int64

	// ScratchDir receives downloaded attachments. Defaults to the OS temp dir.
	ScratchDir string

	// HTTPClient downloads attachments. Defaults to a client with a
	// two-minute timeout.
	HTTPClient *http.Client
}

// Handler consumes conversation inputs. [content.Engine] implements it.
type Handler interface {
	Handle(ctx context.Context, conversationID string, in content.Input) error
}

// API is the subset of *discordgo.Session the bot calls at runtime.
type API interface {
	Responder
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot owns the Discord gateway connection. It implements
// [content.Messenger] and forwards every input to a [Handler].
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	api       API
	router    *CommandRouter
	handler   Handler
	guildID   string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once

	httpClient    *http.Client
	maxAudioBytes int64
	scratchDir    string

	// ctx bounds asynchronous input handling; cancelled by Close.
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

var _ content.Messenger = (*Bot)(nil)

// New creates a Bot. The gateway connection is opened by [Bot.Run], so the
// bot can be handed to the engine as its messenger first.
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: token must not be empty")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := newBot(session, cfg)
	b.session = session

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if s.State != nil && s.State.User != nil && m.Author != nil && m.Author.ID == s.State.User.ID {
			return
		}
		b.onMessage(m.Message)
	})
	return b, nil
}

func newBot(api API, cfg Config) *Bot {
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = DefaultMaxAudioBytes
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		api:           api,
		router:        NewCommandRouter(),
		guildID:       cfg.GuildID,
		httpClient:    cfg.HTTPClient,
		maxAudioBytes: cfg.MaxAudioBytes,
		scratchDir:    cfg.ScratchDir,
		ctx:           ctx,
		cancel:        cancel,
	}
	b.registerCommands()
	return b
}

// Router returns the command router.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Run opens the gateway, registers slash commands and forwards inputs to h
// until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}

	appID := b.session.State.User.ID
	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, b.router.ApplicationCommands())
	if err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	b.mu.Lock()
	b.commands = registered
	b.mu.Unlock()
	slog.Info("discord: commands registered", "count", len(registered), "guild_id", b.guildID)

	<-ctx.Done()
	return ctx.Err()
}

// Close stops input handling, waits for in-flight inputs, unregisters
// guild commands and disconnects.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.cancel()
		b.inflight.Wait()

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.session == nil {
			return
		}
		// Only guild-scoped commands are removed on shutdown.
		if b.guildID != "" && b.session.State != nil && b.session.State.User != nil {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord: bot closed")
	})
	return closeErr
}

// Send implements [content.Messenger]. Text is delivered as an embed
// description.
func (b *Bot) Send(_ context.Context, conversationID, text string) error {
	_, err := b.api.ChannelMessageSendComplex(channelOf(conversationID), &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed(text)},
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// SendChoices implements [content.Messenger]. Each choice becomes a button
// whose custom ID is the choice ID.
func (b *Bot) SendChoices(_ context.Context, conversationID, text string, choices []content.Choice) error {
	buttons := make([]discordgo.MessageComponent, 0, len(choices))
	for i, c := range choices {
		style := discordgo.SecondaryButton
		if i == 0 {
			style = discordgo.PrimaryButton
		}
		buttons = append(buttons, discordgo.Button{Label: c.Label, Style: style, CustomID: c.ID})
	}
	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed(text)}}
	if len(buttons) > 0 {
		msg.Components = []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
	}
	if _, err := b.api.ChannelMessageSendComplex(channelOf(conversationID), msg); err != nil {
		return fmt.Errorf("discord: send choices: %w", err)
	}
	return nil
}

// dispatch hands in to the handler on its own goroutine. prepare, if
// non-nil, replaces in before handling and may return a cleanup that runs
// after the handler returns.
func (b *Bot) dispatch(conversationID string, in content.Input, prepare func(context.Context) (content.Input, func(), error)) {
	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h == nil {
		slog.Warn("discord: input dropped, no handler", "conversation", conversationID)
		return
	}
	if b.ctx.Err() != nil {
		return
	}

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		if prepare != nil {
			prepared, cleanup, err := prepare(b.ctx)
			if cleanup != nil {
				defer cleanup()
			}
			if err != nil {
				slog.Warn("discord: input preparation failed", "conversation", conversationID, "err", err)
				return
			}
			in = prepared
		}
		if err := h.Handle(b.ctx, conversationID, in); err != nil {
			slog.Error("discord: handle input", "conversation", conversationID, "err", err)
		}
	}()
}

func embed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: embedColor}
}

// ConversationID identifies one user's conversation. Direct messages are
// keyed by channel; guild channels are shared, so the user is appended.
func ConversationID(channelID, guildID, userID string) string {
	if guildID == "" || userID == "" {
		return channelID
	}
	return channelID + "/" + userID
}

func channelOf(conversationID string) string {
	channel, _, _ := strings.Cut(conversationID, "/")
	return channel
}
