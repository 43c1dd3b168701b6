package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/keepmind9/featurebot/internal/core"
	"github.com/keepmind9/featurebot/internal/logger"
	"github.com/keepmind9/featurebot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// DiscordSessionInterface defines the interface we need from discordgo.Session
// This allows us to mock it in tests without depending on concrete types
type DiscordSessionInterface interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// DiscordBot implements core.Transport for Discord
type DiscordBot struct {
	mu           sync.RWMutex
	token        string
	parser       *commandParser
	session      DiscordSessionInterface
	newSession   func(token string) (DiscordSessionInterface, error)
	eventHandler func(core.Event)
	log          logrus.FieldLogger
}

// NewDiscordBot creates a new Discord bot instance
func NewDiscordBot(token, prefix string) *DiscordBot {
	return &DiscordBot{
		token:      token,
		parser:     newCommandParser(prefix),
		newSession: newDiscordSession,
		log:        logger.Component(PlatformDiscord),
	}
}

func newDiscordSession(token string) (DiscordSessionInterface, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	// handlers run on the gateway goroutine so events of a channel arrive in order
	session.SyncEvents = true
	return session, nil
}

// Name returns the platform name
func (d *DiscordBot) Name() string {
	return PlatformDiscord
}

// Start establishes connection to Discord and begins listening for messages
func (d *DiscordBot) Start(eventHandler func(core.Event)) error {
	d.SetEventHandler(eventHandler)

	d.log.WithFields(logrus.Fields{
		"token": maskSecret(d.token),
	}).Info("starting-discord-bot")

	session, err := d.newSession(d.token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}

	session.AddHandler(d.onMessageCreate)
	session.AddHandler(d.onInteractionCreate)

	// handlers may fire as soon as Open returns and need the session to acknowledge
	d.mu.Lock()
	d.session = session
	d.mu.Unlock()

	if err := session.Open(); err != nil {
		d.mu.Lock()
		d.session = nil
		d.mu.Unlock()
		return fmt.Errorf("failed to open discord connection: %w", err)
	}

	d.log.Info("discord-connection-opened")
	return nil
}

func (d *DiscordBot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	for _, ev := range d.classifyMessage(m) {
		d.emit(ev)
	}
}

func (d *DiscordBot) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if ev := d.handleInteraction(i); ev != nil {
		d.emit(ev)
	}
}

func (d *DiscordBot) emit(ev core.Event) {
	src := ev.EventSource()
	d.log.WithFields(logrus.Fields{
		"event_id":   src.EventID,
		"channel":    src.Conversation,
		"user_id":    src.UserID,
		"event_type": fmt.Sprintf("%T", ev),
	}).Debug("received-discord-event")

	if handler := d.GetEventHandler(); handler != nil {
		handler(ev)
	}
}

// classifyMessage maps a message to events: its text first, then one event per
// attachment. Messages from bots are ignored.
func (d *DiscordBot) classifyMessage(m *discordgo.MessageCreate) []core.Event {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return nil
	}

	newSrc := func() core.Source {
		return newSource(PlatformDiscord, m.ChannelID, m.Author.ID, m.Author.Username)
	}

	var events []core.Event
	if ev := d.parser.classifyText(newSrc(), m.Content); ev != nil {
		events = append(events, ev)
	}

	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		if strings.HasPrefix(att.ContentType, "image/") {
			events = append(events, core.Photo{
				Source: newSrc(),
				FileID: att.ID,
				Width:  att.Width,
				Height: att.Height,
				Size:   int64(att.Size),
			})
			continue
		}
		events = append(events, core.Document{
			Source:   newSrc(),
			FileID:   att.ID,
			FileName: att.Filename,
			Size:     int64(att.Size),
			MimeType: att.ContentType,
		})
	}
	return events
}

// handleInteraction acknowledges a button press and maps it to a CallbackPress
func (d *DiscordBot) handleInteraction(i *discordgo.InteractionCreate) core.Event {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return nil
	}

	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()

	if session != nil {
		err := session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		if err != nil {
			d.log.WithFields(logrus.Fields{
				"interaction_id": i.ID,
				"error":          err,
			}).Warn("failed-to-acknowledge-discord-interaction")
		}
	}

	var userID, userName string
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user != nil {
		userID, userName = user.ID, user.Username
	}

	return core.CallbackPress{
		Source: newSource(PlatformDiscord, i.ChannelID, userID, userName),
		Tag:    i.MessageComponentData().CustomID,
	}
}

// Send delivers a markdown reply with its buttons to a Discord channel
func (d *DiscordBot) Send(ctx context.Context, channel string, reply core.Reply) error {
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()

	if session == nil {
		return fmt.Errorf("discord session not initialized")
	}
	if channel == "" {
		return core.Permanent(fmt.Errorf("channel ID is required for Discord"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	content, truncated := truncateRunes(reply.Text, constants.MaxDiscordMessageLength)
	if truncated {
		d.log.WithFields(logrus.Fields{
			"channel":    channel,
			"max_length": constants.MaxDiscordMessageLength,
		}).Info("truncating-message-for-discord-limit")
		content = trimDanglingEscape(content)
	}

	data := &discordgo.MessageSend{
		Content:    content,
		Components: d.components(reply.Keyboard),
	}

	if _, err := session.ChannelMessageSendComplex(channel, data, discordgo.WithContext(ctx)); err != nil {
		d.log.WithFields(logrus.Fields{
			"channel": channel,
			"error":   err,
		}).Error("failed-to-send-message-to-discord")
		return classifyDiscordError(fmt.Errorf("failed to send message to channel %s: %w", channel, err))
	}

	d.log.WithField("channel", channel).Debug("message-sent-to-discord")
	return nil
}

// components renders the keyboard as action rows, dropping what Discord cannot hold
func (d *DiscordBot) components(keyboard core.Keyboard) []discordgo.MessageComponent {
	if len(keyboard) == 0 {
		return nil
	}

	var rows []discordgo.MessageComponent
	dropped := 0
	for i, row := range keyboard {
		if i >= constants.MaxDiscordActionRows {
			dropped += len(row)
			continue
		}
		var buttons []discordgo.MessageComponent
		for j, b := range row {
			if j >= constants.MaxDiscordButtonsPerRow {
				dropped++
				continue
			}
			buttons = append(buttons, discordgo.Button{
				Label:    b.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: b.Action.Tag(),
			})
		}
		if len(buttons) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: buttons})
		}
	}

	if dropped > 0 {
		d.log.WithField("dropped_buttons", dropped).Warn("discord-keyboard-exceeds-component-limits")
	}
	return rows
}

// classifyDiscordError marks client errors that a retry cannot fix
func classifyDiscordError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		code := restErr.Response.StatusCode
		if code >= http.StatusBadRequest && code < http.StatusInternalServerError &&
			code != http.StatusTooManyRequests {
			return core.Permanent(err)
		}
	}
	return err
}

// Stop closes the Discord connection and cleans up resources
func (d *DiscordBot) Stop() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()

	if session == nil {
		return nil
	}

	if err := session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}

	d.log.Info("discord-bot-stopped")
	return nil
}

// SetEventHandler sets the event handler in a thread-safe manner
func (d *DiscordBot) SetEventHandler(handler func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventHandler = handler
}

// GetEventHandler gets the event handler in a thread-safe manner
func (d *DiscordBot) GetEventHandler() func(core.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.eventHandler
}
