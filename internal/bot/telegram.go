package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/keepmind9/featurebot/internal/core"
	"github.com/keepmind9/featurebot/internal/logger"
	"github.com/keepmind9/featurebot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// TelegramClient is the subset of *tgbotapi.BotAPI the transport uses.
// This allows us to mock it in tests.
type TelegramClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramBot implements core.Transport for Telegram using long polling
type TelegramBot struct {
	mu           sync.RWMutex
	token        string
	pollTimeout  time.Duration
	debug        bool
	parser       *commandParser
	client       TelegramClient
	newClient    func(token string, debug bool) (TelegramClient, string, error) // client and bot username
	eventHandler func(core.Event)
	log          logrus.FieldLogger
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewTelegramBot creates a new Telegram bot instance
func NewTelegramBot(token, prefix string, pollTimeout time.Duration) *TelegramBot {
	if pollTimeout <= 0 {
		pollTimeout = constants.DefaultPollTimeout
	}
	return &TelegramBot{
		token:       token,
		pollTimeout: pollTimeout,
		parser:      newCommandParser(prefix),
		newClient:   newTelegramClient,
		log:         logger.Component(PlatformTelegram),
	}
}

// SetDebug enables request logging inside tgbotapi
func (t *TelegramBot) SetDebug(debug bool) {
	t.debug = debug
}

func newTelegramClient(token string, debug bool) (TelegramClient, string, error) {
	if debug {
		if err := tgbotapi.SetLogger(logger.GetLogger()); err != nil {
			return nil, "", err
		}
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, "", err
	}
	api.Debug = debug

	logger.WithFields(logrus.Fields{
		"bot_username": api.Self.UserName,
		"bot_id":       api.Self.ID,
	}).Info("telegram-bot-initialized-successfully")
	return api, api.Self.UserName, nil
}

// Name returns the platform name
func (t *TelegramBot) Name() string {
	return PlatformTelegram
}

// Start establishes long polling connection to Telegram and begins listening for updates
func (t *TelegramBot) Start(eventHandler func(core.Event)) error {
	t.SetEventHandler(eventHandler)

	t.log.WithFields(logrus.Fields{
		"token": maskSecret(t.token),
	}).Info("starting-telegram-bot-with-long-polling")

	client, botName, err := t.newClient(t.token, t.debug)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"error": err,
		}).Error("failed-to-initialize-telegram-bot")
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	// set before polling starts, the parser is read only afterwards
	t.parser.setBotName(botName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(t.pollTimeout.Seconds())
	updates := client.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	t.mu.Lock()
	t.client = client
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				t.log.Info("telegram-long-polling-stopped")
				return
			case update, ok := <-updates:
				if !ok {
					t.log.Info("telegram-updates-channel-closed")
					return
				}
				t.handleUpdate(update)
			}
		}
	}()

	t.log.Info("telegram-long-polling-connection-started")
	return nil
}

// handleUpdate classifies one update and forwards the resulting event
func (t *TelegramBot) handleUpdate(update tgbotapi.Update) {
	var ev core.Event
	switch {
	case update.CallbackQuery != nil:
		ev = t.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		ev = t.classifyMessage(update.Message)
	default:
		t.log.WithField("update_id", update.UpdateID).Debug("unsupported-telegram-update-ignored")
		return
	}
	if ev == nil {
		return
	}

	src := ev.EventSource()
	t.log.WithFields(logrus.Fields{
		"event_id":   src.EventID,
		"update_id":  update.UpdateID,
		"chat_id":    src.Conversation,
		"user_id":    src.UserID,
		"event_type": fmt.Sprintf("%T", ev),
	}).Debug("received-telegram-update")

	if handler := t.GetEventHandler(); handler != nil {
		handler(ev)
	}
}

// handleCallback acknowledges a button press so the client stops its spinner
func (t *TelegramBot) handleCallback(query *tgbotapi.CallbackQuery) core.Event {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()

	if client != nil {
		if _, err := client.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			t.log.WithFields(logrus.Fields{
				"callback_id": query.ID,
				"error":       err,
			}).Warn("failed-to-answer-telegram-callback")
		}
	}

	var chatID int64
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	} else if query.From != nil {
		chatID = query.From.ID
	}
	userID, userName := telegramUser(query.From)

	return core.CallbackPress{
		Source: newSource(PlatformTelegram, strconv.FormatInt(chatID, 10), userID, userName),
		Tag:    query.Data,
	}
}

// classifyMessage maps a message to an event, or nil for unsupported content
func (t *TelegramBot) classifyMessage(message *tgbotapi.Message) core.Event {
	var chatID string
	if message.Chat != nil {
		chatID = strconv.FormatInt(message.Chat.ID, 10)
	}
	userID, userName := telegramUser(message.From)
	src := newSource(PlatformTelegram, chatID, userID, userName)

	switch {
	case message.Text != "":
		return t.parser.classifyText(src, message.Text)

	case len(message.Photo) > 0:
		// sizes are ordered smallest first
		largest := message.Photo[len(message.Photo)-1]
		return core.Photo{
			Source: src,
			FileID: largest.FileID,
			Width:  largest.Width,
			Height: largest.Height,
			Size:   int64(largest.FileSize),
		}

	case message.Document != nil:
		doc := message.Document
		return core.Document{
			Source:   src,
			FileID:   doc.FileID,
			FileName: doc.FileName,
			Size:     int64(doc.FileSize),
			MimeType: doc.MimeType,
		}
	}

	t.log.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"message_id": message.MessageID,
	}).Debug("unsupported-telegram-message-ignored")
	return nil
}

func telegramUser(user *tgbotapi.User) (string, string) {
	if user == nil {
		return "", ""
	}
	name := user.FirstName
	if name == "" {
		name = user.String()
	}
	return strconv.FormatInt(user.ID, 10), name
}

// Send delivers a MarkdownV2 reply with its inline keyboard
func (t *TelegramBot) Send(ctx context.Context, chatID string, reply core.Reply) error {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return core.Permanent(fmt.Errorf("invalid chat ID format %q: %w", chatID, err))
	}

	text, truncated := truncateRunes(reply.Text, constants.MaxTelegramMessageLength)
	if truncated {
		t.log.WithFields(logrus.Fields{
			"chat_id":    chatID,
			"max_length": constants.MaxTelegramMessageLength,
		}).Info("truncating-message-for-telegram-limit")
		text = trimDanglingEscape(text)
	}

	msg := tgbotapi.NewMessage(chatIDInt, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if len(reply.Keyboard) > 0 {
		msg.ReplyMarkup = telegramKeyboard(reply.Keyboard)
	}

	if _, err := client.Send(msg); err != nil {
		t.log.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Error("failed-to-send-message-to-telegram")
		return classifyTelegramError(fmt.Errorf("failed to send message to chat %s: %w", chatID, err))
	}

	t.log.WithField("chat_id", chatID).Debug("message-sent-to-telegram")
	return nil
}

// telegramKeyboard renders rows of buttons with the action tag as callback data
func telegramKeyboard(keyboard core.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action.Tag()))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// classifyTelegramError marks client errors that a retry cannot fix
func classifyTelegramError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= http.StatusBadRequest && apiErr.Code < http.StatusInternalServerError &&
			apiErr.Code != http.StatusTooManyRequests {
			return core.Permanent(err)
		}
	}
	return err
}

// FileSize asks Telegram for the stored size of a file
func (t *TelegramBot) FileSize(ctx context.Context, fileID string) (int64, error) {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()

	if client == nil {
		return 0, fmt.Errorf("telegram bot not initialized")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	file, err := client.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return 0, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return int64(file.FileSize), nil
}

// Stop closes the Telegram long polling connection and cleans up resources
func (t *TelegramBot) Stop() error {
	t.mu.Lock()
	client := t.client
	cancel := t.cancel
	done := t.done
	t.client = nil
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.StopReceivingUpdates()
	}
	if done != nil {
		<-done
	}

	t.log.Info("telegram-bot-stopped")
	return nil
}

// SetEventHandler sets the event handler in a thread-safe manner
func (t *TelegramBot) SetEventHandler(handler func(core.Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventHandler = handler
}

// GetEventHandler gets the event handler in a thread-safe manner
func (t *TelegramBot) GetEventHandler() func(core.Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.eventHandler
}
