// Package bot provides transports for the messaging platforms featurebot runs on.
//
// Each transport turns raw platform updates into core events and renders core
// replies back into platform messages. Exactly one transport runs per process.
//
// # Supported Platforms
//
//   - Telegram: Long polling, MarkdownV2 replies, inline keyboards
//   - Discord: Gateway connection, markdown replies, button components
//
// # Usage
//
//	telegramBot := bot.NewTelegramBot(token, "/", 60*time.Second)
//	err := telegramBot.Start(func(ev core.Event) {
//	    fmt.Printf("Received: %T\n", ev)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	telegramBot.Send(ctx, chatID, core.Reply{Text: "Hello, world\\!"})
//	telegramBot.Stop()
//
// # Thread Safety
//
// Transports are safe for concurrent use. The event handler is called from the
// transport's receive goroutine and must not block for long.
package bot

import (
	"time"

	"github.com/google/uuid"
	"github.com/keepmind9/featurebot/internal/core"
)

const (
	PlatformTelegram = "telegram"
	PlatformDiscord  = "discord"
)

var (
	_ core.Transport     = (*TelegramBot)(nil)
	_ core.FileInspector = (*TelegramBot)(nil)
	_ core.Transport     = (*DiscordBot)(nil)
)

// newSource stamps a fresh event ID and receive time
func newSource(platform, conversation, userID, userName string) core.Source {
	return core.Source{
		EventID:      uuid.NewString(),
		Platform:     platform,
		Conversation: conversation,
		UserID:       userID,
		UserName:     userName,
		Received:     time.Now(),
	}
}
