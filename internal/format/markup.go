package format

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Markup is the text dialect a transport renders. Every helper takes raw text and
// escapes it, so markers only ever come from the helpers themselves.
type Markup interface {
	Escape(s string) string
	Bold(s string) string
	Italic(s string) string
	Code(s string) string
}

// TelegramMarkdown renders Telegram MarkdownV2.
type TelegramMarkdown struct{}

// Escape escapes s for MarkdownV2. tgbotapi.EscapeText leaves backslashes alone,
// so they are doubled first; otherwise "\*" in user text would open a bold span.
func (TelegramMarkdown) Escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, strings.ReplaceAll(s, `\`, `\\`))
}

func (m TelegramMarkdown) Bold(s string) string {
	return "*" + m.Escape(s) + "*"
}

func (m TelegramMarkdown) Italic(s string) string {
	return "_" + m.Escape(s) + "_"
}

// Code escapes for pre/code entities, where only ` and \ are significant.
func (TelegramMarkdown) Code(s string) string {
	return "`" + telegramCodeEscaper.Replace(s) + "`"
}

var telegramCodeEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`")

// DiscordMarkdown renders Discord's markdown flavour.
type DiscordMarkdown struct{}

var discordEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
	"<", `\<`,
	"#", `\#`,
	"-", `\-`,
	"[", `\[`,
	"]", `\]`,
	"(", `\(`,
	")", `\)`,
)

// list markers only take effect at the start of a line
var (
	discordOrderedList = regexp.MustCompile(`(?m)^(\s*\d+)\.(\s)`)
	discordPlusList    = regexp.MustCompile(`(?m)^(\s*)\+(\s)`)
)

// Escape neutralises every markdown construct untrusted text could open.
func (DiscordMarkdown) Escape(s string) string {
	s = discordEscaper.Replace(s)
	s = discordOrderedList.ReplaceAllString(s, `$1\.$2`)
	return discordPlusList.ReplaceAllString(s, `$1\+$2`)
}

func (m DiscordMarkdown) Bold(s string) string {
	return "**" + m.Escape(s) + "**"
}

func (m DiscordMarkdown) Italic(s string) string {
	return "_" + m.Escape(s) + "_"
}

// Code cannot escape backticks inside inline code on Discord, so they are swapped
// for apostrophes.
func (DiscordMarkdown) Code(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	if s == "" {
		s = " "
	}
	return "`" + s + "`"
}
