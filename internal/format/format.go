// Package format builds the reply texts of every command.
//
// All functions are pure and total. Text is assembled from fragments that each pass
// through the transport's Markup, so user supplied names, messages and file names
// cannot break the rendering or add formatting.
package format

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/keepmind9/featurebot/internal/calc"
	"github.com/keepmind9/featurebot/pkg/constants"
)

const (
	// TimeLayout is how /time renders the current time
	TimeLayout = "2006-01-02 15:04:05"

	defaultPrefix = "/"
	unknownValue  = "unknown"
)

// Formatter produces reply texts in one markup dialect.
type Formatter struct {
	m       Markup
	prefix  string
	version string
}

// New creates a Formatter. An empty prefix defaults to "/".
func New(m Markup, prefix, version string) *Formatter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if version == "" {
		version = "dev"
	}
	return &Formatter{m: m, prefix: prefix, version: version}
}

type commandLine struct {
	usage string
	text  string
}

func (f *Formatter) cmd(name string) string {
	return f.prefix + name
}

func (f *Formatter) lines(parts ...string) string {
	return strings.Join(parts, "\n")
}

func (f *Formatter) bullet(text string) string {
	return "• " + text
}

// Welcome greets the user; the transport attaches the quick-action keyboard.
func (f *Formatter) Welcome(userName string) string {
	m := f.m
	if userName == "" {
		userName = "there"
	}

	commands := []commandLine{
		{f.cmd("start"), "Show this welcome message"},
		{f.cmd("help"), "Get detailed help"},
		{f.cmd("time"), "Get current time"},
		{f.cmd("weather") + " [city]", "Get weather info (placeholder)"},
		{f.cmd("joke"), "Get a random joke"},
		{f.cmd("calc") + " [expression]", "Simple calculator"},
		{f.cmd("info"), "Bot information"},
	}

	parts := []string{
		"🤖 " + m.Bold("Welcome "+userName+"!"),
		"",
		m.Escape("I'm a feature-rich bot ready to help you!"),
		"",
		m.Bold("Available Commands:"),
	}
	for _, c := range commands {
		parts = append(parts, f.bullet(m.Escape(c.usage+" - "+c.text)))
	}
	parts = append(parts,
		"",
		m.Escape("You can also:"),
		m.Escape("📝 Send me any text and I'll echo it back"),
		m.Escape("📷 Send photos and I'll show their details"),
		m.Escape("📄 Send documents and I'll provide info"),
		"",
		m.Escape("Click the buttons below to get started! 👇"),
	)
	return f.lines(parts...)
}

// Help lists every command with an example.
func (f *Formatter) Help() string {
	m := f.m

	commands := []commandLine{
		{f.cmd("start"), "Show welcome message with quick actions"},
		{f.cmd("help"), "Show this detailed help"},
		{f.cmd("time"), "Get current date and time"},
		{f.cmd("weather") + " [city]", "Get weather for a city (e.g., " + f.cmd("weather") + " London)"},
		{f.cmd("joke"), "Get a random programming joke"},
		{f.cmd("calc") + " [expression]", "Calculate math expressions (e.g., " + f.cmd("calc") + " 2+2*3)"},
		{f.cmd("info"), "Get information about this bot"},
	}

	parts := []string{
		"🆘 " + m.Bold("Detailed Help"),
		"",
		m.Bold("Commands:"),
	}
	for _, c := range commands {
		parts = append(parts, f.bullet(m.Code(c.usage)+m.Escape(" - "+c.text)))
	}
	parts = append(parts,
		"",
		m.Bold("Features:"),
		"📝 "+m.Bold("Text Echo")+m.Escape(": Send any text message and I'll echo it back with some analysis"),
		"📷 "+m.Bold("Photo Info")+m.Escape(": Send photos and I'll provide basic information"),
		"📄 "+m.Bold("Document Info")+m.Escape(": Send documents and I'll show file details"),
		"⌨️ "+m.Bold("Inline Keyboards")+m.Escape(": Use buttons for quick actions"),
		"",
		m.Bold("Tips:"),
		f.bullet(m.Escape("Commands are case-sensitive")),
		f.bullet(m.Escape("Use ")+m.Code(f.cmd("calc"))+m.Escape(" for basic math: +, -, *, /, **, ()")),
		f.bullet(m.Escape("The weather command is a placeholder")),
	)
	return f.lines(parts...)
}

// Time renders t with TimeLayout in t's location.
func (f *Formatter) Time(t time.Time) string {
	return "🕒 " + f.m.Escape("Current time: ") + f.m.Code(t.Format(TimeLayout))
}

// WeatherUsage asks for the missing city argument.
func (f *Formatter) WeatherUsage() string {
	return f.lines(
		f.m.Escape("❗ Please specify a city!"),
		f.m.Escape("Usage: ")+f.m.Code(f.cmd("weather")+" London"),
	)
}

// Weather renders placeholder conditions for city.
func (f *Formatter) Weather(city string) string {
	m := f.m
	return f.lines(
		"🌤️ "+m.Bold("Weather for "+city),
		"",
		m.Escape("Temperature: 22°C"),
		m.Escape("Condition: Partly Cloudy"),
		m.Escape("Humidity: 65%"),
		m.Escape("Wind: 10 km/h"),
		"",
		m.Italic("Note: This is placeholder data, no weather service is queried."),
	)
}

// Joke renders one joke.
func (f *Formatter) Joke(text string) string {
	return "😄 " + f.m.Escape(text)
}

// CalcUsage explains /calc when no expression was given.
func (f *Formatter) CalcUsage() string {
	return f.lines(
		f.m.Escape("🔢 Please provide a math expression!"),
		f.m.Escape("Usage: ")+f.m.Code(f.cmd("calc")+" 2+2*3"),
		"",
		f.m.Escape("Supported operations: +, -, *, /, **, ()"),
	)
}

// CalcResult renders either the result of expr or the reason it failed.
func (f *Formatter) CalcResult(expr string, result float64, err error) string {
	m := f.m
	if err == nil {
		return f.lines(
			"🔢 "+m.Bold("Calculator"),
			"",
			m.Code(expr+" = "+calc.FormatResult(result)),
		)
	}

	var calcErr *calc.Error
	errors.As(err, &calcErr)

	switch {
	case errors.Is(err, calc.ErrInvalidCharacter):
		char := "?"
		if calcErr != nil {
			char = string(calcErr.Char)
		}
		return m.Escape("❗ Invalid character ") + m.Code(char) +
			m.Escape(" in expression. Only numbers and basic operators are allowed.")
	case errors.Is(err, calc.ErrDivisionByZero):
		return m.Escape("❗ Division by zero in ") + m.Code(expr)
	case errors.Is(err, calc.ErrOverflow):
		return m.Escape("❗ The result of ") + m.Code(expr) + m.Escape(" is too large to compute.")
	case errors.Is(err, calc.ErrUndefined):
		return m.Escape("❗ ") + m.Code(expr) + m.Escape(" has no real-number result.")
	case errors.Is(err, calc.ErrMalformedExpression):
		reason := "syntax error"
		if calcErr != nil && calcErr.Detail != "" {
			reason = calcErr.Detail
		}
		return m.Escape("❗ ") + m.Code(expr) + m.Escape(" is not a valid expression: "+reason)
	default:
		return m.Escape(fmt.Sprintf("❗ Error calculating expression: %v", err))
	}
}

// Info describes the bot.
func (f *Formatter) Info() string {
	m := f.m
	return f.lines(
		"🤖 "+m.Bold("Bot Information"),
		"",
		m.Bold("Name:")+m.Escape(" Feature-Rich Bot"),
		m.Bold("Version:")+" "+m.Code(f.version),
		m.Bold("Language:")+m.Escape(" Go"),
		"",
		m.Bold("Features:"),
		m.Escape("✅ Command handling"),
		m.Escape("✅ Inline keyboards"),
		m.Escape("✅ Text echo with analysis"),
		m.Escape("✅ Photo handling"),
		m.Escape("✅ Document processing"),
		m.Escape("✅ Error handling"),
		m.Escape("✅ Structured logging"),
		"",
		m.Escape("This bot demonstrates command dispatch with inline keyboards and can be extended with more functionality!"),
	)
}

// Echo quotes text back together with its analysis.
func (f *Formatter) Echo(userName, text string, stats EchoStats) string {
	m := f.m
	if userName == "" {
		userName = unknownValue
	}

	return f.lines(
		"💬 "+m.Bold("Message Echo"),
		"",
		m.Bold("From:")+" "+m.Escape(userName),
		m.Bold("Message:")+" "+m.Escape(`"`+preview(text, constants.MaxEchoPreviewRunes)+`"`),
		"",
		m.Bold("Analysis:"),
		m.Escape(fmt.Sprintf("📊 Words: %d", stats.Words)),
		m.Escape(fmt.Sprintf("📏 Characters: %d", stats.Chars)),
		m.Escape("😊 Contains non-ASCII: "+yesNo(stats.NonASCII)),
		"",
		m.Italic("Tip: Try sending me commands starting with '"+f.prefix+"' for more features!"),
	)
}

// Photo describes a received photo.
func (f *Formatter) Photo(width, height int, size int64, fileID string) string {
	m := f.m
	return f.lines(
		"📷 "+m.Bold("Photo Received!"),
		"",
		m.Bold("File Info:"),
		f.bullet(m.Escape("File ID: ")+m.Code(orUnknown(fileID))),
		f.bullet(m.Escape(fmt.Sprintf("Size: %dx%d", width, height))),
		f.bullet(m.Escape("File Size: "+byteSize(size))),
	)
}

// Document describes a received document.
func (f *Formatter) Document(fileName string, size int64, mimeType, fileID string) string {
	m := f.m
	return f.lines(
		"📄 "+m.Bold("Document Received!"),
		"",
		m.Bold("File Info:"),
		f.bullet(m.Escape("Name: ")+m.Code(orUnknown(fileName))),
		f.bullet(m.Escape("Size: "+byteSize(size))),
		f.bullet(m.Escape("MIME Type: ")+m.Code(orUnknown(mimeType))),
		f.bullet(m.Escape("File ID: ")+m.Code(orUnknown(fileID))),
	)
}

// UnknownCommand answers a command nobody registered.
func (f *Formatter) UnknownCommand(name string) string {
	return f.lines(
		f.m.Escape("❓ Unknown command: ")+f.m.Code(f.cmd(name)),
		f.m.Escape("Send ")+f.m.Code(f.cmd("help"))+f.m.Escape(" for available commands."),
	)
}

// HandlerFailure is sent when a handler returned an error or panicked.
func (f *Formatter) HandlerFailure() string {
	return f.m.Escape("🙇 Sorry, something went wrong while handling your request. Please try again.")
}

// HandlerTimeout is sent when a handler exceeded its time budget.
func (f *Formatter) HandlerTimeout() string {
	return f.m.Escape("⌛ That took too long to answer. Please try again later.")
}

func byteSize(size int64) string {
	if size <= 0 {
		return unknownValue
	}
	return fmt.Sprintf("%d bytes (%s)", size, humanize.Bytes(uint64(size)))
}

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
