package bot

import (
	"regexp"
	"strings"

	"github.com/keepmind9/featurebot/internal/core"
)

// commandParser recognises "<prefix>name[@botname] args..." messages
type commandParser struct {
	prefix  string
	pattern *regexp.Regexp
	botName string // own username; empty accepts any @botname suffix
}

func newCommandParser(prefix string) *commandParser {
	if prefix == "" {
		prefix = core.DefaultCommandPrefix
	}
	return &commandParser{
		prefix:  prefix,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(\w+)(?:@(\w+))?`),
	}
}

// setBotName makes commands addressed to other bots ("/start@otherbot") be ignored
func (p *commandParser) setBotName(name string) {
	p.botName = name
}

// parse returns the command name and the whitespace separated words after the
// first one. addressed is false when the command names another bot.
func (p *commandParser) parse(text string) (name string, args []string, addressed bool, ok bool) {
	m := p.pattern.FindStringSubmatchIndex(text)
	if m == nil {
		return "", nil, false, false
	}
	name = text[m[2]:m[3]]
	addressed = true
	if m[4] >= 0 && p.botName != "" {
		addressed = strings.EqualFold(text[m[4]:m[5]], p.botName)
	}
	return name, strings.Fields(text)[1:], addressed, true
}

// classifyText turns message text into a TextCommand or PlainText. Blank text
// and commands for other bots yield nil.
func (p *commandParser) classifyText(src core.Source, text string) core.Event {
	if name, args, addressed, ok := p.parse(text); ok {
		if !addressed {
			return nil
		}
		return core.TextCommand{Source: src, Name: name, Args: args}
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return core.PlainText{Source: src, Text: text}
}
