package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/keepmind9/featurebot/internal/format"
	"github.com/keepmind9/featurebot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// DefaultCommands returns the built-in command table
func DefaultCommands() []Command {
	return []Command{
		{Name: "start", Description: "Show welcome message with quick actions", Handler: handleStart},
		{Name: "help", Description: "Show detailed help", Handler: handleHelp},
		{Name: "time", Description: "Get current date and time", Handler: handleTime},
		{Name: "weather", Description: "Get weather for a city (placeholder)", Handler: handleWeather},
		{Name: "joke", Description: "Get a random programming joke", Handler: handleJoke},
		{Name: "calc", Description: "Calculate a math expression", Handler: handleCalc},
		{Name: "info", Description: "Get information about this bot", Handler: handleInfo},
	}
}

// RegisterDefaults registers the built-in commands and seals the registry
func RegisterDefaults(r *Registry) error {
	for _, cmd := range DefaultCommands() {
		if err := r.Register(cmd); err != nil {
			return fmt.Errorf("failed to register %s: %w", cmd.Name, err)
		}
	}
	return r.Seal()
}

// StartKeyboard is the quick-action keyboard attached to the welcome message
func StartKeyboard() Keyboard {
	return Keyboard{
		{{Label: "📚 Help", Action: ActionHelp}},
		{{Label: "⏰ Current Time", Action: ActionTime}},
		{{Label: "😄 Random Joke", Action: ActionJoke}},
		{{Label: "ℹ️ Bot Info", Action: ActionInfo}},
	}
}

func commandArgs(ev Event) []string {
	if cmd, ok := ev.(TextCommand); ok {
		return cmd.Args
	}
	return nil
}

func handleStart(_ context.Context, deps Deps, ev Event) (Reply, error) {
	return Reply{
		Text:     deps.Format.Welcome(ev.EventSource().UserName),
		Keyboard: StartKeyboard(),
	}, nil
}

func handleHelp(_ context.Context, deps Deps, _ Event) (Reply, error) {
	return Reply{Text: deps.Format.Help()}, nil
}

func handleTime(_ context.Context, deps Deps, _ Event) (Reply, error) {
	return Reply{Text: deps.Format.Time(deps.Now())}, nil
}

func handleWeather(_ context.Context, deps Deps, ev Event) (Reply, error) {
	args := commandArgs(ev)
	if len(args) == 0 {
		return Reply{Text: deps.Format.WeatherUsage()}, nil
	}
	return Reply{Text: deps.Format.Weather(strings.Join(args, " "))}, nil
}

func handleJoke(_ context.Context, deps Deps, _ Event) (Reply, error) {
	i := deps.Pick(len(jokes))
	if i < 0 || i >= len(jokes) {
		return Reply{}, fmt.Errorf("%w: joke index %d out of range", ErrHandlerFailure, i)
	}
	return Reply{Text: deps.Format.Joke(jokes[i])}, nil
}

func handleCalc(_ context.Context, deps Deps, ev Event) (Reply, error) {
	args := commandArgs(ev)
	if len(args) == 0 {
		return Reply{Text: deps.Format.CalcUsage()}, nil
	}

	expr := strings.Join(args, " ")
	result, err := deps.Calc.Evaluate(expr)
	if err != nil {
		deps.Log.WithFields(logrus.Fields{
			"expression": expr,
			"error":      err,
		}).Debug("calc-expression-rejected")
	}
	return Reply{Text: deps.Format.CalcResult(expr, result, err)}, nil
}

func handleInfo(_ context.Context, deps Deps, _ Event) (Reply, error) {
	return Reply{Text: deps.Format.Info()}, nil
}

func handleEcho(_ context.Context, deps Deps, ev Event) (Reply, error) {
	msg, ok := ev.(PlainText)
	if !ok {
		return Reply{}, fmt.Errorf("%w: echo got %T", ErrHandlerFailure, ev)
	}
	stats := format.Analyze(msg.Text)
	return Reply{Text: deps.Format.Echo(msg.UserName, msg.Text, stats)}, nil
}

func handlePhoto(ctx context.Context, deps Deps, ev Event) (Reply, error) {
	photo, ok := ev.(Photo)
	if !ok {
		return Reply{}, fmt.Errorf("%w: photo got %T", ErrHandlerFailure, ev)
	}
	size := lookupFileSize(ctx, deps, photo.FileID, photo.Size)
	return Reply{Text: deps.Format.Photo(photo.Width, photo.Height, size, photo.FileID)}, nil
}

func handleDocument(ctx context.Context, deps Deps, ev Event) (Reply, error) {
	doc, ok := ev.(Document)
	if !ok {
		return Reply{}, fmt.Errorf("%w: document got %T", ErrHandlerFailure, ev)
	}
	size := doc.Size
	if size <= 0 {
		size = lookupFileSize(ctx, deps, doc.FileID, doc.Size)
	}
	return Reply{Text: deps.Format.Document(doc.FileName, size, doc.MimeType, doc.FileID)}, nil
}

// lookupFileSize asks the platform for the stored size, falling back to the size
// reported inline with the update.
func lookupFileSize(ctx context.Context, deps Deps, fileID string, reported int64) int64 {
	if deps.Files == nil || fileID == "" {
		return reported
	}

	ctx, cancel := context.WithTimeout(ctx, constants.FileLookupTimeout)
	defer cancel()

	size, err := deps.Files.FileSize(ctx, fileID)
	if err != nil {
		deps.Log.WithFields(logrus.Fields{
			"file_id": fileID,
			"error":   err,
		}).Warn("file-size-lookup-failed")
		return reported
	}
	if size <= 0 {
		return reported
	}
	return size
}
