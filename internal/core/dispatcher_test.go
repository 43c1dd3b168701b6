package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keepmind9/featurebot/internal/format"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFiles struct {
	size int64
	err  error
	ids  []string
}

func (m *mockFiles) FileSize(_ context.Context, fileID string) (int64, error) {
	m.ids = append(m.ids, fileID)
	return m.size, m.err
}

var testSource = Source{
	EventID:      "evt-1",
	Platform:     "telegram",
	Conversation: "100",
	UserID:       "42",
	UserName:     "Alice",
}

func newTestDispatcher(t *testing.T, deps Deps, extra ...Command) (*Dispatcher, *test.Hook) {
	t.Helper()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	r := NewRegistry()
	for _, cmd := range DefaultCommands() {
		require.NoError(t, r.Register(cmd))
	}
	for _, cmd := range extra {
		require.NoError(t, r.Register(cmd))
	}
	require.NoError(t, r.Seal())

	deps.Log = log
	if deps.Format == nil {
		deps.Format = format.New(format.TelegramMarkdown{}, "/", "test")
	}
	return NewDispatcher(r, deps, 50*time.Millisecond), hook
}

func entriesAt(hook *test.Hook, level logrus.Level) []logrus.Entry {
	var out []logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			out = append(out, *e)
		}
	}
	return out
}

func command(name string, args ...string) TextCommand {
	return TextCommand{Source: testSource, Name: name, Args: args}
}

func TestDispatch_Calc(t *testing.T) {
	d, _ := newTestDispatcher(t, Deps{})

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{"precedence", []string{"2+2*3"}, "`2+2*3 = 8`"},
		{"args joined by spaces", []string{"(1", "+", "2)", "*", "3"}, "`(1 + 2) * 3 = 9`"},
		{"overflow", []string{"9**9**9**9"}, "too large to compute"},
		{"invalid character", []string{"__import__('os')"}, "Invalid character `_`"},
		{"division by zero", []string{"1/0"}, "Division by zero"},
		{"no args", nil, "Please provide a math expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			reply, ok := d.Dispatch(context.Background(), command("calc", tt.args...))
			assert.True(t, ok)
			assert.Contains(t, reply.Text, tt.contains)
			assert.Nil(t, reply.Keyboard)
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestDispatch_Weather(t *testing.T) {
	d, _ := newTestDispatcher(t, Deps{})

	reply, ok := d.Dispatch(context.Background(), command("weather"))
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "Please specify a city")

	reply, ok = d.Dispatch(context.Background(), command("weather", "New", "York"))
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "Weather for New York")
}

func TestDispatch_Start_HasKeyboard(t *testing.T) {
	d, _ := newTestDispatcher(t, Deps{})

	reply, ok := d.Dispatch(context.Background(), command("start"))
	require.True(t, ok)
	assert.Contains(t, reply.Text, "Welcome Alice")
	require.Len(t, reply.Keyboard, 4)

	var actions []Action
	for _, row := range reply.Keyboard {
		require.Len(t, row, 1)
		actions = append(actions, row[0].Action)
	}
	assert.Equal(t, Actions(), actions)
	assert.Equal(t, "📚 Help", reply.Keyboard[0][0].Label)
}

func TestDispatch_Time_UsesClock(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	d, _ := newTestDispatcher(t, Deps{Now: func() time.Time { return now }})

	reply, ok := d.Dispatch(context.Background(), command("time"))
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "2025-01-02 03:04:05")
}

func TestDispatch_Joke_UsesPick(t *testing.T) {
	var gotN int
	d, _ := newTestDispatcher(t, Deps{Pick: func(n int) int {
		gotN = n
		return 3
	}})

	reply, ok := d.Dispatch(context.Background(), command("joke"))
	assert.True(t, ok)
	assert.Equal(t, 8, gotN)
	assert.Contains(t, reply.Text, `Foo Bar\! 🍺`)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, hook := newTestDispatcher(t, Deps{})

	reply, ok := d.Dispatch(context.Background(), command("nope"))
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "Unknown command")
	assert.Empty(t, entriesAt(hook, logrus.WarnLevel))
}

func TestDispatch_Callback(t *testing.T) {
	d, _ := newTestDispatcher(t, Deps{})

	reply, ok := d.Dispatch(context.Background(), CallbackPress{Source: testSource, Tag: "help"})
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "Detailed Help")
}

func TestDispatch_UnregisteredCallback_LogsOneWarning(t *testing.T) {
	d, hook := newTestDispatcher(t, Deps{})

	reply, ok := d.Dispatch(context.Background(), CallbackPress{Source: testSource, Tag: "unregistered"})
	assert.False(t, ok)
	assert.Equal(t, Reply{}, reply)

	warnings := entriesAt(hook, logrus.WarnLevel)
	require.Len(t, warnings, 1)
	assert.Equal(t, "unregistered", warnings[0].Data["tag"])
}

func TestDispatch_PlainText_Echo(t *testing.T) {
	d, _ := newTestDispatcher(t, Deps{})

	reply, ok := d.Dispatch(context.Background(), PlainText{Source: testSource, Text: "hi 🙂"})
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "Words: 2")
	assert.Contains(t, reply.Text, "Characters: 4")
	assert.Contains(t, reply.Text, `non\-ASCII: Yes`)
}

func TestDispatch_Photo_FileSizeLookup(t *testing.T) {
	photo := Photo{Source: testSource, FileID: "AgAC", Width: 800, Height: 600, Size: 1000}

	t.Run("lookup wins", func(t *testing.T) {
		files := &mockFiles{size: 4096}
		d, _ := newTestDispatcher(t, Deps{Files: files})

		reply, ok := d.Dispatch(context.Background(), photo)
		assert.True(t, ok)
		assert.Contains(t, reply.Text, "Size: 800x600")
		assert.Contains(t, reply.Text, "4096 bytes")
		assert.Equal(t, []string{"AgAC"}, files.ids)
	})

	t.Run("lookup failure falls back", func(t *testing.T) {
		files := &mockFiles{err: errors.New("api down")}
		d, hook := newTestDispatcher(t, Deps{Files: files})

		reply, ok := d.Dispatch(context.Background(), photo)
		assert.True(t, ok)
		assert.Contains(t, reply.Text, "1000 bytes")
		assert.Len(t, entriesAt(hook, logrus.WarnLevel), 1)
	})

	t.Run("no inspector", func(t *testing.T) {
		d, _ := newTestDispatcher(t, Deps{})

		reply, _ := d.Dispatch(context.Background(), photo)
		assert.Contains(t, reply.Text, "1000 bytes")
	})
}

func TestDispatch_Document(t *testing.T) {
	files := &mockFiles{size: 99}
	d, _ := newTestDispatcher(t, Deps{Files: files})

	doc := Document{Source: testSource, FileID: "BQAC", FileName: "a.pdf", Size: 2048, MimeType: "application/pdf"}
	reply, ok := d.Dispatch(context.Background(), doc)
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "`a.pdf`")
	assert.Contains(t, reply.Text, "2048 bytes")
	assert.Contains(t, reply.Text, "`application/pdf`")
	assert.Empty(t, files.ids, "inline size is used when present")
}

func TestDispatch_HandlerError(t *testing.T) {
	failing := Command{Name: "fail", Handler: func(context.Context, Deps, Event) (Reply, error) {
		return Reply{}, errors.New("boom")
	}}
	d, hook := newTestDispatcher(t, Deps{}, failing)

	reply, ok := d.Dispatch(context.Background(), command("fail"))
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "something went wrong")
	require.Len(t, entriesAt(hook, logrus.ErrorLevel), 1)
}

func TestDispatch_HandlerPanic(t *testing.T) {
	panicking := Command{Name: "panic", Handler: func(context.Context, Deps, Event) (Reply, error) {
		panic("kaboom")
	}}
	d, hook := newTestDispatcher(t, Deps{}, panicking)

	reply, ok := d.Dispatch(context.Background(), command("panic"))
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "something went wrong")

	errs := entriesAt(hook, logrus.ErrorLevel)
	require.Len(t, errs, 1)
	err, _ := errs[0].Data["error"].(error)
	assert.ErrorIs(t, err, ErrHandlerFailure)
}

func TestDispatch_HandlerTimeout(t *testing.T) {
	slow := Command{Name: "slow", Handler: func(context.Context, Deps, Event) (Reply, error) {
		time.Sleep(500 * time.Millisecond)
		return Reply{Text: "late"}, nil
	}}
	d, hook := newTestDispatcher(t, Deps{}, slow)

	start := time.Now()
	reply, ok := d.Dispatch(context.Background(), command("slow"))
	assert.True(t, ok)
	assert.Contains(t, reply.Text, "took too long")
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	errs := entriesAt(hook, logrus.ErrorLevel)
	require.Len(t, errs, 1)
	assert.Equal(t, "handler-timed-out", errs[0].Message)
}

func TestDispatch_CancelledIsNotATimeout(t *testing.T) {
	started := make(chan struct{})
	blocking := Command{Name: "blocking", Handler: func(ctx context.Context, _ Deps, _ Event) (Reply, error) {
		close(started)
		<-ctx.Done()
		return Reply{}, ctx.Err()
	}}
	d, hook := newTestDispatcher(t, Deps{}, blocking)
	d.timeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	reply, ok := d.Dispatch(ctx, command("blocking"))
	assert.False(t, ok)
	assert.Empty(t, reply.Text)
	assert.Empty(t, entriesAt(hook, logrus.ErrorLevel))

	infos := entriesAt(hook, logrus.InfoLevel)
	require.NotEmpty(t, infos)
	assert.Equal(t, "handler-cancelled", infos[len(infos)-1].Message)
}

func TestDispatch_Deterministic(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	deps := Deps{Now: func() time.Time { return now }, Pick: func(int) int { return 0 }}
	d, _ := newTestDispatcher(t, deps)

	events := []Event{
		command("help"),
		command("time"),
		command("joke"),
		command("calc", "7*6"),
		command("info"),
		PlainText{Source: testSource, Text: "same text"},
	}
	for _, ev := range events {
		first, _ := d.Dispatch(context.Background(), ev)
		second, _ := d.Dispatch(context.Background(), ev)
		assert.Equal(t, first, second)
	}
}
