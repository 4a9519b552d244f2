// Package status carries progress updates from the synthesis pipeline to
// whoever is listening, through a channel stored in the context. Library code
// reports what it is doing; the CLI decides how to render it.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultChannelSize is the default buffer size for the status channel
	DefaultChannelSize = 100

	// DefaultFlushTimeout bounds how long cleanup waits for queued updates
	DefaultFlushTimeout = 5 * time.Second
)

// Level represents the severity level of a status update
type Level string

const (
	LevelInfo     Level = "info"
	LevelProgress Level = "progress"
	LevelSuccess  Level = "success"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
)

// Update is one status message
type Update struct {
	Level   Level
	Message string

	// Stack is the stack the update concerns (e.g. "lukachio", "shared")
	Stack string

	// Resource is the logical id being worked on (e.g. "hostzone", "site-distribution")
	Resource string

	// Action is what happens to it (e.g. "declaring", "create", "replace", "saving")
	Action string

	Metadata  map[string]any
	Timestamp time.Time
}

// NewUpdate creates a new Update with the current timestamp
func NewUpdate(level Level, message string) Update {
	return Update{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithStack sets the stack the update concerns
func (u Update) WithStack(stack string) Update {
	u.Stack = stack
	return u
}

// WithResource sets the resource the update concerns
func (u Update) WithResource(resource string) Update {
	u.Resource = resource
	return u
}

// WithAction sets the action being performed
func (u Update) WithAction(action string) Update {
	u.Action = action
	return u
}

// WithMetadata adds one metadata entry, leaving the receiver's map untouched
func (u Update) WithMetadata(key string, value any) Update {
	md := make(map[string]any, len(u.Metadata)+1)
	for k, v := range u.Metadata {
		md[k] = v
	}
	md[key] = value
	u.Metadata = md
	return u
}

// Send delivers update to the channel stored in ctx, if any.
// It never blocks: the update is dropped when the channel is full.
func Send(ctx context.Context, update Update) {
	ch := getChannel(ctx)
	if ch == nil {
		return
	}

	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	select {
	case ch <- update:
	default:
	}
}

// Sendf sends a formatted status update message
func Sendf(ctx context.Context, level Level, format string, args ...any) {
	Send(ctx, NewUpdate(level, fmt.Sprintf(format, args...)))
}

func Info(ctx context.Context, message string)     { Send(ctx, NewUpdate(LevelInfo, message)) }
func Progress(ctx context.Context, message string) { Send(ctx, NewUpdate(LevelProgress, message)) }
func Success(ctx context.Context, message string)  { Send(ctx, NewUpdate(LevelSuccess, message)) }
func Warning(ctx context.Context, message string)  { Send(ctx, NewUpdate(LevelWarning, message)) }
func Error(ctx context.Context, message string)    { Send(ctx, NewUpdate(LevelError, message)) }

func Infof(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelInfo, format, args...)
}

func Progressf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelProgress, format, args...)
}

func Successf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelSuccess, format, args...)
}

func Warningf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelWarning, format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelError, format, args...)
}

// Handler processes one status update
type Handler func(Update)

// CleanupFunc closes the status channel and waits for the handler to drain it
type CleanupFunc func()

// StartHandler attaches a status channel to ctx and consumes it with handler
// on a separate goroutine. The returned cleanup must be deferred.
//
//	ctx, cleanup := status.StartHandler(ctx, func(u status.Update) {
//	    slog.Info(u.Message, "stack", u.Stack)
//	})
//	defer cleanup()
func StartHandler(ctx context.Context, handler Handler) (context.Context, CleanupFunc) {
	return StartHandlerWithOptions(ctx, handler, DefaultChannelSize, DefaultFlushTimeout)
}

// StartHandlerWithOptions is StartHandler with a custom channel size and flush timeout
func StartHandlerWithOptions(ctx context.Context, handler Handler, channelSize int, flushTimeout time.Duration) (context.Context, CleanupFunc) {
	ch := make(chan Update, channelSize)
	ctx = WithChannel(ctx, ch)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range ch {
			handler(update)
		}
	}()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			close(ch)

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(flushTimeout):
			}
		})
	}

	return ctx, cleanup
}
