package status

import "context"

type contextKey struct{}

// WithChannel returns a context carrying ch. The channel should be buffered.
func WithChannel(ctx context.Context, ch chan<- Update) context.Context {
	return context.WithValue(ctx, contextKey{}, ch)
}

func getChannel(ctx context.Context) chan<- Update {
	if ctx == nil {
		return nil
	}
	ch, _ := ctx.Value(contextKey{}).(chan<- Update)
	return ch
}

// HasChannel reports whether ctx carries a status channel
func HasChannel(ctx context.Context) bool {
	return getChannel(ctx) != nil
}
