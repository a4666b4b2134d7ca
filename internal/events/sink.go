package events

import "context"

// NopSink discards all envelopes silently. Useful for tests or turns with
// no attached client connection.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, e Envelope) {}

// ChanSink sends envelopes to a channel, dropping them rather than
// blocking if the channel is full or the context is done. The channel
// should be buffered; sizing it is the caller's responsibility.
type ChanSink struct {
	ch chan<- Envelope
}

// NewChanSink creates a sink that forwards to ch.
func NewChanSink(ch chan<- Envelope) *ChanSink {
	return &ChanSink{ch: ch}
}

func (s *ChanSink) Emit(ctx context.Context, e Envelope) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// MultiSink fans an envelope out to every configured sink, in order. Nil
// sinks passed to NewMultiSink are filtered out.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink that dispatches to every non-nil sink in
// sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (s *MultiSink) Emit(ctx context.Context, e Envelope) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, e)
	}
}

// CallbackSink wraps a plain function as a Sink, for inline handling in
// tests and simple callers.
type CallbackSink struct {
	fn func(ctx context.Context, e Envelope)
}

// NewCallbackSink creates a sink that calls fn for every envelope.
func NewCallbackSink(fn func(ctx context.Context, e Envelope)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

func (s *CallbackSink) Emit(ctx context.Context, e Envelope) {
	if s.fn != nil {
		s.fn(ctx, e)
	}
}
