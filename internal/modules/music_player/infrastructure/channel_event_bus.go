package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// DefaultEventBufferSize is the default buffer size for event channels.
const DefaultEventBufferSize = 100

// Compile-time checks that ChannelEventBus implements ports interfaces.
var (
	_ ports.EventPublisher  = (*ChannelEventBus)(nil)
	_ ports.EventSubscriber = (*ChannelEventBus)(nil)
)

// ChannelEventBus provides a channel-based event bus for async event handling.
// It implements both EventPublisher and EventSubscriber interfaces.
// Each event type has its own buffered channel and dispatcher goroutine, so
// handlers for one event type never delay another.
type ChannelEventBus struct {
	// Channels for event delivery
	trackEnded        chan domain.TrackEndedEvent
	playbackStarted   chan domain.PlaybackStartedEvent
	trackFailed       chan domain.TrackFailedEvent
	playbackExhausted chan domain.PlaybackExhaustedEvent

	// Handler slices for callback-based subscription
	trackEndedHandlers        []func(context.Context, domain.TrackEndedEvent)
	playbackStartedHandlers   []func(context.Context, domain.PlaybackStartedEvent)
	trackFailedHandlers       []func(context.Context, domain.TrackFailedEvent)
	playbackExhaustedHandlers []func(context.Context, domain.PlaybackExhaustedEvent)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// NewChannelEventBus creates a new ChannelEventBus with the given buffer size.
func NewChannelEventBus(bufferSize int) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &ChannelEventBus{
		trackEnded:        make(chan domain.TrackEndedEvent, bufferSize),
		playbackStarted:   make(chan domain.PlaybackStartedEvent, bufferSize),
		trackFailed:       make(chan domain.TrackFailedEvent, bufferSize),
		playbackExhausted: make(chan domain.PlaybackExhaustedEvent, bufferSize),
		ctx:               ctx,
		cancel:            cancel,
	}

	// Start dispatcher goroutines
	bus.wg.Add(4)
	go dispatch(bus, bus.trackEnded, func() []func(context.Context, domain.TrackEndedEvent) {
		return bus.trackEndedHandlers
	})
	go dispatch(bus, bus.playbackStarted, func() []func(context.Context, domain.PlaybackStartedEvent) {
		return bus.playbackStartedHandlers
	})
	go dispatch(bus, bus.trackFailed, func() []func(context.Context, domain.TrackFailedEvent) {
		return bus.trackFailedHandlers
	})
	go dispatch(bus, bus.playbackExhausted, func() []func(context.Context, domain.PlaybackExhaustedEvent) {
		return bus.playbackExhaustedHandlers
	})

	return bus
}

// dispatch delivers events from ch to the handlers returned by handlers until
// the bus is closed. handlers is called with b.mu read-locked.
func dispatch[E any](
	b *ChannelEventBus,
	ch <-chan E,
	handlers func() []func(context.Context, E),
) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			b.mu.RLock()
			current := handlers()
			b.mu.RUnlock()
			for _, handler := range current {
				handler(b.ctx, event)
			}
		}
	}
}

// publish sends event on ch without blocking.
// If the channel buffer is full, the event is dropped with a warning.
func publish[E any](b *ChannelEventBus, ch chan<- E, event E, eventType string, guildID snowflake.ID) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", eventType)
		return
	}

	select {
	case ch <- event:
		slog.Debug("published event", "type", eventType, "guild", guildID)
	default:
		slog.Warn("event buffer full, dropping event", "type", eventType, "guild", guildID)
	}
}

// --- EventPublisher interface ---

// PublishTrackEnded publishes a TrackEndedEvent.
func (b *ChannelEventBus) PublishTrackEnded(event domain.TrackEndedEvent) {
	publish(b, b.trackEnded, event, "TrackEnded", event.GuildID)
}

// PublishPlaybackStarted publishes a PlaybackStartedEvent.
func (b *ChannelEventBus) PublishPlaybackStarted(event domain.PlaybackStartedEvent) {
	publish(b, b.playbackStarted, event, "PlaybackStarted", event.GuildID)
}

// PublishTrackFailed publishes a TrackFailedEvent.
func (b *ChannelEventBus) PublishTrackFailed(event domain.TrackFailedEvent) {
	publish(b, b.trackFailed, event, "TrackFailed", event.GuildID)
}

// PublishPlaybackExhausted publishes a PlaybackExhaustedEvent.
func (b *ChannelEventBus) PublishPlaybackExhausted(event domain.PlaybackExhaustedEvent) {
	publish(b, b.playbackExhausted, event, "PlaybackExhausted", event.GuildID)
}

// --- EventSubscriber interface ---

// OnTrackEnded registers a handler for TrackEndedEvent.
func (b *ChannelEventBus) OnTrackEnded(handler func(context.Context, domain.TrackEndedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackEndedHandlers = append(b.trackEndedHandlers, handler)
}

// OnPlaybackStarted registers a handler for PlaybackStartedEvent.
func (b *ChannelEventBus) OnPlaybackStarted(
	handler func(context.Context, domain.PlaybackStartedEvent),
) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playbackStartedHandlers = append(b.playbackStartedHandlers, handler)
}

// OnTrackFailed registers a handler for TrackFailedEvent.
func (b *ChannelEventBus) OnTrackFailed(handler func(context.Context, domain.TrackFailedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackFailedHandlers = append(b.trackFailedHandlers, handler)
}

// OnPlaybackExhausted registers a handler for PlaybackExhaustedEvent.
func (b *ChannelEventBus) OnPlaybackExhausted(
	handler func(context.Context, domain.PlaybackExhaustedEvent),
) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playbackExhaustedHandlers = append(b.playbackExhaustedHandlers, handler)
}

// Close closes all event channels and stops dispatchers.
// After calling Close, publishing will no longer send events.
func (b *ChannelEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	// Cancel context to stop dispatchers
	b.cancel()

	// Close channels to unblock any pending reads
	close(b.trackEnded)
	close(b.playbackStarted)
	close(b.trackFailed)
	close(b.playbackExhausted)

	// Wait for dispatchers to finish
	b.wg.Wait()

	slog.Debug("channel event bus closed")
}
