package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

func TestChannelEventBus_DeliversToAllHandlers(t *testing.T) {
	bus := NewChannelEventBus(10)
	defer bus.Close()

	received := make(chan int, 2)
	bus.OnTrackEnded(func(_ context.Context, _ domain.TrackEndedEvent) { received <- 1 })
	bus.OnTrackEnded(func(_ context.Context, _ domain.TrackEndedEvent) { received <- 2 })

	bus.PublishTrackEnded(domain.TrackEndedEvent{GuildID: snowflake.ID(1)})

	seen := map[int]bool{}
	for range 2 {
		select {
		case id := <-received:
			seen[id] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for handlers")
		}
	}
	if !seen[1] || !seen[2] {
		t.Errorf("expected both handlers to run, got %v", seen)
	}
}

func TestChannelEventBus_PreservesOrderPerEventType(t *testing.T) {
	bus := NewChannelEventBus(10)
	defer bus.Close()

	received := make(chan uint64, 5)
	bus.OnTrackEnded(func(_ context.Context, e domain.TrackEndedEvent) { received <- e.Generation })

	for gen := uint64(1); gen <= 5; gen++ {
		bus.PublishTrackEnded(domain.TrackEndedEvent{GuildID: 1, Generation: gen})
	}

	for want := uint64(1); want <= 5; want++ {
		select {
		case got := <-received:
			if got != want {
				t.Fatalf("expected generation %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestChannelEventBus_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	bus := NewChannelEventBus(1)
	defer bus.Close()

	block := make(chan struct{})
	bus.OnTrackFailed(func(_ context.Context, _ domain.TrackFailedEvent) { <-block })

	done := make(chan struct{})
	go func() {
		for range 10 {
			bus.PublishTrackFailed(domain.TrackFailedEvent{GuildID: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}
	close(block)
}

func TestChannelEventBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := NewChannelEventBus(10)

	called := make(chan struct{}, 1)
	bus.OnPlaybackExhausted(func(_ context.Context, _ domain.PlaybackExhaustedEvent) {
		called <- struct{}{}
	})

	bus.Close()
	bus.Close()
	bus.PublishPlaybackExhausted(domain.PlaybackExhaustedEvent{GuildID: 1})

	select {
	case <-called:
		t.Error("expected no delivery after close")
	case <-time.After(50 * time.Millisecond):
	}
}
