package usecases

import (
	"context"
	"sync"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

const (
	testGuildID        = snowflake.ID(1)
	testVoiceChannelID = snowflake.ID(100)
	testTextChannelID  = snowflake.ID(200)
	testRequesterID    = snowflake.ID(300)
)

type mockVoiceSession struct {
	mu sync.Mutex

	channelID  snowflake.ID
	played     []string
	callbacks  []func(error)
	playErrs   map[string]error
	pauseErr   error
	resumeErr  error
	moveErr    error
	pauses     int
	resumes    int
	stops      int
	disconnect int
	moves      []snowflake.ID
}

func newMockVoiceSession(channelID snowflake.ID) *mockVoiceSession {
	return &mockVoiceSession{
		channelID: channelID,
		playErrs:  make(map[string]error),
	}
}

func (m *mockVoiceSession) ChannelID() snowflake.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channelID
}

func (m *mockVoiceSession) MoveTo(_ context.Context, channelID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveErr != nil {
		return m.moveErr
	}
	m.moves = append(m.moves, channelID)
	m.channelID = channelID
	return nil
}

func (m *mockVoiceSession) Play(_ context.Context, streamURL string, onFinished func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.playErrs[streamURL]; err != nil {
		return err
	}
	m.played = append(m.played, streamURL)
	m.callbacks = append(m.callbacks, onFinished)
	return nil
}

func (m *mockVoiceSession) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	return m.pauseErr
}

func (m *mockVoiceSession) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	return m.resumeErr
}

func (m *mockVoiceSession) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *mockVoiceSession) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnect++
	return nil
}

func (m *mockVoiceSession) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

// callback returns the completion callback of the i-th successful Play call.
func (m *mockVoiceSession) callback(t *testing.T, i int) func(error) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.callbacks) {
		t.Fatalf("expected at least %d Play calls, got %d", i+1, len(m.callbacks))
	}
	return m.callbacks[i]
}

type mockVoiceConnector struct {
	mu       sync.Mutex
	session  *mockVoiceSession
	err      error
	connects []snowflake.ID
}

func (m *mockVoiceConnector) Connect(
	_ context.Context,
	_, channelID snowflake.ID,
) (ports.VoiceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects = append(m.connects, channelID)
	if m.err != nil {
		return nil, m.err
	}
	if m.session == nil {
		m.session = newMockVoiceSession(channelID)
	}
	m.session.channelID = channelID
	return m.session, nil
}

// mockResolver resolves every query to "stream://<query>" unless told otherwise.
type mockResolver struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string

	// started receives the query when a resolution begins, if non-nil.
	started chan string
	// release blocks resolution until closed, if non-nil.
	release chan struct{}
}

func newMockResolver() *mockResolver {
	return &mockResolver{errs: make(map[string]error)}
}

func (m *mockResolver) Resolve(
	ctx context.Context,
	query *domain.SearchQuery,
) (*domain.TrackMetadata, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query.Query)
	err := m.errs[query.Query]
	started, release := m.started, m.release
	m.mu.Unlock()

	if started != nil {
		started <- query.Query
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return &domain.TrackMetadata{
		StreamURL:  "stream://" + query.Query,
		Title:      query.Query,
		SourceName: "youtube",
	}, nil
}

type mockEventPublisher struct {
	mu                sync.Mutex
	trackEnded        []domain.TrackEndedEvent
	playbackStarted   []domain.PlaybackStartedEvent
	trackFailed       []domain.TrackFailedEvent
	playbackExhausted []domain.PlaybackExhaustedEvent
}

func (m *mockEventPublisher) PublishTrackEnded(event domain.TrackEndedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackEnded = append(m.trackEnded, event)
}

func (m *mockEventPublisher) PublishPlaybackStarted(event domain.PlaybackStartedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackStarted = append(m.playbackStarted, event)
}

func (m *mockEventPublisher) PublishTrackFailed(event domain.TrackFailedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackFailed = append(m.trackFailed, event)
}

func (m *mockEventPublisher) PublishPlaybackExhausted(event domain.PlaybackExhaustedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackExhausted = append(m.playbackExhausted, event)
}

func (m *mockEventPublisher) lastTrackEnded(t *testing.T) domain.TrackEndedEvent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.trackEnded) == 0 {
		t.Fatal("expected a TrackEndedEvent")
	}
	return m.trackEnded[len(m.trackEnded)-1]
}

func (m *mockEventPublisher) failed() []domain.TrackFailedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TrackFailedEvent(nil), m.trackFailed...)
}

func (m *mockEventPublisher) exhausted() []domain.PlaybackExhaustedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PlaybackExhaustedEvent(nil), m.playbackExhausted...)
}

type controllerFixture struct {
	ctrl      *GuildPlaybackController
	connector *mockVoiceConnector
	resolver  *mockResolver
	publisher *mockEventPublisher
}

func newControllerFixture() *controllerFixture {
	f := &controllerFixture{
		connector: &mockVoiceConnector{},
		resolver:  newMockResolver(),
		publisher: &mockEventPublisher{},
	}
	f.ctrl = NewGuildPlaybackController(testGuildID, f.deps())
	return f
}

func (f *controllerFixture) deps() ControllerDeps {
	return ControllerDeps{
		Connector: f.connector,
		Resolver:  f.resolver,
		Publisher: f.publisher,
	}
}

func (f *controllerFixture) session() *mockVoiceSession {
	f.connector.mu.Lock()
	defer f.connector.mu.Unlock()
	return f.connector.session
}

func (f *controllerFixture) enqueue(t *testing.T, query string) *EnqueueOutput {
	t.Helper()
	out, err := f.ctrl.Enqueue(context.Background(), EnqueueInput{
		Query:                 query,
		RequesterID:           testRequesterID,
		RequesterName:         "alice",
		VoiceChannelID:        testVoiceChannelID,
		NotificationChannelID: testTextChannelID,
	})
	if err != nil {
		t.Fatalf("Enqueue(%q) returned error: %v", query, err)
	}
	return out
}

// finish fires the completion callback of the i-th played stream and delivers
// the resulting event to the controller, the way the event handler does.
func (f *controllerFixture) finish(t *testing.T, i int, playbackErr error) {
	t.Helper()
	f.session().callback(t, i)(playbackErr)
	event := f.publisher.lastTrackEnded(t)
	f.ctrl.HandleTrackEnded(context.Background(), event.Generation, event.Err)
}

func nowPlayingQuery(ctrl *GuildPlaybackController) string {
	snapshot := ctrl.Queue()
	if snapshot.NowPlaying == nil {
		return ""
	}
	return snapshot.NowPlaying.Query
}
