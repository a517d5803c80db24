package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// voiceConnectionTimeout is the maximum time to wait for voice connection to be established.
const voiceConnectionTimeout = 10 * time.Second

// playerUpdateTimeout bounds player updates issued without a caller context.
const playerUpdateTimeout = 5 * time.Second

// Errors reported to completion callbacks.
var (
	errTrackLoadFailed = errors.New("lavalink failed to load the track")
	errTrackStuck      = errors.New("lavalink track got stuck")
)

// pendingVoiceConnection tracks the state of a pending voice connection.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

// onEvent marks an event as received and signals ready if both events are present.
func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && p.hasVoiceServer {
		select {
		case <-p.ready:
			// Already closed
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer buffers voice events to ensure both VoiceStateUpdate and
// VoiceServerUpdate are received before forwarding to Lavalink.
// This prevents "Partial Lavalink voice state" errors when events arrive out of order.
type voiceEventBuffer struct {
	mu sync.Mutex

	// From VoiceStateUpdate
	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	// From VoiceServerUpdate
	hasVoiceServer bool
	token          string
	endpoint       string
}

// setVoiceState stores voice state data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceState(channelID *snowflake.ID, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceState = true
	b.channelID = channelID
	b.sessionID = sessionID

	return b.hasVoiceState && b.hasVoiceServer
}

// setVoiceServer stores voice server data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceServer(token, endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceServer = true
	b.token = token
	b.endpoint = endpoint

	return b.hasVoiceState && b.hasVoiceServer
}

// getData returns the buffered data and resets the buffer.
func (b *voiceEventBuffer) getData() (channelID *snowflake.ID, sessionID, token, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channelID = b.channelID
	sessionID = b.sessionID
	token = b.token
	endpoint = b.endpoint

	// Reset buffer
	b.hasVoiceState = false
	b.hasVoiceServer = false
	b.channelID = nil
	b.sessionID = ""
	b.token = ""
	b.endpoint = ""

	return
}

// trackCallback is the completion callback registered for the track a guild is playing.
type trackCallback struct {
	encoded    string
	onFinished func(err error)
	lastErr    error
}

// LavalinkAdapter wraps DisGoLink to implement the voice and resolver ports.
type LavalinkAdapter struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID

	pendingMu sync.Mutex
	pending   map[snowflake.ID]*pendingVoiceConnection

	// voiceBuffers holds buffered voice events per guild to handle out-of-order events
	voiceBufferMu sync.Mutex
	voiceBuffers  map[snowflake.ID]*voiceEventBuffer

	callbackMu sync.Mutex
	callbacks  map[snowflake.ID]*trackCallback
}

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
}

// NewLavalinkAdapter creates a new LavalinkAdapter.
func NewLavalinkAdapter(
	session *discordgo.Session,
	config LavalinkConfig,
) (*LavalinkAdapter, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := newLavalinkAdapter(session, botID)

	// Create DisGoLink client
	link := disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
	)
	adapter.link = link

	// Add Lavalink node
	node, err := link.AddNode(context.Background(), disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

func newLavalinkAdapter(session *discordgo.Session, botID snowflake.ID) *LavalinkAdapter {
	return &LavalinkAdapter{
		session:      session,
		botID:        botID,
		pending:      make(map[snowflake.ID]*pendingVoiceConnection),
		voiceBuffers: make(map[snowflake.ID]*voiceEventBuffer),
		callbacks:    make(map[snowflake.ID]*trackCallback),
	}
}

// Close disconnects from every Lavalink node.
func (c *LavalinkAdapter) Close() {
	c.link.Close()
}

// Connect joins a voice channel and returns a session that plays through Lavalink.
func (c *LavalinkAdapter) Connect(
	ctx context.Context,
	guildID, channelID snowflake.ID,
) (ports.VoiceSession, error) {
	if err := c.joinChannel(ctx, guildID, channelID); err != nil {
		return nil, err
	}
	return &lavalinkSession{adapter: c, guildID: guildID, channelID: channelID}, nil
}

// joinChannel connects to a voice channel.
// It waits for both VoiceStateUpdate and VoiceServerUpdate events before returning.
func (c *LavalinkAdapter) joinChannel(ctx context.Context, guildID, channelID snowflake.ID) error {
	// Create pending connection tracker
	pending := &pendingVoiceConnection{
		ready: make(chan struct{}),
	}

	c.pendingMu.Lock()
	c.pending[guildID] = pending
	c.pendingMu.Unlock()

	// Cleanup pending entry when done
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, guildID)
		c.pendingMu.Unlock()
	}()

	// Use discordgo to update voice state
	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, false)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	// Wait for voice connection to be established (both events received)
	select {
	case <-pending.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-time.After(voiceConnectionTimeout):
		return fmt.Errorf("timeout waiting for voice connection")
	}
}

// Resolve loads the query on the best Lavalink node. The returned StreamURL is
// the encoded track, which only a lavalinkSession can play.
func (c *LavalinkAdapter) Resolve(
	ctx context.Context,
	query *domain.SearchQuery,
) (*domain.TrackMetadata, error) {
	node := c.link.BestNode()
	if node == nil {
		return nil, fmt.Errorf("no available Lavalink node")
	}

	result, err := node.LoadTracks(ctx, query.Identifier())
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	return convertLoadResult(result)
}

// convertLoadResult picks the first playable track of a load result.
func convertLoadResult(result *lavalink.LoadResult) (*domain.TrackMetadata, error) {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return convertTrack(data), nil

	case lavalink.Playlist:
		if len(data.Tracks) == 0 {
			return nil, ports.ErrTrackNotFound
		}
		return convertTrack(data.Tracks[0]), nil

	case lavalink.Search:
		if len(data) == 0 {
			return nil, ports.ErrTrackNotFound
		}
		return convertTrack(data[0]), nil

	case lavalink.Exception:
		return nil, fmt.Errorf("lavalink failed to load tracks: %s", data.Message)

	default:
		return nil, ports.ErrTrackNotFound
	}
}

// convertTrack converts a Lavalink track to TrackMetadata.
func convertTrack(track lavalink.Track) *domain.TrackMetadata {
	info := track.Info

	meta := &domain.TrackMetadata{
		StreamURL:  track.Encoded,
		Title:      info.Title,
		WebpageURL: getStringPtr(info.URI),
		IsLive:     info.IsStream,
		SourceName: info.SourceName,
		ArtworkURL: getStringPtr(info.ArtworkURL),
	}
	if !info.IsStream {
		meta.Duration = time.Duration(info.Length) * time.Millisecond
	}
	return meta
}

func getStringPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// setCallback registers onFinished for the encoded track now playing in the guild.
func (c *LavalinkAdapter) setCallback(guildID snowflake.ID, encoded string, onFinished func(error)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.callbacks[guildID] = &trackCallback{encoded: encoded, onFinished: onFinished}
}

// clearCallback drops the guild's callback so later end events are ignored.
func (c *LavalinkAdapter) clearCallback(guildID snowflake.ID) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	delete(c.callbacks, guildID)
}

// recordException remembers the exception for the guild's current track.
func (c *LavalinkAdapter) recordException(guildID snowflake.ID, encoded string, err error) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	if cb := c.callbacks[guildID]; cb != nil && cb.encoded == encoded {
		cb.lastErr = err
	}
}

// finishTrack fires and removes the callback registered for encoded, if any.
// Ends for other tracks (e.g. one already replaced) are ignored.
func (c *LavalinkAdapter) finishTrack(guildID snowflake.ID, encoded string, err error) {
	c.callbackMu.Lock()
	cb := c.callbacks[guildID]
	if cb == nil || cb.encoded != encoded {
		c.callbackMu.Unlock()
		return
	}
	delete(c.callbacks, guildID)
	c.callbackMu.Unlock()

	if err != nil && cb.lastErr != nil {
		err = fmt.Errorf("%w: %w", err, cb.lastErr)
	}
	cb.onFinished(err)
}

// lavalinkSession is a guild's voice connection driven through Lavalink.
type lavalinkSession struct {
	adapter *LavalinkAdapter
	guildID snowflake.ID

	mu        sync.Mutex
	channelID snowflake.ID
}

func (s *lavalinkSession) ChannelID() snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

func (s *lavalinkSession) MoveTo(ctx context.Context, channelID snowflake.ID) error {
	if err := s.adapter.joinChannel(ctx, s.guildID, channelID); err != nil {
		return err
	}
	s.mu.Lock()
	s.channelID = channelID
	s.mu.Unlock()
	return nil
}

// Play starts the encoded track. Use WithEncodedTrack to avoid the userData:null issue.
func (s *lavalinkSession) Play(ctx context.Context, encoded string, onFinished func(err error)) error {
	s.adapter.setCallback(s.guildID, encoded, onFinished)

	player := s.adapter.link.Player(s.guildID)
	if err := player.Update(ctx, lavalink.WithEncodedTrack(encoded)); err != nil {
		s.adapter.clearCallback(s.guildID)
		return fmt.Errorf("failed to play track: %w", err)
	}
	return nil
}

func (s *lavalinkSession) Pause() error {
	return s.update("pause", lavalink.WithPaused(true))
}

func (s *lavalinkSession) Resume() error {
	return s.update("resume", lavalink.WithPaused(false))
}

func (s *lavalinkSession) Stop() error {
	s.adapter.clearCallback(s.guildID)
	return s.update("stop", lavalink.WithNullTrack())
}

func (s *lavalinkSession) update(action string, opt lavalink.PlayerUpdateOpt) error {
	ctx, cancel := context.WithTimeout(context.Background(), playerUpdateTimeout)
	defer cancel()

	player := s.adapter.link.Player(s.guildID)
	if err := player.Update(ctx, opt); err != nil {
		return fmt.Errorf("failed to %s playback: %w", action, err)
	}
	return nil
}

// Disconnect destroys the player and leaves the voice channel.
func (s *lavalinkSession) Disconnect(ctx context.Context) error {
	s.adapter.clearCallback(s.guildID)

	if player := s.adapter.link.ExistingPlayer(s.guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", s.guildID, "error", err)
		}
	}

	err := s.adapter.session.ChannelVoiceJoinManual(s.guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	// Get or create voice buffer for this guild
	buffer := c.getOrCreateVoiceBuffer(guildID)

	// Store voice server data and check if both events are ready
	if buffer.setVoiceServer(event.Token, event.Endpoint) {
		// Both events received, forward to Lavalink
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	// Signal that we received the voice server update (for JoinChannel waiting)
	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(false)
	}
}

// OnVoiceStateUpdate handles Discord voice state updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	// Only handle updates for the bot itself
	if event.UserID != c.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	sessionID := event.SessionID

	// Parse the channel ID - if empty, the bot is disconnecting
	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	// Handle disconnect immediately (no need to wait for VoiceServerUpdate)
	if channelID == nil {
		c.link.OnVoiceStateUpdate(context.Background(), guildID, nil, sessionID)
		c.clearVoiceBuffer(guildID)
		return
	}

	// Get or create voice buffer for this guild
	buffer := c.getOrCreateVoiceBuffer(guildID)

	// Store voice state data and check if both events are ready
	if buffer.setVoiceState(channelID, sessionID) {
		// Both events received, forward to Lavalink
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	// Signal that we received the voice state update (for JoinChannel waiting)
	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(true)
	}
}

// getOrCreateVoiceBuffer returns the voice buffer for a guild, creating one if needed.
func (c *LavalinkAdapter) getOrCreateVoiceBuffer(guildID snowflake.ID) *voiceEventBuffer {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()

	buffer, exists := c.voiceBuffers[guildID]
	if !exists {
		buffer = &voiceEventBuffer{}
		c.voiceBuffers[guildID] = buffer
	}
	return buffer
}

// clearVoiceBuffer removes the voice buffer for a guild.
func (c *LavalinkAdapter) clearVoiceBuffer(guildID snowflake.ID) {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()
	delete(c.voiceBuffers, guildID)
}

// forwardBufferedVoiceEvents sends the buffered voice events to Lavalink.
func (c *LavalinkAdapter) forwardBufferedVoiceEvents(
	guildID snowflake.ID,
	buffer *voiceEventBuffer,
) {
	channelID, sessionID, token, endpoint := buffer.getData()

	slog.Debug("forwarding buffered voice events to Lavalink",
		"guild", guildID,
		"channel", channelID,
		"hasSessionID", sessionID != "",
	)

	// Forward to Lavalink in the correct order
	c.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
	c.link.OnVoiceServerUpdate(context.Background(), guildID, token, endpoint)
}

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	reason := convertEndReason(event.Reason)
	if !reason.ShouldAdvanceQueue() {
		return
	}

	var err error
	if reason == domain.TrackEndLoadFailed {
		err = errTrackLoadFailed
	}
	c.finishTrack(player.GuildID(), event.Track.Encoded, err)
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
	c.recordException(player.GuildID(), event.Track.Encoded, errors.New(event.Exception.Message))
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)
	c.finishTrack(player.GuildID(), event.Track.Encoded, errTrackStuck)

	ctx, cancel := context.WithTimeout(context.Background(), playerUpdateTimeout)
	defer cancel()
	if err := player.Update(ctx, lavalink.WithNullTrack()); err != nil {
		slog.Warn("failed to stop stuck track", "guild", player.GuildID(), "error", err)
	}
}

func convertEndReason(reason lavalink.TrackEndReason) domain.TrackEndReason {
	switch reason {
	case lavalink.TrackEndReasonFinished:
		return domain.TrackEndFinished
	case lavalink.TrackEndReasonLoadFailed:
		return domain.TrackEndLoadFailed
	case lavalink.TrackEndReasonStopped:
		return domain.TrackEndStopped
	case lavalink.TrackEndReasonReplaced:
		return domain.TrackEndReplaced
	case lavalink.TrackEndReasonCleanup:
		return domain.TrackEndCleanup
	default:
		return domain.TrackEndStopped
	}
}

// Ensure LavalinkAdapter implements port interfaces.
var (
	_ ports.VoiceConnector = (*LavalinkAdapter)(nil)
	_ ports.TrackResolver  = (*LavalinkAdapter)(nil)
	_ ports.VoiceSession   = (*lavalinkSession)(nil)
)
