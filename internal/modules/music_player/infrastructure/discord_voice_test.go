package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
)

const pcmFrameBytes = frameSize * channels * 2

// fakeEncoder returns one-byte packets holding the first sample's low byte.
type fakeEncoder struct {
	err error
}

func (e *fakeEncoder) Encode(pcm []int16, data []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	data[0] = byte(pcm[0])
	return 1, nil
}

// fakeStream is an in-memory decodedStream. When block is set, reads block
// after the data is consumed until Kill is called.
type fakeStream struct {
	r       io.Reader
	waitErr error
	block   bool
	killed  chan struct{}
	once    sync.Once
}

func newFakeStream(frames int, waitErr error) *fakeStream {
	data := make([]byte, frames*pcmFrameBytes)
	for i := range frames {
		data[i*pcmFrameBytes] = byte(i + 1)
	}
	return &fakeStream{
		r:       bytes.NewReader(data),
		waitErr: waitErr,
		killed:  make(chan struct{}),
	}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err == io.EOF && s.block {
		<-s.killed
	}
	return n, err
}

func (s *fakeStream) Wait() error { return s.waitErr }

func (s *fakeStream) Kill() { s.once.Do(func() { close(s.killed) }) }

// fakeDecoder hands out prepared streams and kills them when their context ends.
type fakeDecoder struct {
	mu      sync.Mutex
	streams []*fakeStream
	opened  []string
	err     error
}

func (d *fakeDecoder) Open(ctx context.Context, streamURL string) (decodedStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.opened = append(d.opened, streamURL)
	s := d.streams[0]
	d.streams = d.streams[1:]
	go func() {
		<-ctx.Done()
		s.Kill()
	}()
	return s, nil
}

// fakeLink is a test double for voiceLink.
type fakeLink struct {
	mu          sync.Mutex
	moves       []string
	speaking    []bool
	disconnects int
	moveErr     error
}

func (l *fakeLink) ChangeChannel(channelID string, _, _ bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.moveErr != nil {
		return l.moveErr
	}
	l.moves = append(l.moves, channelID)
	return nil
}

func (l *fakeLink) Speaking(speaking bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.speaking = append(l.speaking, speaking)
	return nil
}

func (l *fakeLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnects++
	return nil
}

type voiceSessionFixture struct {
	session *discordVoiceSession
	decoder *fakeDecoder
	link    *fakeLink
	out     chan []byte
	encoder *fakeEncoder
}

func newVoiceSessionFixture(streams ...*fakeStream) *voiceSessionFixture {
	f := &voiceSessionFixture{
		decoder: &fakeDecoder{streams: streams},
		link:    &fakeLink{},
		out:     make(chan []byte, 64),
		encoder: &fakeEncoder{},
	}
	f.session = newDiscordVoiceSession(
		snowflake.ID(1),
		snowflake.ID(100),
		f.link,
		f.out,
		f.decoder,
		func() (frameEncoder, error) { return f.encoder, nil },
	)
	return f
}

func finishedChan() (chan error, func(error)) {
	ch := make(chan error, 1)
	return ch, func(err error) { ch <- err }
}

func waitFinished(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for onFinished")
		return nil
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("https://media.example/a.webm")

	want := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", "https://media.example/a.webm",
		"-vn",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "warning",
		"pipe:1",
	}
	if !slices.Equal(args, want) {
		t.Errorf("unexpected args:\n got  %v\n want %v", args, want)
	}
}

func TestPumpOpus_SendsEveryFullFrame(t *testing.T) {
	stream := newFakeStream(3, nil)
	// A trailing partial frame is dropped.
	stream.r = io.MultiReader(stream.r, bytes.NewReader(make([]byte, 100)))
	out := make(chan []byte, 10)

	err := pumpOpus(context.Background(), stream, &fakeEncoder{}, out, newPauseGate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(out)

	var got []byte
	for packet := range out {
		got = append(got, packet...)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("expected packets [1 2 3], got %v", got)
	}
}

func TestPumpOpus_EncodeError(t *testing.T) {
	encErr := errors.New("bad frame")
	err := pumpOpus(
		context.Background(),
		newFakeStream(1, nil),
		&fakeEncoder{err: encErr},
		make(chan []byte, 1),
		newPauseGate(),
	)
	if !errors.Is(err, encErr) {
		t.Errorf("expected encode error, got %v", err)
	}
}

func TestPauseGate(t *testing.T) {
	gate := newPauseGate()

	if gate.Resume() {
		t.Error("expected Resume to report false when not paused")
	}
	if !gate.Pause() || gate.Pause() {
		t.Error("expected only the first Pause to report true")
	}

	released := make(chan struct{})
	go func() {
		_ = gate.Wait(context.Background())
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("expected Wait to block while paused")
	case <-time.After(50 * time.Millisecond):
	}

	gate.Resume()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("expected Wait to return after Resume")
	}

	ctx, cancel := context.WithCancel(context.Background())
	gate.Pause()
	cancel()
	if err := gate.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDiscordVoiceSession_PlayToEnd(t *testing.T) {
	f := newVoiceSessionFixture(newFakeStream(2, nil))
	finished, onFinished := finishedChan()

	if err := f.session.Play(context.Background(), "stream://songA", onFinished); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}

	if err := waitFinished(t, finished); err != nil {
		t.Errorf("expected natural end, got %v", err)
	}
	if len(f.out) != 2 {
		t.Errorf("expected 2 packets, got %d", len(f.out))
	}
	if f.decoder.opened[0] != "stream://songA" {
		t.Errorf("unexpected url %q", f.decoder.opened[0])
	}
	f.link.mu.Lock()
	defer f.link.mu.Unlock()
	if !slices.Equal(f.link.speaking, []bool{true, false}) {
		t.Errorf("unexpected speaking transitions %v", f.link.speaking)
	}
}

func TestDiscordVoiceSession_DecoderFailureReported(t *testing.T) {
	exitErr := errors.New("ffmpeg exited: exit status 1: 403 Forbidden")
	f := newVoiceSessionFixture(newFakeStream(0, exitErr))
	finished, onFinished := finishedChan()

	if err := f.session.Play(context.Background(), "stream://songA", onFinished); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	if err := waitFinished(t, finished); !errors.Is(err, exitErr) {
		t.Errorf("expected decoder error, got %v", err)
	}
}

func TestDiscordVoiceSession_StartFailure(t *testing.T) {
	f := newVoiceSessionFixture()
	f.decoder.err = errors.New("exec: \"ffmpeg\": executable file not found in $PATH")

	err := f.session.Play(context.Background(), "stream://songA", func(error) {
		t.Error("onFinished must not be called when Play fails")
	})
	if err == nil {
		t.Fatal("expected Play to fail")
	}
	if err := f.session.Pause(); !errors.Is(err, ports.ErrNoPlayback) {
		t.Errorf("expected ErrNoPlayback, got %v", err)
	}
}

func TestDiscordVoiceSession_StopSuppressesCallback(t *testing.T) {
	stream := newFakeStream(1, nil)
	stream.block = true
	f := newVoiceSessionFixture(stream)
	finished, onFinished := finishedChan()

	if err := f.session.Play(context.Background(), "stream://songA", onFinished); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	if err := f.session.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	select {
	case err := <-finished:
		t.Errorf("expected no callback after Stop, got %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	if err := f.session.Stop(); err != nil {
		t.Errorf("second Stop returned error: %v", err)
	}
}

func TestDiscordVoiceSession_PlayReplacesCurrent(t *testing.T) {
	first := newFakeStream(1, nil)
	first.block = true
	f := newVoiceSessionFixture(first, newFakeStream(1, nil))

	firstDone, onFirst := finishedChan()
	secondDone, onSecond := finishedChan()

	if err := f.session.Play(context.Background(), "stream://songA", onFirst); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	if err := f.session.Play(context.Background(), "stream://songB", onSecond); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}

	if err := waitFinished(t, secondDone); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	select {
	case <-firstDone:
		t.Error("replaced playback must not report completion")
	default:
	}
}

func TestDiscordVoiceSession_PauseResume(t *testing.T) {
	stream := newFakeStream(50, nil)
	f := newVoiceSessionFixture(stream)
	f.out = make(chan []byte) // unbuffered so the pump advances one frame at a time
	f.session.opusSend = f.out
	finished, onFinished := finishedChan()

	if err := f.session.Play(context.Background(), "stream://songA", onFinished); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	<-f.out

	if err := f.session.Pause(); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	// At most the frame already in flight is delivered after pausing.
	select {
	case <-f.out:
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case <-f.out:
		t.Fatal("expected no packets while paused")
	case <-time.After(50 * time.Millisecond):
	}

	if err := f.session.Resume(); err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	go func() {
		for range f.out {
		}
	}()
	if err := waitFinished(t, finished); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDiscordVoiceSession_MoveAndDisconnect(t *testing.T) {
	stream := newFakeStream(1, nil)
	stream.block = true
	f := newVoiceSessionFixture(stream)

	if err := f.session.MoveTo(context.Background(), snowflake.ID(101)); err != nil {
		t.Fatalf("MoveTo returned error: %v", err)
	}
	if f.session.ChannelID() != 101 {
		t.Errorf("expected channel 101, got %d", f.session.ChannelID())
	}

	f.link.moveErr = errors.New("missing permissions")
	if err := f.session.MoveTo(context.Background(), snowflake.ID(102)); err == nil {
		t.Error("expected MoveTo to fail")
	}
	if f.session.ChannelID() != 101 {
		t.Errorf("expected channel unchanged after failed move, got %d", f.session.ChannelID())
	}

	if err := f.session.Play(context.Background(), "stream://songA", func(error) {
		t.Error("onFinished must not be called after Disconnect")
	}); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	if err := f.session.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}
	if f.link.disconnects != 1 {
		t.Errorf("expected 1 disconnect, got %d", f.link.disconnects)
	}
}
