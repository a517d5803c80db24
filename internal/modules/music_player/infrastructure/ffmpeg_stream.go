package infrastructure

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/hraban/opus.v2"
)

// Discord voice expects 48kHz stereo opus in 20ms frames.
const (
	sampleRate    = 48000
	channels      = 2
	frameSize     = 960
	maxOpusPacket = 4000
)

// DefaultOpusBitrate is used when no bitrate is configured.
const DefaultOpusBitrate = 128000

// decodedStream is raw s16le PCM produced by a decoder process.
type decodedStream interface {
	io.Reader
	// Wait blocks until the decoder exits and reports a failed exit.
	Wait() error
	// Kill terminates the decoder.
	Kill()
}

// audioDecoder starts decoding a media URL into PCM.
type audioDecoder interface {
	Open(ctx context.Context, streamURL string) (decodedStream, error)
}

// frameEncoder encodes one PCM frame into an opus packet.
type frameEncoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

// newOpusEncoder creates a voice-ready opus encoder with the given bitrate.
func newOpusEncoder(bitrate int) (frameEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if bitrate > 0 {
		if err := enc.SetBitrate(bitrate); err != nil {
			return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
		}
	}
	return enc, nil
}

// FFmpegDecoder decodes media URLs with an ffmpeg process.
type FFmpegDecoder struct {
	executable string
}

// NewFFmpegDecoder creates a new FFmpegDecoder. An empty executable uses ffmpeg from PATH.
func NewFFmpegDecoder(executable string) *FFmpegDecoder {
	if executable == "" {
		executable = "ffmpeg"
	}
	return &FFmpegDecoder{executable: executable}
}

// ffmpegArgs builds the ffmpeg command line that turns streamURL into raw PCM on stdout.
func ffmpegArgs(streamURL string) []string {
	return []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", streamURL,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	}
}

// Open starts ffmpeg. The process is killed when ctx is cancelled.
func (d *FFmpegDecoder) Open(ctx context.Context, streamURL string) (decodedStream, error) {
	cmd := exec.CommandContext(ctx, d.executable, ffmpegArgs(streamURL)...)

	stream := &ffmpegStream{cmd: cmd}
	cmd.Stderr = &stream.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	stream.stdout = stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return stream, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer

	waitOnce sync.Once
	waitErr  error
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegStream) Wait() error {
	s.waitOnce.Do(func() {
		if err := s.cmd.Wait(); err != nil {
			if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
				s.waitErr = fmt.Errorf("ffmpeg exited: %w: %s", err, msg)
			} else {
				s.waitErr = fmt.Errorf("ffmpeg exited: %w", err)
			}
		}
	})
	return s.waitErr
}

func (s *ffmpegStream) Kill() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// pauseGate blocks the frame pump while playback is paused.
type pauseGate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func newPauseGate() *pauseGate {
	return &pauseGate{resume: make(chan struct{})}
}

// Pause reports false if the gate was already paused.
func (g *pauseGate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return false
	}
	g.paused = true
	return true
}

// Resume reports false if the gate was not paused.
func (g *pauseGate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return false
	}
	g.paused = false
	close(g.resume)
	g.resume = make(chan struct{})
	return true
}

// Wait returns once the gate is open or ctx is done.
func (g *pauseGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	resume := g.resume
	g.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pumpOpus reads PCM frames from r, encodes them and sends the packets to out
// until r is exhausted or ctx is cancelled. A trailing partial frame is dropped.
func pumpOpus(
	ctx context.Context,
	r io.Reader,
	enc frameEncoder,
	out chan<- []byte,
	gate *pauseGate,
) error {
	pcmBuf := make([]byte, frameSize*channels*2)
	samples := make([]int16, frameSize*channels)

	for {
		if err := gate.Wait(ctx); err != nil {
			return nil
		}

		if _, err := io.ReadFull(r, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read pcm: %w", err)
		}

		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		packet := make([]byte, maxOpusPacket)
		n, err := enc.Encode(samples, packet)
		if err != nil {
			return fmt.Errorf("failed to encode opus frame: %w", err)
		}

		select {
		case out <- packet[:n]:
		case <-ctx.Done():
			return nil
		}
	}
}
