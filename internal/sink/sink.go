// Package sink plays an internal/stream.Stream to the live audio
// device via oto/v3. Grounded on the teacher's OtoPlayer in
// audio_backend_oto.go: a context built once with NewContextOptions,
// a single oto.Player pulling from an io.Reader, and explicit
// Start/Stop/Close control rather than anything callback-driven. The
// teacher hand-rolls its own io.Reader over a lock-free ring buffer
// because its chip runs on a separate goroutine; this player's
// Stream is already a synchronous io.Reader (section 5: no goroutine,
// no shared state), so it is handed to oto.NewPlayer directly instead
// of being wrapped in a second adapter.
package sink

import (
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// bufferSizeMs mirrors the teacher's small fixed buffer choice: a few
// milliseconds of lookahead keeps seek/pause latency low.
const bufferSizeMs = 50

// Sink owns one oto.Context/oto.Player pair over a live Stream.
type Sink struct {
	ctx     *oto.Context
	player  *oto.Player
	mutex   sync.Mutex
	started bool
}

// New opens the platform audio device at sampleRate/channels and
// attaches src (section 4.8's Stream, or anything io.Reader-shaped
// emitting the same float32LE interleaved format) as its source.
func New(src io.Reader, sampleRate int, channels int) (*Sink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSizeMs * 1e6, // oto takes a time.Duration in nanoseconds
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &Sink{
		ctx:    ctx,
		player: ctx.NewPlayer(src),
	}, nil
}

// Start begins or resumes playback.
func (s *Sink) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started {
		s.player.Play()
		s.started = true
	}
}

// Stop pauses playback without releasing the player.
func (s *Sink) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		s.player.Pause()
		s.started = false
	}
}

// IsPlaying reports whether playback is currently running.
func (s *Sink) IsPlaying() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.started
}

// Close releases the player and its audio device entirely.
func (s *Sink) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.started = false
	return s.player.Close()
}
