// Package stream implements the blocking Read/Seek stream driver of
// section 4.8: silence-skip-on-start, volume/ReplayGain gain and
// clipping, and length+fade windowing over a sample.Generator's
// stereo output. Grounded on the teacher's own streaming render loop
// in sid_6502_player.go's RenderFrames, which pulls fixed-size frame
// batches from a synchronous generator rather than anything
// goroutine-driven.
package stream

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/CyberBotX/ncsfplay/internal/errkind"
	"github.com/CyberBotX/ncsfplay/internal/sample"
)

var (
	errSeekDisabled            = errkind.New(errkind.Invariant, "seek is disabled while PlayForever is set")
	errBackwardSeekUnsupported = errkind.New(errkind.Invariant, "backward seek requires a restart function")
)

const bytesPerStereoFrame = 8 // two little-endian float32s

// VolumeType selects how Stream computes its volume multiplier.
type VolumeType uint8

const (
	VolumeNone VolumeType = iota
	VolumeFixed
	VolumeReplayGainTrack
	VolumeReplayGainAlbum
)

// PeakType selects which ReplayGain peak, if any, additionally caps
// the gain.
type PeakType uint8

const (
	PeakNone PeakType = iota
	PeakReplayGainTrack
	PeakReplayGainAlbum
)

// Options configures a Stream, mirroring section 6's enumerated
// stream driver options.
type Options struct {
	SampleRate            uint32
	Interpolation         sample.Interpolation
	SkipSilenceOnStartSec uint32
	DefaultLengthMs       int64
	DefaultFadeMs         int64
	VolumeType            VolumeType
	FixedVolume           float32
	PeakType              PeakType
	TrackPeak, AlbumPeak  float32
	TrackGain, AlbumGain  float32
	PlayForever           bool
	VolumeMultiplier      float32
	ChannelMutes          uint16
	TrackMutes            uint16
	IgnoreVolume          bool
}

// Stream is a pull-based frame source over a player.Sequence, matching
// section 4.8's "blocking Read(buf)" contract.
type Stream struct {
	gen      *sample.Generator
	restart  func() *sample.Generator
	opt      Options

	position     int64 // byte offset already emitted
	lengthSample int64
	fadeSample   int64

	volumeModification float32

	silenceCountdown int
	silentSeconds    int
	skipDone         bool
	prevLeft, prevRight float32

	totalSamplesEmitted int64
}

const (
	silenceBias  = 4096.0 / 32768.0
	silenceLevel = 0.000213623
)

// New builds a Stream over gen with opt applied. lengthMs/fadeMs
// already resolved the "length"/"fade" tags against opt's defaults;
// callers pass the final millisecond values. restart, when non-nil,
// rebuilds a fresh Generator from position zero for backward seeks
// (section 4.8); a nil restart makes backward Seek calls fail.
func New(gen *sample.Generator, restart func() *sample.Generator, opt Options, lengthMs, fadeMs int64) *Stream {
	s := &Stream{gen: gen, restart: restart, opt: opt}
	s.lengthSample = lengthMs * int64(opt.SampleRate) / 1000
	s.fadeSample = fadeMs * int64(opt.SampleRate) / 1000
	s.silenceCountdown = int(opt.SkipSilenceOnStartSec)
	s.volumeModification = s.computeVolumeModification()
	gen.ChannelMutes = opt.ChannelMutes
	gen.TrackMutes = opt.TrackMutes
	return s
}

func (s *Stream) computeVolumeModification() float32 {
	if s.opt.IgnoreVolume {
		return s.opt.VolumeMultiplier
	}
	var gain float32 = 1
	switch s.opt.VolumeType {
	case VolumeNone:
		gain = 1
	case VolumeFixed:
		gain = s.opt.FixedVolume
	case VolumeReplayGainAlbum:
		gain = s.opt.AlbumGain
	case VolumeReplayGainTrack:
		gain = s.opt.TrackGain
	}
	if s.opt.PeakType != PeakNone {
		peak := s.opt.TrackPeak
		if s.opt.PeakType == PeakReplayGainAlbum {
			peak = s.opt.AlbumPeak
		}
		if peak != 0 && peak != 1 {
			if limit := 1 / peak; gain > limit {
				gain = limit
			}
		}
	}
	return gain * s.opt.VolumeMultiplier
}

// Read fills buf with little-endian float32 stereo interleaved bytes,
// per section 4.8. It writes as many whole 8-byte stereo frames as fit
// in buf and returns that byte count; once the stream has ended, those
// frames are silent (all-zero).
func (s *Stream) Read(buf []byte) (int, error) {
	n := len(buf) - len(buf)%bytesPerStereoFrame
	for i := 0; i < n; i += bytesPerStereoFrame {
		left, right := s.nextFrame()
		binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(left))
		binary.LittleEndian.PutUint32(buf[i+4:], math.Float32bits(right))
	}
	s.position += int64(n)
	return n, nil
}

func (s *Stream) nextFrame() (float32, float32) {
	for !s.skipDone && s.opt.SkipSilenceOnStartSec > 0 {
		left, right := s.gen.NextStereo()
		if s.isSilentVsPrev(left, right) {
			s.silentSeconds++
			if s.silentSeconds >= int(s.opt.SampleRate) {
				s.silentSeconds = 0
				s.silenceCountdown--
				if s.silenceCountdown <= 0 {
					s.skipDone = true
				}
			}
		} else {
			s.silentSeconds = 0
		}
		s.prevLeft, s.prevRight = left, right
	}
	if s.opt.SkipSilenceOnStartSec == 0 {
		s.skipDone = true
	}

	if !s.opt.PlayForever && s.lengthSample > 0 {
		end := s.lengthSample + s.fadeSample
		if s.totalSamplesEmitted >= end {
			return 0, 0
		}
	}

	left, right := s.gen.NextStereo()
	left *= s.volumeModification
	right *= s.volumeModification

	if !s.opt.PlayForever && s.fadeSample > 0 && s.totalSamplesEmitted >= s.lengthSample {
		remaining := s.lengthSample + s.fadeSample - s.totalSamplesEmitted
		scale := float32(remaining*65536/s.fadeSample) / 65536
		left *= scale
		right *= scale
	}

	left = clamp(left)
	right = clamp(right)
	s.totalSamplesEmitted++
	return left, right
}

func (s *Stream) isSilentVsPrev(left, right float32) bool {
	dl := left - s.prevLeft - silenceBias
	dr := right - s.prevRight - silenceBias
	return abs32(dl) <= 2*silenceLevel && abs32(dr) <= 2*silenceLevel
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

const discardChunkBytes = 4096

// Seek repositions the stream to byte offset target, per section 4.8:
// a backward seek restarts the player from scratch and replays
// forward to target; a forward seek just discards samples in 4 KiB
// chunks. Disabled entirely when PlayForever is set.
func (s *Stream) Seek(target int64) error {
	if s.opt.PlayForever {
		return errSeekDisabled
	}
	if target < s.position {
		if s.restart == nil {
			return errBackwardSeekUnsupported
		}
		s.gen = s.restart()
		s.position = 0
		s.totalSamplesEmitted = 0
		s.skipDone = s.opt.SkipSilenceOnStartSec == 0
		s.silenceCountdown = int(s.opt.SkipSilenceOnStartSec)
		s.silentSeconds = 0
		s.prevLeft, s.prevRight = 0, 0
	}
	discard := make([]byte, discardChunkBytes)
	remaining := target - s.position
	for remaining > 0 {
		chunk := discard
		if remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		n, err := s.Read(chunk)
		remaining -= int64(n)
		if err != nil {
			return err
		}
	}
	return nil
}

var _ io.Reader = (*Stream)(nil)
