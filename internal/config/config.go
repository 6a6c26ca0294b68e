// Package config loads the player's YAML configuration file, mirroring
// internal/stream.Options. Grounded on the teacher pack's
// doismellburning-samoyed/src/deviceid.go: read the whole file with
// io.ReadAll, then a single yaml.Unmarshal into a typed structure, no
// custom decoder hooks.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/CyberBotX/ncsfplay/internal/errkind"
	"github.com/CyberBotX/ncsfplay/internal/sample"
	"github.com/CyberBotX/ncsfplay/internal/stream"
)

// Config is the on-disk shape of a player configuration file; field
// names mirror stream.Options so ToStreamOptions is a near-direct copy.
type Config struct {
	SampleRate            uint32 `yaml:"sample_rate"`
	Interpolation         string `yaml:"interpolation"`
	SkipSilenceOnStartSec uint32 `yaml:"skip_silence_on_start_sec"`
	DefaultLengthMs       int64  `yaml:"default_length_ms"`
	DefaultFadeMs         int64  `yaml:"default_fade_ms"`
	VolumeType            string `yaml:"volume_type"`
	FixedVolume           float32 `yaml:"fixed_volume"`
	PeakType              string `yaml:"peak_type"`
	PlayForever           bool   `yaml:"play_forever"`
	VolumeMultiplier      float32 `yaml:"volume_multiplier"`
	IgnoreVolume          bool   `yaml:"ignore_volume"`
	ChannelMutes          uint16 `yaml:"channel_mutes"`
	TrackMutes            uint16 `yaml:"track_mutes"`
}

// Default returns the built-in defaults section 6's CLI flags fall
// back to when a config file doesn't set a field.
func Default() Config {
	return Config{
		SampleRate:      44100,
		Interpolation:   "sinc",
		DefaultLengthMs: 3 * 60 * 1000,
		DefaultFadeMs:   10 * 1000,
		VolumeType:      "replaygain-track",
		PeakType:        "replaygain-track",
		VolumeMultiplier: 1,
	}
}

// Load reads and parses a YAML configuration file, starting from
// Default and letting the file override individual fields.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errkind.Wrap(errkind.UserInput, "reading config file", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errkind.Wrap(errkind.UserInput, "parsing config file", err)
	}
	return cfg, nil
}

// InterpolationKind resolves the config's interpolation name to the
// internal/sample enum, section 6's CLI choice list.
func (c Config) InterpolationKind() (sample.Interpolation, error) {
	switch c.Interpolation {
	case "", "none":
		return sample.InterpolationNone, nil
	case "linear":
		return sample.InterpolationLinear, nil
	case "lagrange4", "lagrange":
		return sample.InterpolationFourPointLagrange, nil
	case "lagrange6":
		return sample.InterpolationSixPointLagrange, nil
	case "old-sinc":
		return sample.InterpolationOldSinc, nil
	case "sinc", "simple-sinc":
		return sample.InterpolationSimpleSinc, nil
	case "lanczos":
		return sample.InterpolationLanczos, nil
	default:
		return 0, errkind.New(errkind.UserInput, "unknown interpolation %q", c.Interpolation)
	}
}

// VolumeKind resolves the config's volume-type name to the
// internal/stream enum.
func (c Config) VolumeKind() (stream.VolumeType, error) {
	switch c.VolumeType {
	case "", "none":
		return stream.VolumeNone, nil
	case "fixed":
		return stream.VolumeFixed, nil
	case "replaygain-track":
		return stream.VolumeReplayGainTrack, nil
	case "replaygain-album":
		return stream.VolumeReplayGainAlbum, nil
	default:
		return 0, errkind.New(errkind.UserInput, "unknown volume type %q", c.VolumeType)
	}
}

// PeakKind resolves the config's peak-type name to the internal/stream
// enum.
func (c Config) PeakKind() (stream.PeakType, error) {
	switch c.PeakType {
	case "", "none":
		return stream.PeakNone, nil
	case "replaygain-track":
		return stream.PeakReplayGainTrack, nil
	case "replaygain-album":
		return stream.PeakReplayGainAlbum, nil
	default:
		return 0, errkind.New(errkind.UserInput, "unknown peak type %q", c.PeakType)
	}
}

// ToStreamOptions builds a stream.Options from this config, leaving
// the gain/peak float fields computed elsewhere (they come from a
// replaygain.Analyzer run or from NCSF tags, not the config file).
func (c Config) ToStreamOptions() (stream.Options, error) {
	volType, err := c.VolumeKind()
	if err != nil {
		return stream.Options{}, err
	}
	peakType, err := c.PeakKind()
	if err != nil {
		return stream.Options{}, err
	}
	interp, err := c.InterpolationKind()
	if err != nil {
		return stream.Options{}, err
	}
	return stream.Options{
		SampleRate:            c.SampleRate,
		Interpolation:         interp,
		SkipSilenceOnStartSec: c.SkipSilenceOnStartSec,
		DefaultLengthMs:       c.DefaultLengthMs,
		DefaultFadeMs:         c.DefaultFadeMs,
		VolumeType:            volType,
		FixedVolume:           c.FixedVolume,
		PeakType:              peakType,
		PlayForever:           c.PlayForever,
		VolumeMultiplier:      c.VolumeMultiplier,
		IgnoreVolume:          c.IgnoreVolume,
		ChannelMutes:          c.ChannelMutes,
		TrackMutes:            c.TrackMutes,
	}, nil
}
