package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CyberBotX/ncsfplay/internal/sample"
	"github.com/CyberBotX/ncsfplay/internal/stream"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample_rate: 48000\ninterpolation: linear\nplay_forever: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(48000), cfg.SampleRate)
	require.Equal(t, "linear", cfg.Interpolation)
	require.True(t, cfg.PlayForever)
	require.Equal(t, int64(3*60*1000), cfg.DefaultLengthMs) // untouched default
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestToStreamOptionsResolvesEnums(t *testing.T) {
	cfg := Default()
	cfg.Interpolation = "lanczos"
	cfg.VolumeType = "replaygain-album"
	cfg.PeakType = "replaygain-track"

	opt, err := cfg.ToStreamOptions()
	require.NoError(t, err)
	require.Equal(t, sample.InterpolationLanczos, opt.Interpolation)
	require.Equal(t, stream.VolumeReplayGainAlbum, opt.VolumeType)
	require.Equal(t, stream.PeakReplayGainTrack, opt.PeakType)
}

func TestToStreamOptionsRejectsUnknownInterpolation(t *testing.T) {
	cfg := Default()
	cfg.Interpolation = "bogus"
	_, err := cfg.ToStreamOptions()
	require.Error(t, err)
}
