// ncsf2wav is a batch NCSF-to-WAV renderer: no live playback, no
// terminal interaction, just file in, file out. It shares the parsing
// and rendering pipeline with cmd/ncsfplay but drops everything that
// exists only to serve interactive playback (internal/sink, raw-mode
// terminal handling). Grounded on the same
// valerio-go-jeebie/cmd/jeebie/main.go urfave/cli.App shape as
// cmd/ncsfplay.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli"

	"github.com/CyberBotX/ncsfplay/internal/config"
	"github.com/CyberBotX/ncsfplay/internal/container"
	"github.com/CyberBotX/ncsfplay/internal/player"
	"github.com/CyberBotX/ncsfplay/internal/sample"
	"github.com/CyberBotX/ncsfplay/internal/sdat"
	"github.com/CyberBotX/ncsfplay/internal/stream"
	"github.com/CyberBotX/ncsfplay/internal/timing"
	"github.com/CyberBotX/ncsfplay/internal/wavewriter"
)

var logger = log.New(os.Stderr)

func main() {
	app := cli.NewApp()
	app.Name = "ncsf2wav"
	app.Usage = "render an NCSF (NDS sequenced music) file to a WAV file"
	app.UsageText = "ncsf2wav [options] <file.ncsf> [out.wav]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "path to an ncsfplay.yaml configuration file"},
		cli.UintFlag{Name: "rate", Usage: "output sample rate in Hz (overrides config)"},
		cli.StringFlag{Name: "interpolation", Usage: "none|linear|lagrange4|lagrange6|old-sinc|sinc|lanczos"},
		cli.StringFlag{Name: "format", Value: "float32", Usage: "pcm16|float32"},
		cli.StringFlag{Name: "length", Usage: "override playback length, e.g. 3:00 or 180"},
		cli.StringFlag{Name: "fade", Usage: "override fade length, e.g. 10 or 0:10"},
		cli.IntFlag{Name: "loops", Value: timing.DefaultLoops, Usage: "loop count the timing fallback requires"},
		cli.StringFlag{Name: "volume-type", Usage: "none|fixed|replaygain-track|replaygain-album"},
		cli.UintFlag{Name: "skip-silence", Usage: "seconds of leading silence to skip"},
		cli.IntFlag{Name: "sequence", Usage: "SDAT sequence index to render (default: the NCSF's own sequence number)"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Error("ncsf2wav failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowAppHelp(c)
		return fmt.Errorf("no NCSF file given")
	}
	path := c.Args().Get(0)
	out := c.Args().Get(1)
	if out == "" {
		out = trimExt(path) + ".wav"
	}

	cfg := config.Default()
	if p := c.String("config"); p != "" {
		loaded, err := config.Load(p)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlagOverrides(c, &cfg)

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ncsf, err := container.Parse(raw)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	program, err := container.ResolveLibraryChain(ncsf, siblingLoader(dir), false)
	if err != nil {
		return err
	}

	sd, err := sdat.Parse(program)
	if err != nil {
		return err
	}

	sequenceIndex := c.Int("sequence")
	if !c.IsSet("sequence") {
		sequenceIndex = int(ncsf.SequenceNumber())
	}

	buildSequence := func() *player.Sequence {
		seq, err := player.NewSequenceFromSDAT(sd, sequenceIndex)
		if err != nil {
			logger.Fatal("rebuilding sequence", "error", err)
		}
		return seq
	}

	seq := buildSequence()
	interp, err := cfg.InterpolationKind()
	if err != nil {
		return err
	}
	gen := sample.NewGenerator(seq, cfg.SampleRate, interp)

	lengthMs, fadeMs := resolveLengthFade(c, ncsf, sd, sequenceIndex, cfg)
	opt, err := cfg.ToStreamOptions()
	if err != nil {
		return err
	}
	applyReplayGainTags(ncsf, &opt)

	restart := func() *sample.Generator {
		return sample.NewGenerator(buildSequence(), cfg.SampleRate, interp)
	}
	st := stream.New(gen, restart, opt, lengthMs, fadeMs)

	format := wavewriter.FormatFloat32
	if c.String("format") == "pcm16" {
		format = wavewriter.FormatPCM16
	}

	logger.Info("rendering", "file", path, "out", out, "rate", cfg.SampleRate, "length_ms", lengthMs, "fade_ms", fadeMs)
	return renderToFile(st, out, cfg.SampleRate, format)
}

func applyFlagOverrides(c *cli.Context, cfg *config.Config) {
	if c.IsSet("rate") {
		cfg.SampleRate = uint32(c.Uint("rate"))
	}
	if c.IsSet("interpolation") {
		cfg.Interpolation = c.String("interpolation")
	}
	if c.IsSet("volume-type") {
		cfg.VolumeType = c.String("volume-type")
	}
	if c.IsSet("skip-silence") {
		cfg.SkipSilenceOnStartSec = uint32(c.Uint("skip-silence"))
	}
}

func siblingLoader(dir string) container.Loader {
	return func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, name))
	}
}

// resolveLengthFade applies section 6's precedence: explicit CLI flags
// win, then NCSF "length"/"fade" tags, then the timing variant's
// measured length, then the config defaults.
func resolveLengthFade(c *cli.Context, ncsf *container.File, sd *sdat.SDAT, sequenceIndex int, cfg config.Config) (lengthMs, fadeMs int64) {
	lengthMs, fadeMs = cfg.DefaultLengthMs, cfg.DefaultFadeMs

	if v := ncsf.Tags.Get("length"); v != "" {
		if ms, ok := container.ParseDuration(v); ok {
			lengthMs = ms
		}
	}
	if v := ncsf.Tags.Get("fade"); v != "" {
		if ms, ok := container.ParseDuration(v); ok {
			fadeMs = ms
		}
	}

	if c.IsSet("length") {
		if ms, ok := container.ParseDuration(c.String("length")); ok {
			lengthMs = ms
		}
	} else if ncsf.Tags.Get("length") == "" {
		result, err := timing.Measure(sd, sequenceIndex, timing.Options{Loops: c.Int("loops"), SampleRate: cfg.SampleRate})
		if err == nil && result.Type != timing.ResultUnknown {
			lengthMs = int64(result.Seconds * 1000)
		} else if err != nil {
			logger.Warn("timing measurement failed, using default length", "error", err)
		}
	}
	if c.IsSet("fade") {
		if ms, ok := container.ParseDuration(c.String("fade")); ok {
			fadeMs = ms
		}
	}
	return lengthMs, fadeMs
}

func applyReplayGainTags(ncsf *container.File, opt *stream.Options) {
	if g, ok := ncsf.Tags.ReplayGain("track"); ok {
		opt.TrackGain = g
	}
	if g, ok := ncsf.Tags.ReplayGain("album"); ok {
		opt.AlbumGain = g
	}
	if p, ok := ncsf.Tags.ReplayGainPeak("track"); ok {
		opt.TrackPeak = p
	}
	if p, ok := ncsf.Tags.ReplayGainPeak("album"); ok {
		opt.AlbumPeak = p
	}
	if opt.VolumeMultiplier == 0 {
		opt.VolumeMultiplier = ncsf.Tags.Volume()
	}
}

func renderToFile(st *stream.Stream, out string, rate uint32, format wavewriter.Format) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := wavewriter.New(f, format, 2, rate)
	if err != nil {
		return err
	}
	buf := make([]byte, 64*1024)
	for {
		n, err := st.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}
	return w.Close()
}

func trimExt(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)]
}
