// ncsfplay is the CLI front-end exercising the core end to end: it
// parses an NCSF file, resolves its library chain, builds a running
// sequence, and either streams it live through internal/sink or
// renders it to a WAV file through internal/wavewriter. Grounded on
// valerio-go-jeebie/cmd/jeebie/main.go's urfave/cli.App shape (flags
// registered up front, a single Action function, errors returned
// rather than os.Exit'd inline).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/CyberBotX/ncsfplay/internal/config"
	"github.com/CyberBotX/ncsfplay/internal/container"
	"github.com/CyberBotX/ncsfplay/internal/player"
	"github.com/CyberBotX/ncsfplay/internal/sample"
	"github.com/CyberBotX/ncsfplay/internal/sdat"
	"github.com/CyberBotX/ncsfplay/internal/sink"
	"github.com/CyberBotX/ncsfplay/internal/stream"
	"github.com/CyberBotX/ncsfplay/internal/timing"
	"github.com/CyberBotX/ncsfplay/internal/wavewriter"
)

var logger = log.New(os.Stderr)

func main() {
	app := cli.NewApp()
	app.Name = "ncsfplay"
	app.Usage = "play or render an NCSF (NDS sequenced music) file"
	app.UsageText = "ncsfplay [options] <file.ncsf>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "path to an ncsfplay.yaml configuration file"},
		cli.UintFlag{Name: "rate", Usage: "output sample rate in Hz (overrides config)"},
		cli.StringFlag{Name: "interpolation", Usage: "none|linear|lagrange4|lagrange6|old-sinc|sinc|lanczos"},
		cli.StringFlag{Name: "device", Usage: "reserved for future output-device selection"},
		cli.StringFlag{Name: "out", Usage: "write a WAV file here instead of playing live"},
		cli.StringFlag{Name: "length", Usage: "override playback length, e.g. 3:00 or 180"},
		cli.StringFlag{Name: "fade", Usage: "override fade length, e.g. 10 or 0:10"},
		cli.IntFlag{Name: "loops", Value: timing.DefaultLoops, Usage: "loop count the timing fallback requires"},
		cli.StringFlag{Name: "volume-type", Usage: "none|fixed|replaygain-track|replaygain-album"},
		cli.UintFlag{Name: "skip-silence", Usage: "seconds of leading silence to skip"},
		cli.IntFlag{Name: "sequence", Usage: "SDAT sequence index to play (default: the NCSF's own sequence number)"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Error("ncsfplay failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowAppHelp(c)
		return fmt.Errorf("no NCSF file given")
	}
	path := c.Args().Get(0)

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

	if out := c.String("out"); out != "" {
		return renderToFile(st, out, cfg.SampleRate)
	}
	total := time.Duration(lengthMs+fadeMs) * time.Millisecond
	if opt.PlayForever {
		total = 0
	}
	return playLive(st, cfg.SampleRate, total)
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

	if v, ok := ncsf.Tags.Get("length"), true; ok && v != "" {
		if ms, ok := container.ParseDuration(v); ok {
			lengthMs = ms
		}
	}
	if v, ok := ncsf.Tags.Get("fade"), true; ok && v != "" {
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

func renderToFile(st *stream.Stream, out string, rate uint32) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := wavewriter.New(f, wavewriter.FormatFloat32, 2, rate)
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

// playLive plays st through the default audio device, with a raw-mode
// terminal reading single keypresses for pause ('p') and quit ('q')
// while the stream runs -- section 6's "interactive seek/pause keys".
// total is the stream's expected runtime (0 means PlayForever); when
// stdin isn't a terminal we simply sleep that long instead of reading
// keys.
func playLive(st *stream.Stream, rate uint32, total time.Duration) error {
	sk, err := sink.New(st, int(rate), 2)
	if err != nil {
		return err
	}
	defer sk.Close()
	sk.Start()

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if total <= 0 {
			select {} // PlayForever with no interactive control: block until killed.
		}
		time.Sleep(total)
		return nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	done := make(chan struct{})
	if total > 0 {
		timer := time.AfterFunc(total, func() { close(done) })
		defer timer.Stop()
	}

	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err != nil {
				return
			}
			keys <- buf[0]
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case k := <-keys:
			switch k {
			case 'q', 3: // 'q' or Ctrl-C
				return nil
			case 'p':
				if sk.IsPlaying() {
					sk.Stop()
				} else {
					sk.Start()
				}
			}
		}
	}
}
