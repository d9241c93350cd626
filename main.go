package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"polyglot/audio"
	"polyglot/beep"
	"polyglot/config"
	"polyglot/doctor"
	"polyglot/encoder"
	"polyglot/log"
	"polyglot/telemetry"
	"polyglot/transcriber"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

// buildDispatcher registers every engine in a fixed order; tab cycles
// through them in the same order.
func buildDispatcher(cfg config.Config) *transcriber.Dispatcher {
	return transcriber.NewDispatcher(
		transcriber.NewLocal(),
		transcriber.NewGemini(cfg.Options(transcriber.CloudGemini)),
		transcriber.NewOpenAI(cfg.Options(transcriber.CloudOpenAI)),
		transcriber.NewGroq(cfg.Options(transcriber.CloudGroq)),
		transcriber.NewDeepgram(cfg.Options(transcriber.CloudDeepgram)),
	)
}

// warm opens a connection to the selected engine's endpoint in the
// background so the first dispatch skips the TLS handshake.
func warm(d *transcriber.Dispatcher, id transcriber.EngineID) {
	e, ok := d.Engine(id)
	if !ok || !e.IsAvailable() {
		return
	}
	if w, ok := e.(interface{ Warm() }); ok {
		go w.Warm()
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		if p := config.DefaultPath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	return config.Load(path)
}

func run() int {
	configFlag := flag.String("config", "", "Path to YAML config file (default: <user config dir>/polyglot/config.yaml if present)")
	envFlag := flag.String("env", ".env", "Path to .env file with API keys")
	engineFlag := flag.String("engine", "", "Transcription engine: "+joinEngines())
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	langFlag := flag.String("lang", "", "Language code for transcription (e.g., en, es, fr). Empty = auto-detect")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	tracesFlag := flag.Bool("traces", false, "Write dispatch traces to traces.json in the log directory")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.String("test", "", "Test mode: replay this WAV file as the microphone and read commands from stdin")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("polyglot %s\n", version)
		return 0
	}

	if err := config.LoadDotEnv(*envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *engineFlag != "" {
		cfg.Engine = transcriber.EngineID(strings.ToUpper(*engineFlag))
		if !config.KnownEngine(cfg.Engine) {
			fmt.Fprintf(os.Stderr, "Error: unknown engine %q (use %s)\n", *engineFlag, joinEngines())
			return 1
		}
	}
	if *deviceFlag != "" {
		cfg.Device = *deviceFlag
	}
	if *langFlag != "" {
		cfg.Language = *langFlag
	}
	if *logPathFlag != "" {
		cfg.Log.Path = *logPathFlag
	}
	if *tracesFlag {
		cfg.Telemetry.Traces = true
	}

	logPath, err := log.ResolveDir(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
		defer crashFile.Close()
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	shutdownTraces, err := telemetry.Setup(cfg.Telemetry.Traces, log.Dir(), version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		shutdownTraces = func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shutdownTraces(ctx); err != nil {
			log.Warnf("flushing traces: %v", err)
		}
	}()

	var actx audio.Context
	var fake *audio.FakeContext
	if *testFlag != "" {
		fake, err = audio.NewFakeContext(*testFlag, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			return 1
		}
		actx = fake
	} else {
		actx, err = audio.NewContext()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
			return 1
		}
	}
	defer actx.Close()

	var dev *audio.DeviceInfo
	if *setupFlag && *testFlag == "" {
		dev, err = audio.SelectDevice(actx)
		if errors.Is(err, audio.ErrSelectionCancelled) {
			return 0
		}
	} else {
		dev, err = audio.FindDevice(actx, cfg.Device)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	dispatcher := buildDispatcher(cfg)
	log.Infof("config: engine=%s device=%q lang=%q containers=%v", cfg.Engine, cfg.Device, cfg.Language, cfg.Containers)

	if *doctorFlag {
		return doctor.Run(doctor.Options{
			Audio:      actx,
			Device:     dev,
			Containers: cfg.Containers,
			Dispatcher: dispatcher,
			Engine:     cfg.Engine,
		})
	}

	binding := audio.NewBinding(actx, dev, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	a := newApp(binding, dispatcher, cfg.Engine, cfg.Containers)

	if fake != nil {
		beep.Disable()
		runTestMode(a, os.Stdin, os.Stdout, fake.AudioDone)
		return 0
	}

	warm(dispatcher, cfg.Engine)
	if err := runTUI(a, cfg.FrameRate, deviceLineText(dev)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func joinEngines() string {
	ids := config.Engines()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}
