package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"minute/audio"
	"minute/config"
	"minute/conn"
	"minute/log"
	"minute/session"
	"minute/shutdown"
	"minute/transcript"
	"minute/wire"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(ctrl *session.Controller, link *conn.Manager) {
	shutdownOnce.Do(func() {
		if ctrl != nil {
			ctrl.Shutdown()
		}
		if link != nil {
			link.Shutdown()
		}
		log.Close()
	})
}

func main() {
	// Optional .env next to the binary; absence is fine.
	godotenv.Load()

	serverFlag := flag.String("server", "", "Transcription backend URL (ws:// or wss://)")
	modeFlag := flag.String("mode", "microphone", "Capture mode: microphone, screen, or mixed")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	langFlag := flag.String("lang", "", "Language hint passed to the backend")
	exportDirFlag := flag.String("exportdir", "", "Directory for exported transcripts")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("minute %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Loader{}.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *serverFlag != "" {
		cfg.ServerURL = *serverFlag
	}
	if *deviceFlag != "" {
		cfg.MicDevice = *deviceFlag
	}
	if *langFlag != "" {
		cfg.Language = *langFlag
	}
	if *exportDirFlag != "" {
		cfg.ExportDir = *exportDirFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	mode := audio.Mode(*modeFlag)
	if !mode.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q (use microphone, screen, or mixed)\n", *modeFlag)
		os.Exit(1)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var micDevice *audio.DeviceInfo
	if *setupFlag {
		micDevice, err = audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		}
	} else if cfg.MicDevice != "" {
		if devices, err := actx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == cfg.MicDevice {
					micDevice = &devices[i]
					break
				}
			}
		}
		if micDevice == nil {
			log.Warnf("device not found, using default: %s", cfg.MicDevice)
		}
	}
	if micDevice != nil && audio.IsBluetooth(micDevice.Name) {
		fmt.Println("Warning: Bluetooth microphone selected; expect reduced audio quality")
	}

	agg := transcript.NewAggregator()

	recordingType := cfg.RecordingType
	if cfg.Language != "" {
		recordingType += ":" + cfg.Language
	}

	// The link dispatches into the controller; the controller sends
	// through the link. Tie the knot through the handler closure.
	var ctrl *session.Controller
	link := conn.New(cfg.ServerURL, func(msg wire.Inbound) {
		if ctrl != nil {
			ctrl.HandleInbound(msg)
		}
	})
	ctrl = session.NewController(session.Config{
		SampleRate:    cfg.SampleRate,
		MicDevice:     micDevice,
		RecordingType: recordingType,
	}, actx, link, agg, sink{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	link.Start(ctx)

	tuiMu.Lock()
	tuiProgram = tea.NewProgram(newTUIModel(ctrl, link, mode, cfg.ExportDir), tea.WithAltScreen())
	p := tuiProgram
	tuiMu.Unlock()

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
	}
	gracefulShutdown(ctrl, link)
}
