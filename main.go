// ABOUTME: Entry point for the sync-stream player
// ABOUTME: Loads config, discovers a server and runs playback with a TUI or streaming logs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/internal/config"
	"github.com/Resonate-Protocol/syncstream-go/internal/discovery"
	"github.com/Resonate-Protocol/syncstream-go/internal/platform"
	"github.com/Resonate-Protocol/syncstream-go/internal/ui"
	"github.com/Resonate-Protocol/syncstream-go/internal/version"
	"github.com/Resonate-Protocol/syncstream-go/pkg/audio/output"
	"github.com/Resonate-Protocol/syncstream-go/pkg/syncstream"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const discoveryTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Host, "server", cfg.Host, "Server host (skip mDNS)")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.IntVar(&cfg.BufferCapacity, "buffer", cfg.BufferCapacity, "Playback buffer size in chunks")
	flag.StringVar(&cfg.Output, "output", cfg.Output, "Audio output: oto, pulse, portaudio or null")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flag.BoolVar(&cfg.InhibitSleep, "inhibit-sleep", cfg.InhibitSleep, "Block system sleep while streaming")
	noTUI := flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs := flag.Bool("stream-logs", false, "Alias for -no-tui")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	useTUI := !(*noTUI || *streamLogs)

	f, err := setupLogging(cfg.LogFile, useTUI, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	if !useTUI {
		log.Info().Str("version", version.Version).Msgf("Starting %s", version.Product)
	}

	// TUI setup
	var tuiProg *tea.Program
	var control *ui.Control
	tuiDone := make(chan struct{})

	if useTUI {
		control = ui.NewControl()
		tuiProg = ui.Run(control, cfg.Host, cfg.BufferCapacity)
		go func() {
			defer close(tuiDone)
			if _, err := tuiProg.Run(); err != nil {
				log.Error().Err(err).Msg("TUI exited")
			}
		}()
	} else {
		close(tuiDone)
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	// Discover a server if none was given
	if cfg.Host == "" {
		log.Info().Msg("Starting server discovery...")
		ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
		server, err := discovery.Discover(ctx)
		cancel()
		if err != nil {
			shutdownTUI(tuiProg, tuiDone)
			log.Fatal().Err(err).Dur("timeout", discoveryTimeout).Msg("No server found")
		}
		cfg.Host, cfg.Port = server.Host, server.Port
		log.Info().Str("name", server.Name).Str("addr", server.Addr()).Msg("Discovered server")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	updateTUI(ui.StatusMsg{Server: addr, BufferCap: cfg.BufferCapacity})

	sink, err := output.New(cfg.Output)
	if err != nil {
		shutdownTUI(tuiProg, tuiDone)
		log.Fatal().Err(err).Msg("Failed to create audio output")
	}

	playerCfg := cfg.ToPlayerConfig()
	playerCfg.Sink = sink
	if cfg.InhibitSleep {
		playerCfg.Lock = platform.NewInhibitor(version.Product, "Streaming audio")
	}
	playerCfg.OnStatus = func(s syncstream.Status) {
		ev := log.Info()
		if s.Err != nil {
			ev = log.Warn().Err(s.Err)
		}
		ev.Str("state", s.State.String()).Msg(s.Text)
		updateTUI(ui.StatusMsg{Status: &s})
	}
	playerCfg.OnLatency = func(rtt time.Duration) {
		log.Debug().Dur("rtt", rtt).Msg("Latency updated")
	}

	player, err := syncstream.NewPlayer(playerCfg)
	if err != nil {
		shutdownTUI(tuiProg, tuiDone)
		log.Fatal().Err(err).Msg("Failed to create player")
	}

	if err := player.Start(cfg.Host, cfg.Port); err != nil {
		shutdownTUI(tuiProg, tuiDone)
		log.Fatal().Err(err).Str("addr", addr).Msg("Failed to start player")
	}

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	if tuiProg != nil {
		go statsUpdateLoop(statsCtx, player, updateTUI)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	waitForQuit(player, control, sigChan, cfg.Host, cfg.Port)

	stopStats()
	if err := player.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping player")
	}
	shutdownTUI(tuiProg, tuiDone)

	log.Info().Msg("Player stopped")
}

// setupLogging points the global logger at the log file, and at the
// console too when the TUI is off
func setupLogging(path string, useTUI, debug bool) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = f
	if !useTUI {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
		w = zerolog.MultiLevelWriter(console, f)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	return f, nil
}

// waitForQuit serves reconnect requests until the TUI or the OS asks to quit
func waitForQuit(player *syncstream.Player, control *ui.Control, sigChan <-chan os.Signal, host string, port int) {
	var reconnect, quit chan struct{}
	if control != nil {
		reconnect, quit = control.Reconnect, control.Quit
	}

	for {
		select {
		case <-reconnect:
			log.Info().Msg("Reconnect requested")
			if err := player.Stop(); err != nil && !errors.Is(err, syncstream.ErrStopTimeout) {
				log.Warn().Err(err).Msg("Stop before reconnect failed")
			}
			if err := player.Start(host, port); err != nil {
				log.Error().Err(err).Msg("Restart failed")
			}
		case <-quit:
			log.Info().Msg("Received quit signal from TUI")
			return
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
			return
		}
	}
}

// statsUpdateLoop periodically updates the TUI with playback statistics
func statsUpdateLoop(ctx context.Context, player *syncstream.Player, updateTUI func(ui.StatusMsg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := player.Stats()
			updateTUI(ui.StatusMsg{Stats: &stats})
		}
	}
}

func shutdownTUI(prog *tea.Program, done <-chan struct{}) {
	if prog == nil {
		return
	}
	prog.Quit()
	<-done
}
