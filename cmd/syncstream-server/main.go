// ABOUTME: Entry point for the sync-stream development server
// ABOUTME: Parses CLI flags and broadcasts a tone or MP3 file until interrupted
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/internal/server"
	"github.com/Resonate-Protocol/syncstream-go/internal/version"
	"github.com/Resonate-Protocol/syncstream-go/pkg/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	port      = flag.Int("port", protocol.DefaultPort, "WebSocket server port")
	httpPort  = flag.Int("http-port", server.DefaultHTTPPort, "Status API port (0 disables it)")
	name      = flag.String("name", "", "Server friendly name (default: hostname-syncstream-server)")
	logFile   = flag.String("log-file", "syncstream-server.log", "Log file path")
	debug     = flag.Bool("debug", false, "Enable debug logging")
	noMDNS    = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	audioFile = flag.String("audio", "", "MP3 file to stream. If not specified, plays test tone")
	playDelay = flag.Duration("play-delay", server.DefaultPlayDelay, "Scheduling delay added to each chunk")
)

func main() {
	flag.Parse()

	// Log to both file and console
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var console io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, f)).With().Timestamp().Logger()

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-syncstream-server", hostname)
	}

	source, err := server.NewSource(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", *audioFile).Msg("Failed to open audio source")
	}
	defer source.Close()

	log.Info().
		Str("name", serverName).
		Str("version", version.Version).
		Int("port", *port).
		Str("source", source.Name()).
		Msg("Starting sync-stream server")
	log.Info().Str("log_file", *logFile).Msg("Press Ctrl-C to stop")

	config := server.Config{
		Port:       *port,
		HTTPPort:   *httpPort,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		PlayDelay:  *playDelay,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(config, source).Run(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
	}
}
