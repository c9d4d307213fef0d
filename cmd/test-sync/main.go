// ABOUTME: Clock sync check for a sync-stream server
// ABOUTME: Sends pings and a sync request, then reports round trip and clock offset
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	host     = flag.String("host", "localhost", "Server host")
	port     = flag.Int("port", protocol.DefaultPort, "Server port")
	count    = flag.Int("count", 10, "Number of pings")
	interval = flag.Duration("interval", 200*time.Millisecond, "Delay between pings")
)

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := protocol.Dial(ctx, *host, *port, protocol.DialOptions{
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     5 * time.Second,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Connect failed")
	}
	defer conn.Close()

	log.Info().Str("addr", conn.Addr()).Int("count", *count).Msg("Measuring clock sync")

	result, err := measure(ctx, conn, *count, *interval)
	if err != nil {
		log.Fatal().Err(err).Msg("Measurement failed")
	}

	fmt.Println(result)
}
