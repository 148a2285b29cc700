// Command gateway runs the TCP front door for the matching engine: a
// core.Engine wrapped by internal/gateway.Server, accepting the binary
// wire protocol described in internal/gateway/messages.go.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fenrir/internal/core"
	"fenrir/internal/gateway"
)

func main() {
	address := flag.String("address", "0.0.0.0", "address to listen on")
	port := flag.Int("port", 9001, "port to listen on")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	engine := core.NewEngine()
	srv := gateway.New(*address, *port, engine)

	log.Info().Str("address", *address).Int("port", *port).Msg("gateway: starting")
	go srv.Run(ctx)

	<-ctx.Done()
}
