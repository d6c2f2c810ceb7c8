// Command multiplayer hosts or joins a LAN session of the sample game.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"multiplayer/config"
	"multiplayer/game"
	"multiplayer/health"
	"multiplayer/network"
	"multiplayer/session"
	"multiplayer/telemetry"
	"multiplayer/world"
)

const serviceName = "multiplayer"

func main() {
	log.SetPrefix("[multiplayer] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	mode := fs.String("mode", "host", "host or join")
	fs.StringVar(&cfg.JoinAddr, "addr", cfg.JoinAddr, "server address to join")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to listen on when hosting")
	fs.StringVar(&cfg.Map, "map", cfg.Map, "map to load when hosting")
	fs.StringVar(&cfg.PlayerName, "name", cfg.PlayerName, "player name")
	interactive := fs.Bool("console", true, "read player commands from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	assets := game.Assets{
		SphereMesh:     cfg.SphereMesh,
		ParticleSystem: cfg.ParticleSystem,
		MappingContext: cfg.MappingContext,
	}
	gm := game.NewGameMode(cfg.Map, cfg.JoinAddr)
	proc := session.NewProcess(session.Options{
		Name:        cfg.PlayerName,
		LocalPlayer: true,
		Setup:       func(w *world.World) { game.Register(w, assets) },
		Mode:        gm,
		Listener:    &network.Listener{Addr: cfg.ListenAddr},
		Dialer:      network.Dialer{},
	})
	gm.Travel = proc
	defer proc.Shutdown()

	g, gctx := errgroup.WithContext(ctx)
	switch *mode {
	case "host":
		if err := gm.HostLANGame(gctx); err != nil {
			return err
		}
		hs, err := health.New(cfg.HealthAddr)
		if err != nil {
			return err
		}
		hs.Track(proc.Server().Done())
		g.Go(func() error { return hs.Serve(gctx) })
	case "join":
		if err := gm.JoinLANGame(gctx); err != nil {
			return err
		}
		g.Go(func() error {
			select {
			case <-proc.Client().Done():
				return proc.Client().Err()
			case <-gctx.Done():
				return nil
			}
		})
	default:
		return fmt.Errorf("unknown mode %q (want host or join)", *mode)
	}
	log.Printf("%s as %s", *mode, proc.NetMode())

	if *interactive {
		g.Go(func() error { return console(gctx, os.Stdin, os.Stdout, proc) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})
	if err := g.Wait(); !errors.Is(err, errQuit) {
		return err
	}
	return nil
}
