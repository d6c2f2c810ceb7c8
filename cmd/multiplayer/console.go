package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/game"
	"multiplayer/session"
	"multiplayer/world"
)

const consoleHelp = `commands:
  move <x> <y>     one tick of movement input, y forward and x right
  look <yaw> <pitch>
  jump | stopjump
  rpc <0-100>      ServerRPCTest
  effect           ClientRPCFunction
  where            print the local pawn location
  quit`

var errQuit = errors.New("quit")

// console reads commands from r, one per line, and applies them to the local
// player of proc until r ends, ctx ends or quit is read.
func console(ctx context.Context, r io.Reader, out io.Writer, proc *session.Process) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := execLine(ctx, proc, out, line)
			if errors.Is(err, errQuit) {
				return err
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

func execLine(ctx context.Context, proc *session.Process, out io.Writer, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	args := parts[1:]
	switch strings.ToLower(parts[0]) {
	case "move", "look":
		v, err := parseVec2(args)
		if err != nil {
			return err
		}
		action := game.ActionMove
		if strings.ToLower(parts[0]) == "look" {
			action = game.ActionLook
		}
		return proc.Input(ctx, action, world.Triggered, v)
	case "jump":
		return proc.Input(ctx, game.ActionJump, world.Triggered, mgl64.Vec2{})
	case "stopjump":
		return proc.Input(ctx, game.ActionJump, world.Completed, mgl64.Vec2{})
	case "rpc":
		if len(args) != 1 {
			return fmt.Errorf("usage: rpc <value>")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("rpc value: %w", err)
		}
		return withCharacter(ctx, proc, func(c *game.Character) error { return c.ServerRPCTest(ctx, v) })
	case "effect":
		return withCharacter(ctx, proc, func(c *game.Character) error { return c.ClientRPCFunction(ctx) })
	case "where":
		return withCharacter(ctx, proc, func(c *game.Character) error {
			fmt.Fprintf(out, "%v\n", c.Location())
			return nil
		})
	case "help":
		fmt.Fprintln(out, consoleHelp)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", parts[0])
	}
}

func parseVec2(args []string) (mgl64.Vec2, error) {
	if len(args) != 2 {
		return mgl64.Vec2{}, fmt.Errorf("want two numbers, got %d", len(args))
	}
	var v mgl64.Vec2
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return mgl64.Vec2{}, err
		}
		v[i] = f
	}
	return v, nil
}

// withCharacter runs fn on the loop that owns the local pawn.
func withCharacter(ctx context.Context, proc *session.Process, fn func(c *game.Character) error) error {
	local := proc.LocalPlayer()
	if local == nil {
		return errors.New("no local player")
	}
	var err error
	if doErr := proc.Do(ctx, func(*world.World) {
		if local.Pawn == nil {
			err = errors.New("no pawn yet")
			return
		}
		c, ok := local.Pawn.Behavior().(*game.Character)
		if !ok {
			err = errors.New("pawn is not a character")
			return
		}
		err = fn(c)
	}); doErr != nil {
		return doErr
	}
	return err
}
