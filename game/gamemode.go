package game

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/world"
)

const DefaultMap = "/Game/ThirdPerson/Maps/ThirdPersonMap"

// Traveler is the session surface a game mode drives.
type Traveler interface {
	ServerTravel(ctx context.Context, url string) error
	ClientTravel(ctx context.Context, addr string) error
	LocalPlayer() *world.Controller
}

// GameMode picks the default pawn, fills the level and hands pawns to
// players as they log in.
type GameMode struct {
	DefaultPawn string
	Map         string
	JoinAddress string
	Travel      Traveler

	logins int
}

func NewGameMode(mapPath, joinAddr string) *GameMode {
	if mapPath == "" {
		mapPath = DefaultMap
	}
	return &GameMode{
		DefaultPawn: CharacterType,
		Map:         mapPath,
		JoinAddress: joinAddr,
	}
}

// HostLANGame loads the map as a listen server.
func (gm *GameMode) HostLANGame(ctx context.Context) error {
	if gm.Travel == nil {
		return nil
	}
	return gm.Travel.ServerTravel(ctx, gm.Map+"?listen")
}

// JoinLANGame connects the first local player to JoinAddress. Without a
// local player it does nothing.
func (gm *GameMode) JoinLANGame(ctx context.Context) error {
	if gm.Travel == nil || gm.Travel.LocalPlayer() == nil {
		return nil
	}
	return gm.Travel.ClientTravel(ctx, gm.JoinAddress)
}

// levelActors is what each map places at load.
var levelActors = map[string][]struct {
	Type     string
	Location mgl64.Vec3
}{
	DefaultMap: {
		{Type: BoxType, Location: mgl64.Vec3{400, 0, 50}},
	},
}

// StartPlay spawns the actors placed in the loaded map.
func (gm *GameMode) StartPlay(w *world.World) error {
	for _, la := range levelActors[w.Map()] {
		if _, err := w.Spawn(la.Type, world.SpawnParams{Location: la.Location}); err != nil {
			return fmt.Errorf("start play %s: %w", w.Map(), err)
		}
	}
	return nil
}

// PostLogin spawns the default pawn for c and possesses it.
func (gm *GameMode) PostLogin(w *world.World, c *world.Controller) error {
	gm.logins++
	start := mgl64.Vec3{0, float64(gm.logins-1) * 2 * CapsuleRadius * 3, 0}
	pawn, err := w.Spawn(gm.DefaultPawn, world.SpawnParams{Conn: c.Conn, Location: start})
	if err != nil {
		return fmt.Errorf("post login %s: %w", c.Name, err)
	}
	w.Possess(c, pawn)
	return nil
}

// Logout destroys the pawn of c and everything its connection owns.
func (gm *GameMode) Logout(w *world.World, c *world.Controller) {
	if c.Pawn != nil {
		w.Destroy(c.Pawn)
	}
	if c.Conn == "" {
		return
	}
	for _, a := range w.Actors() {
		if a.OwningConn() == c.Conn {
			w.Destroy(a)
		}
	}
}

// Register makes every actor type of the game spawnable in w.
func Register(w *world.World, assets Assets) {
	w.Register(CharacterType, NewCharacter(assets))
	w.Register(BoxType, NewBox)
	w.Register(PropType, NewProp)
}
