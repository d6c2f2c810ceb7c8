package game

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"multiplayer/world"
)

// Input is one consumed movement sample: world-space acceleration direction
// (length at most 1) plus the jump button.
type Input struct {
	Accel mgl64.Vec3 `json:"accel"`
	Jump  bool       `json:"jump,omitempty"`
}

// Step integrates one character for dt on the server. Walking follows the
// usual accelerate / brake / clamp shape; the rotation turns toward the
// direction of travel at RotationRateYaw.
func Step(a *world.Actor, in Input, dt time.Duration) {
	secs := dt.Seconds()
	if secs <= 0 {
		return
	}
	loc := a.Location()
	vel := a.Velocity
	grounded := loc.Z() <= 0

	accel := mgl64.Vec3{in.Accel.X(), in.Accel.Y(), 0}
	mag := accel.Len()
	horiz := mgl64.Vec3{vel.X(), vel.Y(), 0}

	if mag > InputDeadzone {
		if mag > 1 {
			accel = accel.Mul(1 / mag)
			mag = 1
		}
		control := 1.0
		if !grounded {
			control = AirControl
		}
		horiz = horiz.Add(accel.Mul(MaxAcceleration * control * secs))
		maxSpeed := math.Max(MaxWalkSpeed*mag, MinAnalogWalkSpeed)
		if speed := horiz.Len(); speed > maxSpeed {
			horiz = horiz.Mul(maxSpeed / speed)
		}
		faceToward(a, accel, secs)
	} else if grounded {
		speed := horiz.Len()
		drop := BrakingDecelerationWalking * secs
		if speed <= drop {
			horiz = mgl64.Vec3{}
		} else {
			horiz = horiz.Mul((speed - drop) / speed)
		}
	}

	vz := vel.Z()
	if grounded && in.Jump {
		vz = JumpZVelocity
		grounded = false
	}
	if !grounded {
		vz -= Gravity * secs
	}

	a.Velocity = mgl64.Vec3{horiz.X(), horiz.Y(), vz}
	loc = loc.Add(a.Velocity.Mul(secs))
	if loc.Z() < 0 {
		loc[2] = 0
		a.Velocity[2] = 0
	}
	a.SetLocation(loc)
}

func faceToward(a *world.Actor, dir mgl64.Vec3, secs float64) {
	rot := a.Rotation()
	want := mgl64.RadToDeg(math.Atan2(dir.Y(), dir.X()))
	delta := math.Mod(want-rot.Yaw+540, 360) - 180
	maxTurn := RotationRateYaw * secs
	if delta > maxTurn {
		delta = maxTurn
	} else if delta < -maxTurn {
		delta = -maxTurn
	}
	rot.Yaw = math.Mod(rot.Yaw+delta+360, 360)
	a.SetRotation(rot)
}

// fall moves a simulating, movable body under gravity down to the ground.
func fall(a *world.Actor, dt time.Duration) {
	if !a.SimulatesPhysics() || a.Mobility() != world.Movable {
		return
	}
	loc := a.Location()
	if loc.Z() <= 0 && a.Velocity.Z() <= 0 {
		return
	}
	secs := dt.Seconds()
	a.Velocity[2] -= Gravity * secs
	loc = loc.Add(a.Velocity.Mul(secs))
	if loc.Z() <= 0 {
		loc[2] = 0
		a.Velocity = mgl64.Vec3{}
	}
	a.SetLocation(loc)
}
