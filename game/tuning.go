package game

import "time"

const (
	CapsuleRadius              = 42.0
	CapsuleHalfHeight          = 96.0
	RotationRateYaw            = 500.0 // degrees per second
	JumpZVelocity              = 700.0
	AirControl                 = 0.35
	MaxWalkSpeed               = 500.0
	MinAnalogWalkSpeed         = 20.0
	MaxAcceleration            = 2048.0
	BrakingDecelerationWalking = 2000.0
	Gravity                    = 980.0
	InputDeadzone              = 0.08

	SpawnForwardOffset = 100.0 // prop spawns this far in front of the character
	SpawnUpOffset      = 50.0
	BoxRiseOnChange    = 200.0
	BoxInitialValue    = 100.0

	ServerRPCTestMin = 0
	ServerRPCTestMax = 100
)

const (
	BoxDecreaseInterval = 2 * time.Second
	BoxExplodeInterval  = 2 * time.Second
)
