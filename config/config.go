package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment after an
// optional .env file.
type Config struct {
	ListenAddr     string `env:"MULTIPLAYER_LISTEN_ADDR" envDefault:":7777"`
	JoinAddr       string `env:"MULTIPLAYER_JOIN_ADDR" envDefault:"10.0.0.18:7777"`
	Map            string `env:"MULTIPLAYER_MAP" envDefault:"/Game/ThirdPerson/Maps/ThirdPersonMap"`
	HealthAddr     string `env:"MULTIPLAYER_HEALTH_ADDR" envDefault:":7778"`
	PlayerName     string `env:"MULTIPLAYER_PLAYER_NAME"`
	SphereMesh     string `env:"MULTIPLAYER_SPHERE_MESH" envDefault:"Sphere"`
	ParticleSystem string `env:"MULTIPLAYER_PARTICLE_SYSTEM" envDefault:"P_Explosion"`
	MappingContext string `env:"MULTIPLAYER_MAPPING_CONTEXT" envDefault:"IMC_Default"`
	OtelEndpoint   string `env:"MULTIPLAYER_OTEL_ENDPOINT"`
}

// Load reads files (".env" when none are given) into the environment and
// parses Config. Missing files are not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	} else {
		log.Println("Successfully loaded environment variables")
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func GetEnvVariable(v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("input param empty")
	}
	b := os.Getenv(v)
	if b == "" {
		return "", fmt.Errorf("failed to get variable for %s", v)
	}

	return b, nil
}
