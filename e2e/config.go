package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CHAT_ADDR is the HTTP address of a running chat-live, the suite is skipped when empty
	ChatAddr string `envconfig:"CHAT_ADDR"`
	GrpcAddr string `envconfig:"GRPC_ADDR" default:"localhost:9090"`
	// JWT_SECRET must match the server one so the suite can sign its own tokens
	JwtSecret string `envconfig:"JWT_SECRET"`
	// E2E_DEBUG_JSON dumps every frame exchanged on the sockets
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours      bool          `envconfig:"E2E_COLOURS" default:"true"`
	FrameTimeout time.Duration `envconfig:"E2E_FRAME_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
