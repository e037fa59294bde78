package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	GrpcPort              int           `env:"GRPC_PORT,default=9090"`
	DebugPort             int           `env:"DEBUG_PORT,default=8081"`
	InstanceID            string        `env:"INSTANCE_ID"`
	BadgerFilepath        string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath         string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel              string        `env:"LOG_LEVEL,default=INFO"`
	ConnectionBufferSize  int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	RoomBufferSize        int           `env:"ROOM_BUFFER_SIZE,required=true"`
	IndexBufferSize       int           `env:"INDEX_BUFFER_SIZE,default=1024"`
	IngestionTimeout      time.Duration `env:"INGESTION_TIMEOUT,required=true"`
	DeliveryTimeout       time.Duration `env:"DELIVERY_TIMEOUT,required=true"`
	SinkTimeout           time.Duration `env:"SINK_TIMEOUT,required=true"`
	RoomIdleTimeout       time.Duration `env:"ROOM_IDLE_TIMEOUT,required=true"`
	RestartInterval       time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval        time.Duration `env:"METRIC_INTERVAL,required=true"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LimitMessages         *int          `env:"LIMIT_MESSAGES"`
	MaxContentLength      int           `env:"MAX_CONTENT_LENGTH,required=true"`
	MaxFrameSize          int64         `env:"MAX_FRAME_SIZE,default=1048576"`
	CharReplacement       string        `env:"CHARACTER_REPLACEMENT,required=true"`
	EnableModeration      bool          `env:"ENABLE_MODERATION,default=true"`
	EnforceRoomMembership bool          `env:"ENFORCE_ROOM_MEMBERSHIP,default=false"`
	JwtSecret             string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration     time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	RedisAddr             string        `env:"REDIS_ADDR"`
	RedisChannel          string        `env:"REDIS_CHANNEL,default=chat-live:messages"`
	AllowedOrigins        string        `env:"ALLOWED_ORIGINS"`
	SearchLimit           int           `env:"SEARCH_LIMIT,default=20"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// Origins splits ALLOWED_ORIGINS on commas, ignoring blanks.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
