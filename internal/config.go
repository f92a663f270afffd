package internal

import (
	"time"
)

type Config struct {
	BufferSize        int           `env:"BUFFER_SIZE,required=true"`
	LimitMessages     *int          `env:"LIMIT_MESSAGES"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,required=true"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,required=true"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL,required=true"`
	InvitationTTL     time.Duration `env:"INVITATION_TTL,required=true"`
	DeleteBatchSize   int           `env:"DELETE_BATCH_SIZE,required=true"`
	AuthTokenSecret   string        `env:"AUTH_TOKEN_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	DebugPort         int           `env:"DEBUG_PORT,default=6067"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
}
