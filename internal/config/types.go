package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Upload   UploadConfig   `json:"upload"`
	Jobs     JobsConfig     `json:"jobs"`
	Redis    RedisConfig    `json:"redis"`
	Media    MediaConfig    `json:"media"`
	SuperRes SuperResConfig `json:"superres"`
	Artifact ArtifactConfig `json:"artifact"`
	Sentry   SentryConfig   `json:"sentry"`
}

type ServerConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`  // seconds
	WriteTimeout time.Duration `json:"write_timeout"` // seconds
}

type UploadConfig struct {
	MaxRequestBodyMB     int64 `json:"max_request_body"`
	MaxMultipartMemoryMB int64 `json:"max_multipart_memory"`
}

// JobsConfig controls the job registry and executor.
type JobsConfig struct {
	Backend       string        `json:"backend"`        // "memory" (default) or "redis"
	WorkDir       string        `json:"work_dir"`       // task dirs live here; defaults to the OS temp dir
	MaxConcurrent int           `json:"max_concurrent"` // 0 = unlimited
	ReapInterval  time.Duration `json:"reap_interval"`  // seconds
	Retention     time.Duration `json:"retention"`      // seconds a terminal job stays observable
}

type RedisConfig struct {
	Password            string        `json:"password"`
	DatabaseID          int           `json:"database_id"`
	HealthCheckInterval time.Duration `json:"health_check_interval"` // seconds
	DialTimeout         time.Duration `json:"dial_timeout"`          // seconds
	ReadTimeout         time.Duration `json:"read_timeout"`          // seconds
	WriteTimeout        time.Duration `json:"write_timeout"`         // seconds
	PoolSize            int           `json:"pool_size"`
	Nodes               []RedisNode   `json:"nodes"`
}

type RedisNode struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

// MediaConfig points at the external codec engines.
type MediaConfig struct {
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
}

// SuperResConfig configures the optional super-resolution engine. When
// enabled, upscale jobs run their frames through the model before
// resampling; a missing model fails those jobs, not the process.
type SuperResConfig struct {
	Enabled   bool   `json:"enabled"`
	Binary    string `json:"binary"`
	ModelDir  string `json:"model_dir"`
	ModelName string `json:"model_name"`
}

// ArtifactConfig configures the optional mirror of finished artifacts to an
// S3-compatible bucket.
type ArtifactConfig struct {
	Enabled     bool   `json:"enabled"`
	BucketName  string `json:"bucket_name"`
	Region      string `json:"region"`
	AccessKeyID string `json:"access_key_id"`
	SecretKey   string `json:"secret_key"`
	Endpoint    string `json:"endpoint"`
}

type SentryConfig struct {
	SentryDSN   string `json:"sentry_dsn"`
	Environment string `json:"environment"`
}
