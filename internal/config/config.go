package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/the127/stevedore/internal/args"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	Limits    LimitsConfig
	Transfer  TransferConfig
	Janitor   JanitorConfig
	Telemetry TelemetryConfig
	Kv        KvConfig
	Blob      BlobStorageConfig
}

type ServerConfig struct {
	Port           int
	Host           string
	ExternalUrl    string
	ExternalDomain string
	AllowedOrigins []string
}

// LimitsConfig holds the admission caps. Sizes are bytes, percentages are
// whole percents of total memory.
type LimitsConfig struct {
	MaxFileSize             int64
	MaxConcurrentUploads    int
	MaxTotalMemory          int64
	StreamingThreshold      int64
	WarningPct              float64
	CriticalPct             float64
	EmergencyPct            float64
	RemediationCooldownSecs int
	EmergencyResetSecs      int
}

type TransferConfig struct {
	ChunkTimeoutSecs    int
	MaxRetries          int
	RetryBaseDelayMilli int
}

type JanitorConfig struct {
	SweepIntervalSecs int
	StaleAfterSecs    int
	CancelGraceSecs   int
}

type TelemetryConfig struct {
	SampleIntervalSecs int
}

type KvMode string

const (
	KvModeInMemory KvMode = "memory"
	KvModeRedis    KvMode = "redis"
)

type KvConfig struct {
	Mode  KvMode
	Redis struct {
		Host     string
		Port     int
		Username string
		Password string
		Database int
	}
}

type BlobStorageMode string

const (
	BlobStorageModeInMemory BlobStorageMode = "memory"
)

type BlobStorageConfig struct {
	Mode BlobStorageMode
}

var C Config

var k = koanf.New(".")

func Init() {
	if args.ConfigFilePath() != "" {
		_, err := os.Stat(args.ConfigFilePath())
		if err != nil {
			panic(fmt.Errorf("failed to stat config file: %w", err))
		}

		err = k.Load(file.Provider(args.ConfigFilePath()), yaml.Parser())
		if err != nil {
			panic(fmt.Errorf("failed to load config file: %w", err))
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: "STEVEDORE_",
		TransformFunc: func(k, v string) (string, any) {
			// Transform the key.
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "STEVEDORE_")), "_", ".")

			if strings.Contains(v, " ") {
				return k, strings.Split(v, " ")
			}

			return k, v
		},
	}), nil)
	if err != nil {
		panic(fmt.Errorf("failed to load env provider: %w", err))
	}

	err = k.Unmarshal("", &C)
	if err != nil {
		panic(fmt.Errorf("failed to unmarshal config: %w", err))
	}

	setDefaultsOrPanic()
}

func setDefaultsOrPanic() {
	setServerDefaultsOrPanic()
	setLimitsDefaultsOrPanic()
	setTransferDefaultsOrPanic()
	setJanitorDefaultsOrPanic()
	setTelemetryDefaultsOrPanic()
	setKvDefaultsOrPanic()
	setBlobDefaultsOrPanic()
}

func setServerDefaultsOrPanic() {
	if C.Server.Host == "" {
		if args.IsProduction() {
			panic("Server.Host must be set in production.")
		}

		C.Server.Host = "localhost"
	}

	if C.Server.Port == 0 {
		C.Server.Port = 8080
	}

	if C.Server.ExternalUrl == "" {
		if args.IsProduction() {
			panic("Server.ExternalUrl must be set in production.")
		}

		C.Server.ExternalUrl = fmt.Sprintf("http://%s:%d", C.Server.Host, C.Server.Port)
	}

	if C.Server.ExternalDomain == "" {
		externalUrl, err := url.Parse(C.Server.ExternalUrl)
		if err != nil {
			panic(fmt.Errorf("failed to parse external url: %w", err))
		}

		C.Server.ExternalDomain = externalUrl.Hostname()
	}
}

func setLimitsDefaultsOrPanic() {
	if C.Limits.MaxFileSize == 0 {
		C.Limits.MaxFileSize = 500 * 1024 * 1024
	}

	if C.Limits.MaxConcurrentUploads == 0 {
		C.Limits.MaxConcurrentUploads = 10
	}

	if C.Limits.MaxTotalMemory == 0 {
		C.Limits.MaxTotalMemory = 2 * 1024 * 1024 * 1024
	}

	if C.Limits.StreamingThreshold == 0 {
		C.Limits.StreamingThreshold = 100 * 1024 * 1024
	}

	if C.Limits.WarningPct == 0 {
		C.Limits.WarningPct = 70
	}

	if C.Limits.CriticalPct == 0 {
		C.Limits.CriticalPct = 85
	}

	if C.Limits.EmergencyPct == 0 {
		C.Limits.EmergencyPct = 95
	}

	if !(C.Limits.WarningPct < C.Limits.CriticalPct && C.Limits.CriticalPct < C.Limits.EmergencyPct) {
		panic(fmt.Errorf("memory thresholds must be ordered warning < critical < emergency, got %v < %v < %v",
			C.Limits.WarningPct, C.Limits.CriticalPct, C.Limits.EmergencyPct))
	}

	if C.Limits.RemediationCooldownSecs == 0 {
		C.Limits.RemediationCooldownSecs = 5
	}

	if C.Limits.EmergencyResetSecs == 0 {
		C.Limits.EmergencyResetSecs = 600
	}
}

func setTransferDefaultsOrPanic() {
	if C.Transfer.ChunkTimeoutSecs == 0 {
		C.Transfer.ChunkTimeoutSecs = 30
	}

	if C.Transfer.MaxRetries == 0 {
		C.Transfer.MaxRetries = 3
	}

	if C.Transfer.RetryBaseDelayMilli == 0 {
		C.Transfer.RetryBaseDelayMilli = 1000
	}
}

func setJanitorDefaultsOrPanic() {
	if C.Janitor.SweepIntervalSecs == 0 {
		C.Janitor.SweepIntervalSecs = 3600
	}

	if C.Janitor.StaleAfterSecs == 0 {
		C.Janitor.StaleAfterSecs = 24 * 3600
	}

	if C.Janitor.CancelGraceSecs == 0 {
		C.Janitor.CancelGraceSecs = 5
	}
}

func setTelemetryDefaultsOrPanic() {
	if C.Telemetry.SampleIntervalSecs == 0 {
		C.Telemetry.SampleIntervalSecs = 30
	}
}

func setKvDefaultsOrPanic() {
	if C.Kv.Mode == "" {
		if args.IsProduction() {
			panic("Kv.Mode must be set in production.")
		}

		C.Kv.Mode = KvModeInMemory
	}

	switch C.Kv.Mode {
	case KvModeInMemory:
		return

	case KvModeRedis:
		setKvRedisDefaultsOrPanic()

	default:
		panic(fmt.Errorf("unsupported kv mode: %s", C.Kv.Mode))
	}
}

func setKvRedisDefaultsOrPanic() {
	if C.Kv.Redis.Host == "" {
		if args.IsProduction() {
			panic("Kv.Redis.Host must be set in production.")
		}

		C.Kv.Redis.Host = "localhost"
	}

	if C.Kv.Redis.Port == 0 {
		C.Kv.Redis.Port = 6379
	}
}

func setBlobDefaultsOrPanic() {
	if C.Blob.Mode == "" {
		C.Blob.Mode = BlobStorageModeInMemory
	}

	switch C.Blob.Mode {
	case BlobStorageModeInMemory:
		return

	default:
		panic(fmt.Errorf("unsupported blob storage mode: %s", C.Blob.Mode))
	}
}
