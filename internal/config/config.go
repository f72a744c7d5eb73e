package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Translator  TranslatorConfig `yaml:"translator"`
	Audio       AudioConfig      `yaml:"audio"`
	Gateway     GatewayConfig    `yaml:"gateway"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type TranslatorConfig struct {
	Mode          string `yaml:"mode"` // gemini, mock
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	TriggerTokens int64  `yaml:"compression_trigger_tokens"`
	TargetTokens  int64  `yaml:"compression_target_tokens"`
}

type AudioConfig struct {
	Enabled            bool `yaml:"enabled"`
	CaptureSampleRate  int  `yaml:"capture_sample_rate"`
	CaptureChannels    int  `yaml:"capture_channels"`
	CaptureFrameBytes  int  `yaml:"capture_frame_bytes"`
	PlaybackSampleRate int  `yaml:"playback_sample_rate"`
	PlaybackChannels   int  `yaml:"playback_channels"`
}

type GatewayConfig struct {
	ReadLimitBytes int64 `yaml:"read_limit_bytes"`
	PingIntervalMS int   `yaml:"ping_interval_ms"`
	WriteTimeoutMS int   `yaml:"write_timeout_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "lingua-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        true,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/lingua-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Translator: TranslatorConfig{
			Mode:          "gemini",
			Model:         "models/gemini-2.0-flash-live-001",
			TriggerTokens: 25600,
			TargetTokens:  12800,
		},
		Audio: AudioConfig{
			Enabled:            false,
			CaptureSampleRate:  16000,
			CaptureChannels:    1,
			CaptureFrameBytes:  3200,
			PlaybackSampleRate: 24000,
			PlaybackChannels:   1,
		},
		Gateway: GatewayConfig{
			ReadLimitBytes: 1 << 20,
			PingIntervalMS: 20000,
			WriteTimeoutMS: 5000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LINGUA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LINGUA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LINGUA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LINGUA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LINGUA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LINGUA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LINGUA_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "LINGUA_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LINGUA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LINGUA_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "LINGUA_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "LINGUA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LINGUA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LINGUA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LINGUA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LINGUA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LINGUA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "LINGUA_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LINGUA_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LINGUA_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "LINGUA_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LINGUA_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Translator.Mode, "LINGUA_TRANSLATOR_MODE")
	overrideString(&cfg.Translator.Model, "LINGUA_TRANSLATOR_MODEL")
	overrideString(&cfg.Translator.APIKey, "LINGUA_TRANSLATOR_API_KEY")
	overrideInt64(&cfg.Translator.TriggerTokens, "LINGUA_TRANSLATOR_COMPRESSION_TRIGGER_TOKENS")
	overrideInt64(&cfg.Translator.TargetTokens, "LINGUA_TRANSLATOR_COMPRESSION_TARGET_TOKENS")
	overrideBool(&cfg.Audio.Enabled, "LINGUA_AUDIO_ENABLED")
	overrideInt(&cfg.Audio.CaptureSampleRate, "LINGUA_AUDIO_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Audio.CaptureChannels, "LINGUA_AUDIO_CAPTURE_CHANNELS")
	overrideInt(&cfg.Audio.CaptureFrameBytes, "LINGUA_AUDIO_CAPTURE_FRAME_BYTES")
	overrideInt(&cfg.Audio.PlaybackSampleRate, "LINGUA_AUDIO_PLAYBACK_SAMPLE_RATE")
	overrideInt(&cfg.Audio.PlaybackChannels, "LINGUA_AUDIO_PLAYBACK_CHANNELS")
	overrideInt64(&cfg.Gateway.ReadLimitBytes, "LINGUA_GATEWAY_READ_LIMIT_BYTES")
	overrideInt(&cfg.Gateway.PingIntervalMS, "LINGUA_GATEWAY_PING_INTERVAL_MS")
	overrideInt(&cfg.Gateway.WriteTimeoutMS, "LINGUA_GATEWAY_WRITE_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	switch cfg.Translator.Mode {
	case "gemini", "mock":
	default:
		return errors.New("translator.mode must be one of gemini|mock")
	}
	if cfg.Translator.Mode == "gemini" && cfg.Translator.Model == "" {
		return errors.New("translator.model must be set when mode=gemini")
	}
	if cfg.Translator.TriggerTokens <= 0 {
		return errors.New("translator.compression_trigger_tokens must be positive")
	}
	if cfg.Translator.TargetTokens <= 0 || cfg.Translator.TargetTokens >= cfg.Translator.TriggerTokens {
		return errors.New("translator.compression_target_tokens must be positive and below the trigger threshold")
	}
	if cfg.Audio.Enabled {
		if cfg.Audio.CaptureSampleRate <= 0 {
			return errors.New("audio.capture_sample_rate must be positive")
		}
		if cfg.Audio.CaptureChannels <= 0 {
			return errors.New("audio.capture_channels must be positive")
		}
		if cfg.Audio.CaptureFrameBytes <= 0 {
			return errors.New("audio.capture_frame_bytes must be positive")
		}
		if cfg.Audio.PlaybackSampleRate <= 0 {
			return errors.New("audio.playback_sample_rate must be positive")
		}
		if cfg.Audio.PlaybackChannels <= 0 {
			return errors.New("audio.playback_channels must be positive")
		}
	}
	if cfg.Gateway.ReadLimitBytes <= 0 {
		return errors.New("gateway.read_limit_bytes must be positive")
	}
	if cfg.Gateway.PingIntervalMS <= 0 {
		return errors.New("gateway.ping_interval_ms must be positive")
	}
	if cfg.Gateway.WriteTimeoutMS <= 0 {
		return errors.New("gateway.write_timeout_ms must be positive")
	}
	return nil
}
