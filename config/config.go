// Package config loads settings from an optional YAML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"polyglot/transcriber"
)

type EngineConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

type LogConfig struct {
	Path string `yaml:"path"`
}

type TelemetryConfig struct {
	// Traces writes dispatch spans to traces.json in the log directory.
	Traces bool `yaml:"traces"`
}

type Config struct {
	Engine     transcriber.EngineID `yaml:"engine"`
	Device     string               `yaml:"device"`
	Language   string               `yaml:"language"`
	Containers []string             `yaml:"containers"`
	FrameRate  int                  `yaml:"frame_rate"`

	Gemini   EngineConfig `yaml:"gemini"`
	OpenAI   EngineConfig `yaml:"openai"`
	Groq     EngineConfig `yaml:"groq"`
	Deepgram EngineConfig `yaml:"deepgram"`

	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

var engines = []transcriber.EngineID{
	transcriber.Local,
	transcriber.CloudGemini,
	transcriber.CloudOpenAI,
	transcriber.CloudGroq,
	transcriber.CloudDeepgram,
}

// Engines lists every engine id in registration order.
func Engines() []transcriber.EngineID {
	return append([]transcriber.EngineID(nil), engines...)
}

func Default() Config {
	return Config{
		Engine:     transcriber.CloudGemini,
		Containers: []string{"audio/webm", "audio/mp4", "audio/flac", "audio/wav"},
		FrameRate:  30,
	}
}

// DefaultPath is the config file looked up when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "polyglot", "config.yaml")
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
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
	overrideEngine(&cfg.Engine, "POLYGLOT_ENGINE")
	overrideString(&cfg.Device, "POLYGLOT_DEVICE")
	overrideString(&cfg.Language, "POLYGLOT_LANGUAGE")
	overrideStringSlice(&cfg.Containers, "POLYGLOT_CONTAINERS")
	overrideInt(&cfg.FrameRate, "POLYGLOT_FRAME_RATE")
	overrideString(&cfg.Log.Path, "POLYGLOT_LOG_PATH")
	overrideBool(&cfg.Telemetry.Traces, "POLYGLOT_TELEMETRY_TRACES")

	overrideString(&cfg.Gemini.APIKey, "API_KEY")
	overrideString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.Gemini.Model, "POLYGLOT_GEMINI_MODEL")
	overrideString(&cfg.Gemini.Endpoint, "POLYGLOT_GEMINI_ENDPOINT")

	overrideString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.OpenAI.Model, "POLYGLOT_OPENAI_MODEL")
	overrideString(&cfg.OpenAI.Endpoint, "POLYGLOT_OPENAI_ENDPOINT")

	overrideString(&cfg.Groq.APIKey, "GROQ_API_KEY")
	overrideString(&cfg.Groq.Model, "POLYGLOT_GROQ_MODEL")
	overrideString(&cfg.Groq.Endpoint, "POLYGLOT_GROQ_ENDPOINT")

	overrideString(&cfg.Deepgram.APIKey, "DEEPGRAM_API_KEY")
	overrideString(&cfg.Deepgram.Model, "POLYGLOT_DEEPGRAM_MODEL")
	overrideString(&cfg.Deepgram.Endpoint, "POLYGLOT_DEEPGRAM_ENDPOINT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideEngine(target *transcriber.EngineID, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = transcriber.EngineID(strings.ToUpper(strings.TrimSpace(value)))
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
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
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// KnownEngine reports whether id names a built-in engine.
func KnownEngine(id transcriber.EngineID) bool {
	for _, e := range engines {
		if e == id {
			return true
		}
	}
	return false
}

func validate(cfg Config) error {
	if !KnownEngine(cfg.Engine) {
		return fmt.Errorf("engine %q must be one of %v", cfg.Engine, engines)
	}
	if len(cfg.Containers) == 0 {
		return errors.New("containers must not be empty")
	}
	for _, c := range cfg.Containers {
		if !strings.Contains(c, "/") {
			return fmt.Errorf("container %q is not a MIME type", c)
		}
	}
	if cfg.FrameRate <= 0 || cfg.FrameRate > 120 {
		return errors.New("frame_rate must be between 1 and 120")
	}
	return nil
}

// Options returns the engine options for a cloud engine id.
func (c Config) Options(id transcriber.EngineID) transcriber.Options {
	var e EngineConfig
	switch id {
	case transcriber.CloudGemini:
		e = c.Gemini
	case transcriber.CloudOpenAI:
		e = c.OpenAI
	case transcriber.CloudGroq:
		e = c.Groq
	case transcriber.CloudDeepgram:
		e = c.Deepgram
	}
	return transcriber.Options{
		APIKey:   e.APIKey,
		Model:    e.Model,
		Endpoint: e.Endpoint,
		Language: c.Language,
	}
}
