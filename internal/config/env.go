// Package config provides configuration helpers for go-handscroll commands.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable read by Load.
const EnvPrefix = "HANDSCROLL_"

// Env holds process configuration read from the environment.
// Flags in cmd/handscroll override these values. The default model base is
// the OpenCV zoo MediaPipe hand pose export; ModelFiles is empty unless set
// so the run command can pick the file matching --complexity.
type Env struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"DEBUG"`
	Port     string `env:"PORT" envDefault:"8080"`

	ModelBaseURL string   `env:"MODEL_BASE_URL" envDefault:"https://huggingface.co/opencv/handpose_estimation_mediapipe/resolve/main/"`
	ModelFiles   []string `env:"MODEL_FILES" envSeparator:","`
	NoPreload    bool     `env:"NO_PRELOAD"`

	CameraIndex  int    `env:"CAMERA_INDEX" envDefault:"-1"`
	CameraPreset string `env:"CAMERA_PRESET" envDefault:"default"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the environment configuration with defaults applied.
func Load() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}
