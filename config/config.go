// Package config reads hlsflow's environment configuration and sets up
// the ambient services: logging and the run ledger database.
package config

import (
	"github.com/ReconfigureIO/hlsflow/evaluate"
	"github.com/caarlos0/env"
)

type Config struct {
	ProgramName string `env:"HLSFLOW_NAME" envDefault:"hlsflow"`
	Env         string `env:"HLSFLOW_ENV" envDefault:"development"`
	DbUrl       string `env:"DATABASE_URL"`
	Port        string `env:"PORT" envDefault:"8080"`
	// CallbackURL receives stage events. Events are dropped if empty.
	CallbackURL string `env:"CALLBACK_URL"`
	Log         LogConfig
	Storage     StorageConfig
	Toolchain   ToolchainConfig
	Policy      evaluate.Policy
}

type LogConfig struct {
	Level       string `env:"HLSFLOW_LOG_LEVEL" envDefault:"info"`
	LogzioToken string `env:"LOGZIO_TOKEN"`
	// GelfAddr is a host:port accepting GELF over UDP.
	GelfAddr string `env:"HLSFLOW_GELF_ADDR"`
}

// StorageConfig selects where finished projects are published. The S3
// bucket wins when both are set.
type StorageConfig struct {
	Bucket string `env:"HLSFLOW_S3_BUCKET"`
	Region string `env:"AWS_REGION" envDefault:"us-east-1"`
	Dir    string `env:"HLSFLOW_STORAGE_DIR"`
}

type ToolchainConfig struct {
	Vivado string `env:"HLSFLOW_VIVADO" envDefault:"vivado_hls"`
	// CXX compiles the generated firmware into a shared library after
	// conversion. The step is skipped if empty.
	CXX string `env:"HLSFLOW_CXX"`
	// DockerImage runs the backend in a container instead of on the host.
	DockerImage string `env:"HLSFLOW_DOCKER_IMAGE"`
	// DockerBinds are host:container mounts for the vendor install.
	DockerBinds []string `env:"HLSFLOW_DOCKER_BINDS" envSeparator:","`
}

// Production reports whether hlsflow runs in production.
func (c *Config) Production() bool {
	return c.Env == "production"
}

func ParseEnvConfig() (*Config, error) {
	conf := Config{}

	err := env.Parse(&conf)
	if err != nil {
		return nil, err
	}

	err = env.Parse(&conf.Log)
	if err != nil {
		return nil, err
	}

	err = env.Parse(&conf.Storage)
	if err != nil {
		return nil, err
	}

	err = env.Parse(&conf.Toolchain)
	if err != nil {
		return nil, err
	}

	err = env.Parse(&conf.Policy)
	if err != nil {
		return nil, err
	}

	return &conf, nil
}
