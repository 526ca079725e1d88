package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_HTTP_ADDR is the base URL of a running server started with DEV_AUTH=true
	HTTPAddr string `envconfig:"E2E_HTTP_ADDR"`
	GrpcAddr string `envconfig:"E2E_GRPC_ADDR"`
	// E2E_DEBUG_JSON dumps every received websocket frame
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
