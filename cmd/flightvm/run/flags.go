// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/luxfi/flightvm/genesis"
)

const (
	HTTPHostKey        = "http-host"
	HTTPPortKey        = "http-port"
	AllowedOriginsKey  = "allowed-origins"
	GenesisFileKey     = "genesis-file"
	ConfigFileKey      = "config-file"
	DBDirKey           = "db-dir"
	JWTSecretEnvKey    = "jwt-secret-env"
	ShutdownTimeoutKey = "shutdown-timeout"
)

var ErrNoGenesis = errors.New("genesis file is required")

func AddFlags(flags *pflag.FlagSet) {
	flags.String(HTTPHostKey, "127.0.0.1", "Address of the HTTP server")
	flags.Uint16(HTTPPortKey, 9650, "Port of the HTTP server")
	flags.StringSlice(AllowedOriginsKey, []string{"*"}, "Origins allowed to make cross origin requests")
	flags.String(GenesisFileKey, "", "Path to the JSON genesis file (required)")
	flags.String(ConfigFileKey, "", "Path to the JSON config file")
	flags.String(DBDirKey, "", "Database directory, in memory when empty")
	flags.String(JWTSecretEnvKey, "FLIGHTVM_JWT_SECRET", "Environment variable holding the API token secret")
	flags.Duration(ShutdownTimeoutKey, 10*time.Second, "Maximum wait for in flight requests on shutdown")
}

type Config struct {
	HTTPHost        string
	HTTPPort        uint16
	AllowedOrigins  []string
	Genesis         []byte
	VMConfig        []byte
	DBDir           string
	JWTSecret       []byte
	ShutdownTimeout time.Duration
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	host, err := flags.GetString(HTTPHostKey)
	if err != nil {
		return nil, err
	}

	port, err := flags.GetUint16(HTTPPortKey)
	if err != nil {
		return nil, err
	}

	origins, err := flags.GetStringSlice(AllowedOriginsKey)
	if err != nil {
		return nil, err
	}

	genesisPath, err := flags.GetString(GenesisFileKey)
	if err != nil {
		return nil, err
	}
	if genesisPath == "" {
		return nil, ErrNoGenesis
	}
	genesisBytes, err := readGenesis(genesisPath)
	if err != nil {
		return nil, err
	}

	configPath, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}
	var configBytes []byte
	if configPath != "" {
		configBytes, err = os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
	}

	dbDir, err := flags.GetString(DBDirKey)
	if err != nil {
		return nil, err
	}

	secretEnv, err := flags.GetString(JWTSecretEnvKey)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := flags.GetDuration(ShutdownTimeoutKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPHost:        host,
		HTTPPort:        port,
		AllowedOrigins:  origins,
		Genesis:         genesisBytes,
		VMConfig:        configBytes,
		DBDir:           dbDir,
		JWTSecret:       []byte(os.Getenv(secretEnv)),
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

// readGenesis reads a JSON genesis file and returns its codec encoding.
func readGenesis(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g := &genesis.Genesis{}
	if err := json.Unmarshal(b, g); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := g.Verify(); err != nil {
		return nil, err
	}
	return g.Bytes()
}
