package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/reversync/reversync/base/appbase"
	"github.com/reversync/reversync/base/logging"
	"github.com/reversync/reversync/base/utils"
)

type Config struct {
	// InstanceId of this connector runtime instance. Used in logs and metrics.
	// Default: random uuid
	InstanceId string `mapstructure:"INSTANCE_ID"`

	// HTTPPort port for the connector http server.
	HTTPPort int `mapstructure:"HTTP_PORT" default:"3049"`

	// # AUTH

	// AuthTokens A list of auth tokens that the orchestrator embeds as a URL
	// segment, separated by comma. A token is either plain or hashed in format
	// `${salt}.${hash}` where hash is `base64(sha512($token + $salt + TokenSecrets))`
	AuthTokens string `mapstructure:"AUTH_TOKENS"`
	// See AuthTokens
	TokenSecrets string `mapstructure:"TOKEN_SECRET"`

	// # LOGGING

	// LogFormat log format. Can be `text` or `json`. Default: `text`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// LogLevel log level. Default: `info`
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`

	// # DESTINATION

	// DestinationType name of the registered destination implementation
	DestinationType string `mapstructure:"DESTINATION_TYPE" default:"memory"`
	// DestinationConfigJSON implementation specific credentials and settings
	// as a JSON object
	DestinationConfigJSON string `mapstructure:"DESTINATION_CONFIG_JSON"`

	// # TIMEOUTS

	// RPCTimeoutMs timeout of one RPC exchange, enforced by the http layer
	RPCTimeoutMs int `mapstructure:"RPC_TIMEOUT_MS" default:"30000"`
	// BatchTimeoutMs processing budget of one sync_batch call. Must be below
	// RPCTimeoutMs so the reply always makes it out before the orchestrator
	// gives up
	BatchTimeoutMs int `mapstructure:"BATCH_TIMEOUT_MS" default:"25000"`
	// RecordWorkers concurrent per-record destination calls within one batch
	RecordWorkers int `mapstructure:"RECORD_WORKERS" default:"16"`
}

func (c *Config) PostInit(settings *appbase.AppSettings) error {
	if err := logging.InitGlobalLogger(c.LogLevel, nil); err != nil {
		return err
	}
	if c.LogFormat == "json" {
		logging.SetJsonFormatter()
	}
	if c.InstanceId == "" {
		c.InstanceId = uuid.NewString()
		logging.Infof("Generated instance id: %s", c.InstanceId)
	} else {
		logging.Infof("Instance id: %s", c.InstanceId)
	}
	if c.BatchTimeoutMs >= c.RPCTimeoutMs {
		return fmt.Errorf("BATCH_TIMEOUT_MS (%d) must be below RPC_TIMEOUT_MS (%d)", c.BatchTimeoutMs, c.RPCTimeoutMs)
	}
	return nil
}

// DestinationCredentials parses DestinationConfigJSON into a config map for
// the destination registry.
func (c *Config) DestinationCredentials() (map[string]any, error) {
	if c.DestinationConfigJSON == "" {
		return map[string]any{}, nil
	}
	credentials := map[string]any{}
	if err := jsoniter.Unmarshal([]byte(c.DestinationConfigJSON), &credentials); err != nil {
		return nil, fmt.Errorf("error parsing DESTINATION_CONFIG_JSON: %w", err)
	}
	return credentials, nil
}

// InitAppConfig loads the application config from file and environment.
func InitAppConfig() (*Config, error) {
	settings := &appbase.AppSettings{
		Name:       "reversync",
		ConfigPath: utils.NvlString(os.Getenv("REVERSYNC_CONFIG_PATH"), "."),
		ConfigName: "reversync",
		ConfigType: "env",
		EnvPrefix:  "REVERSYNC",
	}
	config := &Config{}
	if err := appbase.InitAppConfig(config, settings); err != nil {
		return nil, err
	}
	return config, nil
}
