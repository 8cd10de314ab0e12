package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/careconnect/internal/flagx"
	"github.com/dmitrijs2005/careconnect/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Pointer fields mark
// optional values: only keys present in the file override earlier layers.
type JsonConfig struct {
	HTTPAddr         *string `json:"http_addr"`
	GRPCHealthAddr   *string `json:"grpc_health_addr"`
	DatabaseDSN      *string `json:"database_dsn"`
	JWTSecret        *string `json:"jwt_secret"`
	LogLevel         *string `json:"log_level"`
	MasterKeys       *string `json:"master_keys"`
	MasterKeyVersion *int    `json:"master_key_version"`

	SMTPHost     *string `json:"smtp_host"`
	SMTPPort     *int    `json:"smtp_port"`
	SMTPUser     *string `json:"smtp_user"`
	SMTPPassword *string `json:"smtp_password"`
	SMTPFrom     *string `json:"smtp_from"`

	AIProvider *string `json:"ai_provider"`
	AIAPIKey   *string `json:"ai_api_key"`
	AIModel    *string `json:"ai_model"`

	S3Bucket    *string `json:"s3_bucket"`
	S3Region    *string `json:"s3_region"`
	S3Endpoint  *string `json:"s3_endpoint"`
	S3AccessKey *string `json:"s3_access_key"`
	S3SecretKey *string `json:"s3_secret_key"`

	TokenValidity       *timex.Duration `json:"token_validity"`
	NotifierInterval    *timex.Duration `json:"notifier_interval"`
	NotifierLookahead   *timex.Duration `json:"notifier_lookahead"`
	NotifierRatePerSec  *float64        `json:"notifier_rate"`
	MissedGrace         *timex.Duration `json:"missed_grace"`
	VaultMaxUploadBytes *int64          `json:"vault_max_upload_bytes"`
}

// parseJson overlays the JSON file named by -c/-config in args. No flag
// means no file.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.JWTSecret, c.JWTSecret)
	set(&config.LogLevel, c.LogLevel)
	set(&config.MasterKeys, c.MasterKeys)
	set(&config.MasterKeyVersion, c.MasterKeyVersion)
	set(&config.SMTPHost, c.SMTPHost)
	set(&config.SMTPPort, c.SMTPPort)
	set(&config.SMTPUser, c.SMTPUser)
	set(&config.SMTPPassword, c.SMTPPassword)
	set(&config.SMTPFrom, c.SMTPFrom)
	set(&config.AIProvider, c.AIProvider)
	set(&config.AIAPIKey, c.AIAPIKey)
	set(&config.AIModel, c.AIModel)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3Endpoint, c.S3Endpoint)
	set(&config.S3AccessKey, c.S3AccessKey)
	set(&config.S3SecretKey, c.S3SecretKey)
	set(&config.NotifierRatePerSec, c.NotifierRatePerSec)
	set(&config.VaultMaxUploadBytes, c.VaultMaxUploadBytes)

	if c.TokenValidity != nil {
		config.TokenValidity = c.TokenValidity.Duration
	}
	if c.NotifierInterval != nil {
		config.NotifierInterval = c.NotifierInterval.Duration
	}
	if c.NotifierLookahead != nil {
		config.NotifierLookahead = c.NotifierLookahead.Duration
	}
	if c.MissedGrace != nil {
		config.MissedGrace = c.MissedGrace.Duration
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
