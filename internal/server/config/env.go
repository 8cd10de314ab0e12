package config

import (
	"fmt"
	"strconv"
	"time"
)

const envPrefix = "CARECONNECT_"

// parseEnv overlays CARECONNECT_* variables. lookup is os.LookupEnv in
// production; tests pass a map-backed function.
func parseEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var err error
	num := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok && v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("env %s%s: %w", envPrefix, name, perr)
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok && v != "" && err == nil {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("env %s%s: %w", envPrefix, name, perr)
				return
			}
			*dst = d
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_HEALTH_ADDR", &c.GRPCHealthAddr)
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("JWT_SECRET", &c.JWTSecret)
	str("LOG_LEVEL", &c.LogLevel)
	str("MASTER_KEYS", &c.MasterKeys)
	num("MASTER_KEY_VERSION", &c.MasterKeyVersion)

	str("SMTP_HOST", &c.SMTPHost)
	num("SMTP_PORT", &c.SMTPPort)
	str("SMTP_USER", &c.SMTPUser)
	str("SMTP_PASSWORD", &c.SMTPPassword)
	str("SMTP_FROM", &c.SMTPFrom)

	str("AI_PROVIDER", &c.AIProvider)
	str("AI_API_KEY", &c.AIAPIKey)
	str("AI_MODEL", &c.AIModel)

	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)

	dur("TOKEN_VALIDITY", &c.TokenValidity)
	dur("NOTIFIER_INTERVAL", &c.NotifierInterval)
	dur("NOTIFIER_LOOKAHEAD", &c.NotifierLookahead)
	dur("MISSED_GRACE", &c.MissedGrace)

	if v, ok := lookup(envPrefix + "NOTIFIER_RATE"); ok && v != "" && err == nil {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return fmt.Errorf("env %sNOTIFIER_RATE: %w", envPrefix, perr)
		}
		c.NotifierRatePerSec = f
	}
	if v, ok := lookup(envPrefix + "VAULT_MAX_UPLOAD_BYTES"); ok && v != "" && err == nil {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return fmt.Errorf("env %sVAULT_MAX_UPLOAD_BYTES: %w", envPrefix, perr)
		}
		c.VaultMaxUploadBytes = n
	}

	return err
}
