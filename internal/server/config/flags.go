package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/careconnect/internal/flagx"
)

// parseFlags overlays command-line flags.
//
//	-a string     HTTP listen address
//	-g string     gRPC health listen address
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret
//	-k string     master keys, "version:base64[,...]"
//	-kv int       current master key version
//	-ai string    AI provider: none, gemini, openai
//	-i duration   notifier interval
//	-l string     log level
//
// Anything else stays with env or the JSON file; os.Args is filtered first
// so -c/-config and unknown flags do not trip the parser.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-k", "-kv", "-ai", "-i", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP listen address")
	fs.StringVar(&config.GRPCHealthAddr, "g", config.GRPCHealthAddr, "gRPC health listen address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret")
	fs.StringVar(&config.MasterKeys, "k", config.MasterKeys, "master keys")
	fs.IntVar(&config.MasterKeyVersion, "kv", config.MasterKeyVersion, "current master key version")
	fs.StringVar(&config.AIProvider, "ai", config.AIProvider, "AI provider")
	fs.DurationVar(&config.NotifierInterval, "i", config.NotifierInterval, "notifier interval")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
