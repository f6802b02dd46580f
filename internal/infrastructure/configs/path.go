package configs

import (
	"flag"
	"io"
	"os"

	"github.com/seeker014/SilentRoom/internal/infrastructure/env"
)

var candidatePaths = []string{
	"./config.yaml",
	"./config.yml",
	"./tmp/config.yaml",
	"../../config.yaml", // keep for local dev
	"/etc/silentroom/config.yaml",
	"/app/config.yaml", // common in Docker
}

// DetermineConfigPath resolves the config file from --config, then
// SILENTROOM_CONFIG, then the well-known candidates. An empty result means
// the service runs on defaults and environment overrides only.
func DetermineConfigPath(args []string) string {
	var configPath string

	fs := flag.NewFlagSet("silentroom", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configPath, "config", "", "path to config file")
	_ = fs.Parse(args)

	if configPath == "" {
		configPath = env.GetString("SILENTROOM_CONFIG", "")
	}

	if configPath == "" {
		for _, p := range candidatePaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
