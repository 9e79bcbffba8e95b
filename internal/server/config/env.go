package config

import (
	"errors"

	"github.com/dmitrijs2005/indiec/internal/flagx"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// parseEnv overlays INDIEC_* environment variables onto config. A dotenv
// file named by -env-file is loaded first; variables already present in the
// process environment take precedence over the file. Unset variables leave
// the current values untouched. List values are separated by ';'.
func parseEnv(config *Config) {
	if envFile := flagx.EnvFileFlags(); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	}

	if err := envdecode.Decode(config); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		panic(err)
	}
}
