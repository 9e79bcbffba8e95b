package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/indiec/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP listen address (e.g., ":3000")
//	-d string   PostgreSQL DSN
//	-m string   document store URI (mongodb://... or memory://)
//	-k string   field encryption master secret
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-l string   log level
//	-u string   upload backend (local|s3)
//	-b string   S3 bucket name
//	-e string   S3 base endpoint
//
// os.Args is filtered with flagx.FilterArgs first, so flags owned by other
// layers (-c, -env-file) do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-m", "-k", "-s", "-t", "-l", "-u", "-b", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DocumentStoreURI, "m", config.DocumentStoreURI, "document store URI")
	fs.StringVar(&config.EncryptionSecret, "k", config.EncryptionSecret, "field encryption master secret")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.UploadBackend, "u", config.UploadBackend, "upload backend")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
