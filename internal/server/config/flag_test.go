package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-m", "memory://", "-k", "master",
			"-s", "secret", "-t", "15", "-l", "debug", "-u", "s3", "-b", "bucket", "-e", "http://endpoint",
			"-c", "ignored.json",
		}, expectPanic: false,
			expected: &Config{
				ListenAddr:                  "127.0.0.1:9090",
				DatabaseDSN:                 "db",
				DocumentStoreURI:            "memory://",
				EncryptionSecret:            "master",
				SecretKey:                   "secret",
				AccessTokenValidityDuration: 15 * time.Minute,
				LogLevel:                    "debug",
				UploadBackend:               "s3",
				S3Bucket:                    "bucket",
				S3BaseEndpoint:              "http://endpoint",
			}},
		{name: "bad int panics", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
