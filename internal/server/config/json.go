package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/indiec/internal/flagx"
	"github.com/dmitrijs2005/indiec/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "30s" strings and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from the zero value, so a partial file
// only overrides the keys it contains.
type JsonConfig struct {
	ListenAddr      *string         `json:"listen_addr"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`

	DatabaseDSN       *string         `json:"database_dsn"`
	DBMaxOpenConns    *int            `json:"db_max_open_conns"`
	DBMaxIdleConns    *int            `json:"db_max_idle_conns"`
	DBConnMaxIdleTime *timex.Duration `json:"db_conn_max_idle_time"`
	DBConnMaxLifetime *timex.Duration `json:"db_conn_max_lifetime"`

	DocumentStoreURI   *string `json:"document_store_uri"`
	DocumentDatabase   *string `json:"document_database"`
	EncryptionSecret   *string `json:"encryption_secret"`
	PasswordHashCost   *int    `json:"password_hash_cost"`
	HybridCompensation *bool   `json:"hybrid_compensation"`

	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`

	LogLevel  *string `json:"log_level"`
	LogFormat *string `json:"log_format"`

	UploadBackend  *string `json:"upload_backend"`
	UploadDir      *string `json:"upload_dir"`
	UploadMaxBytes *int64  `json:"upload_max_bytes"`

	S3RootUser     *string `json:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`

	RateLimitRPS   *float64 `json:"rate_limit_rps"`
	RateLimitBurst *int     `json:"rate_limit_burst"`
	CORSOrigins    []string `json:"cors_origins"`

	AuditRetentionDays *int    `json:"audit_retention_days"`
	RetentionSchedule  *string `json:"retention_schedule"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Without the flag nothing is loaded. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	set(&config.ListenAddr, c.ListenAddr)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)

	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.DBMaxOpenConns, c.DBMaxOpenConns)
	set(&config.DBMaxIdleConns, c.DBMaxIdleConns)
	setDuration(&config.DBConnMaxIdleTime, c.DBConnMaxIdleTime)
	setDuration(&config.DBConnMaxLifetime, c.DBConnMaxLifetime)

	set(&config.DocumentStoreURI, c.DocumentStoreURI)
	set(&config.DocumentDatabase, c.DocumentDatabase)
	set(&config.EncryptionSecret, c.EncryptionSecret)
	set(&config.PasswordHashCost, c.PasswordHashCost)
	set(&config.HybridCompensation, c.HybridCompensation)

	set(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)

	set(&config.LogLevel, c.LogLevel)
	set(&config.LogFormat, c.LogFormat)

	set(&config.UploadBackend, c.UploadBackend)
	set(&config.UploadDir, c.UploadDir)
	set(&config.UploadMaxBytes, c.UploadMaxBytes)

	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	set(&config.RateLimitRPS, c.RateLimitRPS)
	set(&config.RateLimitBurst, c.RateLimitBurst)
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}

	set(&config.AuditRetentionDays, c.AuditRetentionDays)
	set(&config.RetentionSchedule, c.RetentionSchedule)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
