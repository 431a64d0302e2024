package backend

import "github.com/dmitrijs2005/kusogate/internal/timex"

// JsonConfig is the JSON shape of Config. It is embedded in the JSON DTOs of
// both applications so their config files share the same backend keys.
type JsonConfig struct {
	Store           string         `json:"store"`
	DynamoTable     string         `json:"dynamo_table"`
	EnsureTable     bool           `json:"ensure_table"`
	DatabaseDriver  string         `json:"database_driver"`
	DatabaseDSN     string         `json:"database_dsn"`
	RedisAddr       string         `json:"redis_addr"`
	RedisPassword   string         `json:"redis_password"`
	RedisDB         int            `json:"redis_db"`
	S3Bucket        string         `json:"s3_bucket"`
	ReapInterval    timex.Duration `json:"reap_interval"`
	Sealer          string         `json:"sealer"`
	KeyID           string         `json:"key_id"`
	LocalPassphrase string         `json:"local_passphrase"`
	LocalSalt       string         `json:"local_salt"`
	AgeIdentity     string         `json:"age_identity"`
	AWSRegion       string         `json:"aws_region"`
	AWSAccessKeyID  string         `json:"aws_access_key_id"`
	AWSSecretKey    string         `json:"aws_secret_access_key"`
	AWSEndpoint     string         `json:"aws_endpoint"`
}

// ToJson seeds a DTO with c so keys missing from the file keep their values.
func ToJson(c Config) JsonConfig {
	return JsonConfig{
		Store:           string(c.Store),
		DynamoTable:     c.DynamoTable,
		EnsureTable:     c.EnsureTable,
		DatabaseDriver:  c.DatabaseDriver,
		DatabaseDSN:     c.DatabaseDSN,
		RedisAddr:       c.RedisAddr,
		RedisPassword:   c.RedisPassword,
		RedisDB:         c.RedisDB,
		S3Bucket:        c.S3Bucket,
		ReapInterval:    timex.Duration{Duration: c.ReapInterval},
		Sealer:          string(c.Sealer),
		KeyID:           c.KeyID,
		LocalPassphrase: c.LocalPassphrase,
		LocalSalt:       c.LocalSalt,
		AgeIdentity:     c.AgeIdentity,
		AWSRegion:       c.AWS.Region,
		AWSAccessKeyID:  c.AWS.AccessKeyID,
		AWSSecretKey:    c.AWS.SecretAccessKey,
		AWSEndpoint:     c.AWS.BaseEndpoint,
	}
}

func (j JsonConfig) Apply(c *Config) {
	c.Store = StoreKind(j.Store)
	c.DynamoTable = j.DynamoTable
	c.EnsureTable = j.EnsureTable
	c.DatabaseDriver = j.DatabaseDriver
	c.DatabaseDSN = j.DatabaseDSN
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.S3Bucket = j.S3Bucket
	c.ReapInterval = j.ReapInterval.Duration
	c.Sealer = SealerKind(j.Sealer)
	c.KeyID = j.KeyID
	c.LocalPassphrase = j.LocalPassphrase
	c.LocalSalt = j.LocalSalt
	c.AgeIdentity = j.AgeIdentity
	c.AWS.Region = j.AWSRegion
	c.AWS.AccessKeyID = j.AWSAccessKeyID
	c.AWS.SecretAccessKey = j.AWSSecretKey
	c.AWS.BaseEndpoint = j.AWSEndpoint
}
