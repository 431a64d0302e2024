package backend

import "flag"

// FlagNames lists the flags BindFlags registers, in the form flagx.FilterArgs
// expects. Boolean flags are best given as -name=true.
var FlagNames = []string{
	"-store", "-table", "-ensure-table", "-db-driver", "-d",
	"-redis", "-redis-password", "-redis-db", "-b", "-reap",
	"-sealer", "-k", "-passphrase", "-salt", "-age-identity",
	"-g", "-u", "-p", "-e",
}

type storeValue struct{ v *StoreKind }

func (s storeValue) String() string {
	if s.v == nil {
		return ""
	}
	return string(*s.v)
}

func (s storeValue) Set(v string) error { *s.v = StoreKind(v); return nil }

type sealerValue struct{ v *SealerKind }

func (s sealerValue) String() string {
	if s.v == nil {
		return ""
	}
	return string(*s.v)
}

func (s sealerValue) Set(v string) error { *s.v = SealerKind(v); return nil }

// BindFlags registers the backend flags on fs, defaulting to the current
// values of c.
func BindFlags(fs *flag.FlagSet, c *Config) {
	fs.Var(storeValue{&c.Store}, "store", "session store: memory, dynamodb, sql, redis, s3")
	fs.StringVar(&c.DynamoTable, "table", c.DynamoTable, "DynamoDB table name")
	fs.BoolVar(&c.EnsureTable, "ensure-table", c.EnsureTable, "create the DynamoDB table if missing")
	fs.StringVar(&c.DatabaseDriver, "db-driver", c.DatabaseDriver, "SQL driver: pgx or sqlite")
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVar(&c.S3Bucket, "b", c.S3Bucket, "S3 bucket")
	fs.DurationVar(&c.ReapInterval, "reap", c.ReapInterval, "expired session reap interval")

	fs.Var(sealerValue{&c.Sealer}, "sealer", "token sealer: kms, local, age")
	fs.StringVar(&c.KeyID, "k", c.KeyID, "sealing key id")
	fs.StringVar(&c.LocalPassphrase, "passphrase", c.LocalPassphrase, "local sealer passphrase")
	fs.StringVar(&c.LocalSalt, "salt", c.LocalSalt, "local sealer salt")
	fs.StringVar(&c.AgeIdentity, "age-identity", c.AgeIdentity, "age X25519 identity")

	fs.StringVar(&c.AWS.Region, "g", c.AWS.Region, "AWS region")
	fs.StringVar(&c.AWS.AccessKeyID, "u", c.AWS.AccessKeyID, "AWS access key id")
	fs.StringVar(&c.AWS.SecretAccessKey, "p", c.AWS.SecretAccessKey, "AWS secret access key")
	fs.StringVar(&c.AWS.BaseEndpoint, "e", c.AWS.BaseEndpoint, "AWS endpoint override")
}
