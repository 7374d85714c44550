package config

// EnvPrefix is passed to envconfig; individual fields carry fully qualified
// names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error
// messages).
const (
	EnvAppEnv   = "STUDIOHUB_APP_ENV"
	EnvPort     = "STUDIOHUB_APP_PORT"
	EnvDBDSN    = "STUDIOHUB_DB_DSN"
	EnvDBHost   = "STUDIOHUB_DB_HOST"
	EnvDBUser   = "STUDIOHUB_DB_USER"
	EnvDBName   = "STUDIOHUB_DB_NAME"
	EnvRedisURL = "STUDIOHUB_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
