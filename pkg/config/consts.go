package config

const EnvPrefix = "UTILITRACK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "UTILITRACK_APP_ENV"
	EnvPort     = "UTILITRACK_APP_PORT"
	EnvDBDSN    = "UTILITRACK_DB_DSN"
	EnvDBHost   = "UTILITRACK_DB_HOST"
	EnvDBUser   = "UTILITRACK_DB_USER"
	EnvDBName   = "UTILITRACK_DB_NAME"
	EnvRedisURL = "UTILITRACK_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
