package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "ISKOLARLINK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "ISKOLARLINK_APP_ENV"
	EnvPort      = "ISKOLARLINK_APP_PORT"
	EnvDBDSN     = "ISKOLARLINK_DB_DSN"
	EnvDBHost    = "ISKOLARLINK_DB_HOST"
	EnvDBUser    = "ISKOLARLINK_DB_USER"
	EnvDBName    = "ISKOLARLINK_DB_NAME"
	EnvRedisURL  = "ISKOLARLINK_REDIS_URL"
	EnvJWTSecret = "ISKOLARLINK_JWT_SECRET"
	EnvJWTIssuer = "ISKOLARLINK_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
