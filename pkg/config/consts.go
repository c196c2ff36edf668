package config

const (
	EnvPrefix = "telestars"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "TELESTARS_APP_ENV"
	EnvPort   = "TELESTARS_APP_PORT"

	EnvDBDSN  = "TELESTARS_DB_DSN"
	EnvDBHost = "TELESTARS_DB_HOST"
	EnvDBUser = "TELESTARS_DB_USER"
	EnvDBName = "TELESTARS_DB_NAME"

	EnvRedisURL = "TELESTARS_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
