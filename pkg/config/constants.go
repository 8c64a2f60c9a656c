package config

const (
	EnvPrefix = "MAPMARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MAPMARKET_DB_DSN"
	EnvDBHost = "MAPMARKET_DB_HOST"
	EnvDBUser = "MAPMARKET_DB_USER"
	EnvDBName = "MAPMARKET_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
