package config

// EnvPrefix is applied by envconfig on top of the explicit variable names.
const EnvPrefix = "LICENSEBOT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "LICENSEBOT_DB_DSN"
	EnvDBHost = "LICENSEBOT_DB_HOST"
	EnvDBUser = "LICENSEBOT_DB_USER"
	EnvDBName = "LICENSEBOT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
