package config

const (
	EnvPrefix = "VOUCHERNET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "VOUCHERNET_APP_ENV"
	EnvPort        = "VOUCHERNET_APP_PORT"
	EnvDBDSN       = "VOUCHERNET_DB_DSN"
	EnvDBHost      = "VOUCHERNET_DB_HOST"
	EnvDBUser      = "VOUCHERNET_DB_USER"
	EnvDBName      = "VOUCHERNET_DB_NAME"
	EnvRedisURL    = "VOUCHERNET_REDIS_URL"
	EnvJWTSecret   = "VOUCHERNET_JWT_SECRET"
	EnvJWTIssuer   = "VOUCHERNET_JWT_ISSUER"
	EnvUseSQLite   = "VOUCHERNET_USE_SQLITE"
	EnvLedgerTopic = "VOUCHERNET_PUBSUB_LEDGER_TOPIC"

	EnvLowStockThreshold = "VOUCHERNET_LOW_STOCK_THRESHOLD"
	EnvLoyaltyThreshold  = "VOUCHERNET_LOYALTY_THRESHOLD"
	EnvImportMaxRows     = "VOUCHERNET_IMPORT_MAX_ROWS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
