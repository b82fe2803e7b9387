package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvDBDSN     = "STOREFRONT_DB_DSN"
	EnvDBDriver  = "STOREFRONT_DB_DRIVER"
	EnvDBHost    = "STOREFRONT_DB_HOST"
	EnvDBUser    = "STOREFRONT_DB_USER"
	EnvDBName    = "STOREFRONT_DB_NAME"
	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"
	EnvUseSQLite = "STOREFRONT_USE_SQLITE"

	EnvFulfillmentMaxRetries      = "STOREFRONT_FULFILLMENT_MAX_RETRIES"
	EnvFulfillmentPackConcurrency = "STOREFRONT_FULFILLMENT_PACK_CONCURRENCY"
	EnvFulfillmentPackItemTimeout = "STOREFRONT_FULFILLMENT_PACK_ITEM_TIMEOUT"

	defaultSQLiteDSN = "file:storefront.db?_busy_timeout=5000&_txlock=immediate"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
