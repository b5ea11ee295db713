package config

// EnvPrefix is unused by envconfig tags (they are fully qualified) but keeps
// Process calls explicit about the namespace.
const EnvPrefix = "MURALIZE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "MURALIZE_DB_DSN"
	EnvDBHost = "MURALIZE_DB_HOST"
	EnvDBUser = "MURALIZE_DB_USER"
	EnvDBName = "MURALIZE_DB_NAME"
)

const (
	EnvAppEnv             = "MURALIZE_APP_ENV"
	EnvPort               = "MURALIZE_APP_PORT"
	EnvRedisURL           = "MURALIZE_REDIS_URL"
	EnvJWTSecret          = "MURALIZE_JWT_SECRET"
	EnvJWTIssuer          = "MURALIZE_JWT_ISSUER"
	EnvJWTExpMins         = "MURALIZE_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID       = "MURALIZE_GCP_PROJECT_ID"
	EnvPubSubBillingTopic = "MURALIZE_PUBSUB_BILLING_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
