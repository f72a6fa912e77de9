package config

const EnvPrefix = "LICENSEDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "licensedesk.db"

	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

const (
	EnvAppEnv     = "LICENSEDESK_APP_ENV"
	EnvPort       = "LICENSEDESK_APP_PORT"
	EnvDBDSN      = "LICENSEDESK_DB_DSN"
	EnvDBDriver   = "LICENSEDESK_DB_DRIVER"
	EnvDBHost     = "LICENSEDESK_DB_HOST"
	EnvDBUser     = "LICENSEDESK_DB_USER"
	EnvDBName     = "LICENSEDESK_DB_NAME"
	EnvRedisURL   = "LICENSEDESK_REDIS_URL"
	EnvJWTSecret  = "LICENSEDESK_JWT_SECRET"
	EnvJWTExpMins = "LICENSEDESK_JWT_EXPIRATION_MINUTES"
	EnvAllowedIPs = "LICENSEDESK_ALLOWED_IPS"
	EnvStorage    = "LICENSEDESK_STORAGE_BACKEND"
	EnvUploadDir  = "LICENSEDESK_UPLOAD_DIR"
	EnvS3Endpoint = "LICENSEDESK_S3_ENDPOINT"
	EnvS3Bucket   = "LICENSEDESK_S3_BUCKET"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
