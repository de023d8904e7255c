package config

// Application constants
const (
	AppName    = "mkbd-etl"
	AppVersion = "1.0.0"

	// Storage drivers
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	// DefaultMasterPath is where the bundled issuer reference workbook lives.
	DefaultMasterPath = "data/master-emiten.xlsx"

	// DefaultMaxUploadBytes caps multipart uploads (32 MiB).
	DefaultMaxUploadBytes = 32 << 20
)
