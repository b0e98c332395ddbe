package common

// File permission constants shared by everything that writes to disk
const (
	// FilePermissionSecure is used for files that may hold credentials (config, .env)
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for published warehouse tables
	FilePermissionNormal = 0644

	// DirPermissionNormal is used for output and staging directories
	DirPermissionNormal = 0755
)
