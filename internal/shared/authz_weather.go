package shared

// Weather data and batch dispatch permissions.
const (
	PermWeatherRead     = "weather.read"
	PermWeatherGenerate = "weather.generate"

	PermBatchRead  = "batch_jobs.read"
	PermBatchWrite = "batch_jobs.write"

	PermAuditRead   = "audit_logs.read"
	PermAuditExport = "audit_logs.export"
)

// WeatherScopes lists weather, batch and audit permissions.
func WeatherScopes() []string {
	return []string{
		PermWeatherRead,
		PermWeatherGenerate,
		PermBatchRead,
		PermBatchWrite,
		PermAuditRead,
		PermAuditExport,
	}
}
