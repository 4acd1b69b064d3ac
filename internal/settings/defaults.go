package settings

// Default is one seeded setting.
type Default struct {
	Category    string
	Key         string
	Value       Value
	Description string
}

// DefaultSettings returns the values seeded on every deploy. Seeding only
// creates missing rows, so admin edits survive.
func DefaultSettings() []Default {
	return []Default{
		{"sync", "enabled", Bool(true), "Run the scheduled AppFolio sync"},
		{"sync", "full_sync_time", String("02:00"), "Local time of the nightly full sync (HH:MM)"},
		{"sync", "incremental_interval_minutes", Int(15), "Minutes between incremental syncs"},
		{"sync", "batch_size", Int(100), "Records requested per page"},
		{"sync", "resources", List("properties", "units", "tenants", "leases", "expenses"), "Resources included in each sync"},

		{"business_hours", "enabled", Bool(true), "Restrict incremental syncs to business hours"},
		{"business_hours", "timezone", String("America/Los_Angeles"), "Time zone for business hours and sync times"},
		{"business_hours", "start_time", String("08:00"), "Business day start (HH:MM)"},
		{"business_hours", "end_time", String("18:00"), "Business day end (HH:MM)"},
		{"business_hours", "days", List("mon", "tue", "wed", "thu", "fri"), "Business days"},

		{"rate_limit", "requests_per_minute", Int(60), "AppFolio API requests allowed per minute"},
		{"rate_limit", "max_retries", Int(5), "Retries for a failed API request"},
		{"rate_limit", "backoff_seconds", Int(2), "Initial retry backoff in seconds"},

		{"alerts", "enabled", Bool(true), "Send operational alerts"},
		{"alerts", "failure_threshold", Int(3), "Consecutive sync failures before alerting"},
		{"alerts", "notification_emails", List(), "Addresses notified when the failure threshold is reached"},

		{"features", "utility_formatting", Bool(true), "Color utility costs with formatting rules"},
		{"features", "unmapped_suggestions", Bool(true), "Suggest unmapped GL accounts"},
		{"features", "alert_rules", Bool(true), "Evaluate alert rules"},

		{"appfolio", "api_base_url", String("https://api.appfolio.com"), "AppFolio API base URL"},
		{"appfolio", "database_name", String(""), "AppFolio database (subdomain) name"},
		{"appfolio", "client_id", String(""), "AppFolio API client id"},
		{"appfolio", "client_secret", Null(), "AppFolio API client secret"},
	}
}
