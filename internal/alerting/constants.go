// Package alerting evaluates threshold rules over operational metrics and
// notifies each rule's recipients when one fires.
package alerting

// Metric names understood by the built-in rules. Rules may name any metric;
// a rule whose metric is absent from a snapshot is skipped.
const (
	// Pushed by the sync job after each run.
	MetricSyncConsecutiveFailures = "sync_consecutive_failures"
	// Pushed by the property reporting collaborator.
	MetricVacancyCount = "vacancy_count"

	// Computed locally by LocalSource.
	MetricUnmappedAccounts = "unmapped_utility_accounts"
	MetricFailedJobs       = "failed_jobs_24h"
)

// Comparison operators.
const (
	OperatorGT  = "gt"
	OperatorGTE = "gte"
	OperatorLT  = "lt"
	OperatorLTE = "lte"
	OperatorEQ  = "eq"
	OperatorNEQ = "neq"
)

// Operators lists every accepted operator.
var Operators = []string{OperatorGT, OperatorGTE, OperatorLT, OperatorLTE, OperatorEQ, OperatorNEQ}

// Settings consulted by the engine.
const (
	settingsCategory      = "alerts"
	settingEnabled        = "enabled"
	settingRecipients     = "notification_emails"
	settingThreshold      = "failure_threshold"
	featuresCategory      = "features"
	featureAlertRules     = "alert_rules"
	defaultFailureTrigger = 3
)

// DefaultCooldownSec applies to rules created without an explicit cooldown.
const DefaultCooldownSec = 3600
