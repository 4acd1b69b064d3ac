package alerting

import (
	"github.com/ledgerline/propops/internal/datastore/entities"
)

// DefaultRules returns the built-in example rules. failureThreshold is the
// alerts.failure_threshold setting at seed time; a value <= 0 falls back to the
// shipped default. The engine re-reads the setting on every evaluation, so the
// stored threshold of that rule is only a fallback. The rules carry no recipients of their own so they follow
// alerts.notification_emails. They are seeded on startup and can be restored
// via reset-defaults.
func DefaultRules(failureThreshold float64) []entities.AlertRule {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureTrigger
	}

	return []entities.AlertRule{
		{
			Name:        "Sync failing repeatedly",
			Description: "Notifies when consecutive AppFolio sync runs fail",
			Metric:      MetricSyncConsecutiveFailures,
			Operator:    OperatorGTE,
			Threshold:   failureThreshold,
			Enabled:     true,
			BuiltIn:     true,
			CooldownSec: DefaultCooldownSec,
		},
		{
			Name:        "High vacancy count",
			Description: "Notifies when more than 10 units are vacant",
			Metric:      MetricVacancyCount,
			Operator:    OperatorGT,
			Threshold:   10,
			Enabled:     true,
			BuiltIn:     true,
			CooldownSec: 24 * 3600,
		},
		{
			Name:        "Unmapped utility accounts",
			Description: "Notifies when recent expenses use GL accounts with no utility mapping",
			Metric:      MetricUnmappedAccounts,
			Operator:    OperatorGT,
			Threshold:   0,
			Enabled:     true,
			BuiltIn:     true,
			CooldownSec: 24 * 3600,
		},
		{
			Name:        "Background job failures",
			Description: "Notifies when a background job failed in the last 24 hours",
			Metric:      MetricFailedJobs,
			Operator:    OperatorGT,
			Threshold:   0,
			Enabled:     true,
			BuiltIn:     true,
			CooldownSec: DefaultCooldownSec,
		},
	}
}
