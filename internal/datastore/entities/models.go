package entities

// All returns every model in migration order.
func All() []any {
	return []any{
		&Setting{},
		&UtilityType{},
		&UtilityAccount{},
		&FormattingRule{},
		&Expense{},
		&AlertRule{},
		&AlertHistory{},
		&Job{},
	}
}
