package model

// All lists every persisted entity, in migration order.
func All() []any {
	return []any{
		&Customer{},
		&Site{},
		&Employee{},
		&Shift{},
		&TimeEntry{},
		&BreakEntry{},
		&CorrectionRequest{},
		&Warning{},
		&CustomerHours{},
		&SpecialRule{},
		&PushSubscription{},
	}
}
