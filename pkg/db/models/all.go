package models

// All lists every model owned by the service schema, in dependency order.
func All() []any {
	return []any{
		&Course{},
		&QuizAttempt{},
		&Enrollment{},
		&EnrollmentLesson{},
		&Payment{},
		&Certificate{},
		&OutboxEvent{},
	}
}
