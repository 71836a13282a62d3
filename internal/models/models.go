package models

// Tables lists every PostgreSQL model for AutoMigrate
func Tables() []any {
	return []any{
		&User{},
		&Notification{},
		&Mention{},
		&Conversation{},
		&ChatMessage{},
		&Comment{},
		&Answer{},
		&Vote{},
	}
}
