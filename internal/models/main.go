package models

// ModelRegistry lists every model AutoMigrate manages in dev and test.
var ModelRegistry = []any{
	&WaitlistEntry{},
	&EmailLog{},
	&Notification{},
}
