package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model; AutoMigrate uses it for SQLite runs and tests.
func All() []any {
	return []any{
		&Material{},
		&Product{},
		&ProductVariant{},
		&BOMLine{},
		&PackagingRule{},
		&PromoCode{},
		&Order{},
		&OrderItem{},
		&StockMovement{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
