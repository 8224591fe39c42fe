package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SupportsRowLocks: умеет ли диалект SELECT ... FOR UPDATE.
// В sqlite блокировок строк нет, там транзакции сериализуются одним соединением.
func SupportsRowLocks(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

func forUpdate(db *gorm.DB) *gorm.DB {
	if SupportsRowLocks(db) {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
