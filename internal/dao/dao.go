package dao

import (
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("dao: record not found")

// InitDAO wires the package singletons, call once at startup.
func InitDAO(db *gorm.DB) {
	InitWalletDAO(db)
	InitTradeDAO(db)
	InitEdgeDAO(db)
	InitHealthDAO(db)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
