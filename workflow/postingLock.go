package workflow

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate applies SELECT ... FOR UPDATE on MySQL. SQLite (tests)
// serializes writers at the database level, so the clause is unnecessary
// there and its syntax unsupported.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// AcquireSweepLock serializes overdue sweeps across instances using MySQL
// advisory locks. GET_LOCK is connection-scoped, so this must be called on
// the same *gorm.DB session that runs the sweep.
func AcquireSweepLock(tx *gorm.DB) error {
	if tx.Dialector.Name() != "mysql" {
		return nil
	}
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", sweepLockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire overdue sweep lock")
	}
	return nil
}

func ReleaseSweepLock(tx *gorm.DB) {
	if tx.Dialector.Name() != "mysql" {
		return
	}
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", sweepLockName).Scan(&_ok).Error
}

const sweepLockName = "goldloan:overdue_sweep"
