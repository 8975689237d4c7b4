package models

import "gorm.io/gorm"

// Migrate creates/updates every table. Called from main() after the DB is up
// and from test harnesses against their in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Branch{},
		&Customer{},
		&MoneySource{},
		&CapitalSource{},
		&Transaction{},
		&Pledge{},
		&Loan{},
		&Jewel{},
		&PledgeClosure{},
		&RepledgeSource{},
		&Repledge{},
		&RepledgeClosure{},
		&Task{},
		&LoanTracking{},
		&IdempotencyKey{},
	)
}
