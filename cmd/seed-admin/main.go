// seed-admin creates or updates the back-office admin user.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// The password comes from SEED_ADMIN_PASSWORD; the tool refuses to run
// without it.
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "goldloanAdmin"
	adminName     = "GoldLoan Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(1)
	}

	// Admin is global; the branch guard must not scope these writes.
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipBranchScopeInContext(ctx, true)

	var branch models.Branch
	if err := db.WithContext(ctx).Model(&models.Branch{}).Select("id").Order("id").First(&branch).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			branch = models.Branch{Name: "Head Office", IsActive: utils.NewTrue()}
			if err := db.WithContext(ctx).Create(&branch).Error; err != nil {
				fmt.Fprintf(os.Stderr, "failed to create head office branch: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Created branch %q (id=%d)\n", branch.Name, branch.ID)
		} else {
			fmt.Fprintf(os.Stderr, "failed to lookup branch: %v\n", err)
			os.Exit(1)
		}
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: adminUsername,
			Name:     adminName,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleAdmin,
			BranchId: branch.ID,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", adminUsername)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":  hashedStr,
		"name":      adminName,
		"is_active": utils.NewTrue(),
		"role":      models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: username=%q\n", adminUsername)
}
