// overdue-sweep flips every active pledge whose loan is past due to overdue.
// Intended for cron (daily, after midnight server time). Safe to rerun: a
// second sweep on the same day finds nothing to flip.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/overdue-sweep
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"bitbucket.org/mmdatafocus/goldloan_backend/workflow"
)

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	// The sweep spans all branches.
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "System")
	ctx = utils.SetSkipBranchScopeInContext(ctx, true)

	logger := config.GetLogger()
	result, err := workflow.SweepOverduePledges(ctx, logger, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("overdue sweep done: updated=%d failed=%d\n", result.Updated, result.Failed)
}
