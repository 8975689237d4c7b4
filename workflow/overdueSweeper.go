package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const sweepBatchSize = 100

type SweepResult struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// SweepOverduePledges flips every active pledge whose loan is past due to
// overdue. Date-only comparison in server-local time. Each row commits in
// its own small transaction so one bad row cannot abort the batch; running
// it twice on the same day finds nothing left to flip the second time.
func SweepOverduePledges(ctx context.Context, logger *logrus.Logger, today time.Time) (*SweepResult, error) {
	db := config.GetDB()

	session := db.WithContext(ctx).Session(&gorm.Session{})
	if err := AcquireSweepLock(session); err != nil {
		return nil, err
	}
	defer ReleaseSweepLock(session)

	cutoff := utils.DateOnly(today)
	result := &SweepResult{}

	// Snapshot matching ids up front: flipping statuses while paging the
	// same predicate would shift the window under us.
	var pledgeIds []int
	err := db.WithContext(ctx).Model(&models.Pledge{}).
		Joins("JOIN loans ON loans.pledge_id = pledges.id").
		Where("pledges.status = ?", models.PledgeStatusActive).
		Where("loans.due_date < ?", cutoff).
		Order("pledges.id").
		Pluck("pledges.id", &pledgeIds).Error
	if err != nil {
		return result, err
	}

	for start := 0; start < len(pledgeIds); start += sweepBatchSize {
		end := start + sweepBatchSize
		if end > len(pledgeIds) {
			end = len(pledgeIds)
		}
		for _, id := range pledgeIds[start:end] {
			flipped, err := flipOverdue(db.WithContext(ctx), id)
			if err != nil {
				result.Failed++
				config.LogError(logger, "overdueSweeper.go", "SweepOverduePledges", "flipOverdue", id, err)
				continue
			}
			if flipped {
				result.Updated++
			}
		}
	}

	logger.WithFields(logrus.Fields{
		"module":  "overdueSweeper.go",
		"updated": result.Updated,
		"failed":  result.Failed,
	}).Info("overdue sweep finished")
	return result, nil
}

// flipOverdue transitions one pledge and its loan in a small transaction.
// The status guard makes a concurrent flip (or a pledge closed meanwhile) a
// no-op rather than an error.
func flipOverdue(db *gorm.DB, pledgeId int) (bool, error) {
	flipped := false
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Pledge{}).
			Where("id = ? AND status = ?", pledgeId, models.PledgeStatusActive).
			Update("status", models.PledgeStatusOverdue)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		flipped = true
		return tx.Model(&models.Loan{}).
			Where("pledge_id = ? AND status = ?", pledgeId, models.PledgeStatusActive).
			Update("status", models.PledgeStatusOverdue).Error
	})
	return flipped, err
}
