package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"gorm.io/gorm"
)

// Task is a staff work item. Collection tasks carry the pledge/loan foreign
// keys so the ledger can resolve them without matching on title text; the
// "Pending Balance: {loan_no}" title is display only.
type Task struct {
	ID          int        `gorm:"primary_key" json:"id"`
	BranchId    int        `gorm:"index;not null" json:"branch_id"`
	Title       string     `gorm:"size:255;not null" json:"title" binding:"required"`
	Description string     `gorm:"type:text" json:"description"`
	Status      TaskStatus `gorm:"size:12;default:'pending';not null;index" json:"status"`
	AssigneeId  *int       `gorm:"index" json:"assignee_id"`
	PledgeId    *int       `gorm:"index" json:"pledge_id"`
	LoanId      *int       `gorm:"index" json:"loan_id"`
	DueDate     *time.Time `json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedBy   int        `json:"created_by"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTask struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	AssigneeId  *int   `json:"assignee_id"`
	PledgeId    *int   `json:"pledge_id"`
	DueDate     string `json:"due_date"`
}

func CreateTask(ctx context.Context, input *NewTask) (*Task, error) {
	if input.AssigneeId != nil {
		if err := utils.ValidateResourceId[User](ctx, *input.AssigneeId); err != nil {
			return nil, errors.New("assignee not found")
		}
	}

	branchId, _ := utils.GetBranchIdFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)
	task := Task{
		BranchId:    branchId,
		Title:       input.Title,
		Description: input.Description,
		Status:      TaskStatusPending,
		AssigneeId:  input.AssigneeId,
		CreatedBy:   userId,
	}

	if input.PledgeId != nil {
		pledge, err := utils.FetchModel[Pledge](ctx, *input.PledgeId, "Loan")
		if err != nil {
			return nil, err
		}
		task.PledgeId = &pledge.ID
		if pledge.Loan != nil {
			task.LoanId = &pledge.Loan.ID
		}
	}
	if input.DueDate != "" {
		due, err := utils.ParseDateString(input.DueDate, "")
		if err != nil {
			return nil, utils.NewValidationError("due_date", "must be yyyy-mm-dd")
		}
		task.DueDate = &due
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// CreatePendingBalanceTask opens the collection work item a closure with an
// outstanding balance needs.
func CreatePendingBalanceTask(tx *gorm.DB, pledge *Pledge, loan *Loan) (*Task, error) {
	task := Task{
		BranchId: pledge.BranchId,
		Title:    fmt.Sprintf("Pending Balance: %s", loan.LoanNo),
		Status:   TaskStatusPending,
		PledgeId: &pledge.ID,
		LoanId:   &loan.ID,
	}
	if err := tx.Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// CompletePendingBalanceTask marks the first pending collection task for the
// pledge as completed. Returns false when no pending task exists; repeated
// calls are no-ops, so the zero-crossing side effect fires exactly once.
func CompletePendingBalanceTask(tx *gorm.DB, pledgeId int) (bool, error) {
	var task Task
	err := tx.Where("pledge_id = ? AND status = ?", pledgeId, TaskStatusPending).
		Order("id").First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	now := time.Now()
	err = tx.Model(&Task{}).Where("id = ? AND status = ?", task.ID, TaskStatusPending).Updates(map[string]interface{}{
		"status":       TaskStatusCompleted,
		"completed_at": now,
	}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

func CompleteTask(ctx context.Context, id int) (*Task, error) {
	task, err := utils.FetchModel[Task](ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == TaskStatusCompleted {
		return task, nil
	}
	now := time.Now()
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&task).Updates(map[string]interface{}{
		"Status":      TaskStatusCompleted,
		"CompletedAt": now,
	}).Error
	if err != nil {
		return nil, err
	}
	return task, nil
}

func GetTasks(ctx context.Context, status *string, assigneeId *int) ([]*Task, error) {
	db := config.GetDB()
	var results []*Task

	dbCtx := db.WithContext(ctx)
	if status != nil && len(*status) > 0 {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if assigneeId != nil && *assigneeId > 0 {
		dbCtx = dbCtx.Where("assignee_id = ?", *assigneeId)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
