package models

type UserRole string

const (
	UserRoleAdmin   UserRole = "A"
	UserRoleManager UserRole = "M"
	UserRoleStaff   UserRole = "S"
)

// AdminTier roles bypass the automatic branch scope.
func (r UserRole) AdminTier() bool {
	return r == UserRoleAdmin
}

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleManager, UserRoleStaff:
		return true
	}
	return false
}

type MoneySourceType string

const (
	MoneySourceTypeCash   MoneySourceType = "cash"
	MoneySourceTypeBank   MoneySourceType = "bank"
	MoneySourceTypeWallet MoneySourceType = "wallet"
)

func (t MoneySourceType) Valid() bool {
	switch t {
	case MoneySourceTypeCash, MoneySourceTypeBank, MoneySourceTypeWallet:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeCredit || t == TransactionTypeDebit
}

// TransactionableType is the tagged-variant replacement for an open-ended
// polymorphic association: the only aggregate a ledger entry may attach to,
// besides a pledge, is a capital source.
type TransactionableType string

const (
	TransactionableTypeNone          TransactionableType = ""
	TransactionableTypeCapitalSource TransactionableType = "capital_source"
)

func (t TransactionableType) Valid() bool {
	return t == TransactionableTypeNone || t == TransactionableTypeCapitalSource
}

type PledgeStatus string

const (
	PledgeStatusActive    PledgeStatus = "active"
	PledgeStatusOverdue   PledgeStatus = "overdue"
	PledgeStatusDefault   PledgeStatus = "default"
	PledgeStatusReleased  PledgeStatus = "released"
	PledgeStatusCancelled PledgeStatus = "cancelled"
	PledgeStatusClosed    PledgeStatus = "closed"
)

// CanTransition encodes the pledge lifecycle:
// active -> overdue -> default; active/overdue/default -> closed;
// released/cancelled are alternate terminals reachable only from active.
// Transitions are monotonic: nothing leaves a terminal state.
func (s PledgeStatus) CanTransition(to PledgeStatus) bool {
	switch s {
	case PledgeStatusActive:
		switch to {
		case PledgeStatusOverdue, PledgeStatusDefault, PledgeStatusReleased, PledgeStatusCancelled, PledgeStatusClosed:
			return true
		}
	case PledgeStatusOverdue:
		switch to {
		case PledgeStatusDefault, PledgeStatusClosed:
			return true
		}
	case PledgeStatusDefault:
		return to == PledgeStatusClosed
	}
	return false
}

func (s PledgeStatus) Terminal() bool {
	switch s {
	case PledgeStatusReleased, PledgeStatusCancelled, PledgeStatusClosed:
		return true
	}
	return false
}

// LoanStatus mirrors the pledge lifecycle 1:1.
type LoanStatus = PledgeStatus

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

type ClosureStatus string

const (
	ClosureStatusPending  ClosureStatus = "pending"
	ClosureStatusComplete ClosureStatus = "complete"
)

type RepledgeStatus string

const (
	RepledgeStatusActive RepledgeStatus = "active"
	RepledgeStatusClosed RepledgeStatus = "closed"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
