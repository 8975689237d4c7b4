// Package auth is the single authorization gate. Every role check in the
// codebase goes through Can; nothing else compares role strings.
package auth

import (
	"context"

	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
)

type Action string

const (
	ActionRead       Action = "read"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionApprove    Action = "approve"
	ActionTransition Action = "transition"
	ActionClose      Action = "close"
	ActionPost       Action = "post"
	ActionSweep      Action = "sweep"
)

type Resource string

const (
	ResourceBranch        Resource = "branch"
	ResourceUser          Resource = "user"
	ResourceCustomer      Resource = "customer"
	ResourceMoneySource   Resource = "money_source"
	ResourceCapitalSource Resource = "capital_source"
	ResourceTransaction   Resource = "transaction"
	ResourcePledge        Resource = "pledge"
	ResourceClosure       Resource = "closure"
	ResourceRepledge      Resource = "repledge"
	ResourceTask          Resource = "task"
)

type capability struct {
	action   Action
	resource Resource
}

// Staff can run the counter: intake, payments, customers, their tasks.
// Managers additionally approve/close/configure within their branch.
// Admins can do everything everywhere (and bypass branch scope).
var roleCapabilities = map[models.UserRole]map[capability]bool{
	models.UserRoleStaff: {
		{ActionRead, ResourceCustomer}:    true,
		{ActionCreate, ResourceCustomer}:  true,
		{ActionUpdate, ResourceCustomer}:  true,
		{ActionRead, ResourcePledge}:      true,
		{ActionCreate, ResourcePledge}:    true,
		{ActionRead, ResourceTransaction}: true,
		{ActionPost, ResourceTransaction}: true,
		{ActionRead, ResourceMoneySource}: true,
		{ActionRead, ResourceTask}:        true,
		{ActionUpdate, ResourceTask}:      true,
		{ActionRead, ResourceRepledge}:    true,
		{ActionRead, ResourceClosure}:     true,
	},
	models.UserRoleManager: {
		{ActionApprove, ResourcePledge}:       true,
		{ActionTransition, ResourcePledge}:    true,
		{ActionCreate, ResourceClosure}:       true,
		{ActionClose, ResourceRepledge}:       true,
		{ActionCreate, ResourceRepledge}:      true,
		{ActionCreate, ResourceTask}:          true,
		{ActionCreate, ResourceMoneySource}:   true,
		{ActionUpdate, ResourceMoneySource}:   true,
		{ActionCreate, ResourceCapitalSource}: true,
		{ActionRead, ResourceCapitalSource}:   true,
		{ActionSweep, ResourcePledge}:         true,
	},
}

// Can reports whether the acting user may perform action on resource.
// Manager inherits staff; admin allows all.
func Can(ctx context.Context, action Action, resource Resource) bool {
	roleStr, ok := utils.GetUserRoleFromContext(ctx)
	if !ok {
		return false
	}
	role := models.UserRole(roleStr)
	if role == models.UserRoleAdmin {
		return true
	}

	cap := capability{action, resource}
	if role == models.UserRoleManager {
		if roleCapabilities[models.UserRoleManager][cap] {
			return true
		}
		return roleCapabilities[models.UserRoleStaff][cap]
	}
	return roleCapabilities[role][cap]
}
