package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/auth"
	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"bitbucket.org/mmdatafocus/goldloan_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps the error taxonomy onto HTTP statuses. Anything
// unclassified is a 500 with a generic message; the detail goes to the log,
// not the client.
func respondError(c *gin.Context, err error) {
	logger := config.GetLogger()
	switch {
	case utils.IsValidationError(err):
		var ve *utils.ValidationError
		errors.As(err, &ve)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{ve.Field: ve.Message}})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, utils.ErrorLockNotObtained):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "resource busy, retry with an Idempotency-Key"})
	case errors.Is(err, workflow.ErrIdempotencyInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "a request with this Idempotency-Key is already in flight"})
	default:
		config.LogError(logger, "handlers.go", c.FullPath(), "respondError", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": utils.ProcessValidationErrors(err)})
}

// requireCan is the route-level authorization gate.
func requireCan(c *gin.Context, action auth.Action, resource auth.Resource) bool {
	if !auth.Can(c.Request.Context(), action, resource) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return false
	}
	return true
}

func paramId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func optionalQueryString(c *gin.Context, key string) *string {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	return &v
}

func optionalQueryInt(c *gin.Context, key string) *int {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func optionalQueryDate(c *gin.Context, key string) *time.Time {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	t, err := utils.ParseDateString(v, "")
	if err != nil {
		return nil
	}
	return &t
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		resp, err := models.Login(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// postTransactionHandler is the ledger entry point. The redis lock is a
// best-effort optimization to keep concurrent postings against one money
// source from queueing on the row lock; correctness never depends on it
// because ProcessTransaction serializes on SELECT ... FOR UPDATE.
func postTransactionHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionPost, auth.ResourceTransaction) {
			return
		}
		var input models.NewTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		idempotencyKey := c.GetHeader("Idempotency-Key")

		if redisLock := config.GetRedisLock(); redisLock != nil {
			lockKey := fmt.Sprintf("lock:money_source:%d", input.MoneySourceId)
			lock, err := redisLock.Obtain(c.Request.Context(), lockKey, 30*time.Second, nil)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"module":          "handlers.go",
					"money_source_id": input.MoneySourceId,
				}).Warn("could not obtain redis lock; proceeding, row lock will serialize")
			} else {
				defer func(l *redislock.Lock) {
					if releaseErr := l.Release(c.Request.Context()); releaseErr != nil && releaseErr != redislock.ErrLockNotHeld {
						logger.WithFields(logrus.Fields{
							"module":          "handlers.go",
							"money_source_id": input.MoneySourceId,
						}).Warn("failed to release redis lock: " + releaseErr.Error())
					}
				}(lock)
			}
		}

		result, err := workflow.ProcessTransaction(c.Request.Context(), logger, &input, idempotencyKey)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, gin.H{"transaction": result.Transaction, "new_balance": result.NewBalance})
	}
}

func listTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceTransaction) {
			return
		}
		results, err := models.GetTransactions(c.Request.Context(),
			optionalQueryInt(c, "money_source_id"),
			optionalQueryInt(c, "pledge_id"),
			optionalQueryDate(c, "from"),
			optionalQueryDate(c, "to"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": results})
	}
}

func getTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceTransaction) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		txn, err := models.GetTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, txn)
	}
}

func createPledgeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourcePledge) {
			return
		}
		var input models.NewPledge
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		pledge, err := models.CreatePledge(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, pledge)
	}
}

func listPledgesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourcePledge) {
			return
		}
		results, err := models.GetPledges(c.Request.Context(),
			optionalQueryString(c, "status"), optionalQueryInt(c, "customer_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"pledges": results})
	}
}

func getPledgeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourcePledge) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		pledge, err := models.GetPledge(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pledge)
	}
}

func approvePledgeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionApprove, auth.ResourcePledge) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		pledge, err := models.ApprovePledge(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pledge)
	}
}

func transitionPledgeHandler(transition func(ctx context.Context, id int) (*models.Pledge, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionTransition, auth.ResourcePledge) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		pledge, err := transition(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, pledge)
	}
}

func initiateClosureHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourceClosure) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.NewPledgeClosure
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		closure, err := models.InitiateClosure(c.Request.Context(), id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) || utils.IsValidationError(err) {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, closure)
	}
}

func getClosureHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceClosure) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		closure, err := models.GetPledgeClosure(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, closure)
	}
}

func createRepledgeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourceRepledge) {
			return
		}
		var input models.NewRepledge
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		repledge, err := models.CreateRepledge(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, repledge)
	}
}

func listRepledgesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceRepledge) {
			return
		}
		results, err := models.GetRepledges(c.Request.Context(),
			optionalQueryString(c, "status"), optionalQueryInt(c, "source_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"repledges": results})
	}
}

func getRepledgeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceRepledge) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		repledge, err := models.GetRepledge(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, repledge)
	}
}

func closeRepledgeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionClose, auth.ResourceRepledge) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.NewRepledgeClosure
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		closure, err := models.CloseRepledge(c.Request.Context(), id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) || utils.IsValidationError(err) {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, closure)
	}
}

func createTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourceTask) {
			return
		}
		var input models.NewTask
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		task, err := models.CreateTask(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

func listTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceTask) {
			return
		}
		results, err := models.GetTasks(c.Request.Context(),
			optionalQueryString(c, "status"), optionalQueryInt(c, "assignee_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": results})
	}
}

func completeTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionUpdate, auth.ResourceTask) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		task, err := models.CompleteTask(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func trackLoanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		loanNo := c.Param("loanNo")
		phone := c.Query("phone")
		code := c.Query("code")
		if loanNo == "" || phone == "" || code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "loan number, phone and code are required"})
			return
		}
		// Unauthenticated portal lookup: the branch guard must not scope it.
		ctx := utils.SetSkipBranchScopeInContext(c.Request.Context(), true)
		view, err := models.TrackLoan(ctx, loanNo, phone, code)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no matching loan"})
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func overdueSweepHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionSweep, auth.ResourcePledge) {
			return
		}
		// The sweep spans all branches.
		ctx := utils.SetSkipBranchScopeInContext(c.Request.Context(), true)
		result, err := workflow.SweepOverduePledges(ctx, logger, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourceUser) {
			return
		}
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func createBranchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourceBranch) {
			return
		}
		var input models.NewBranch
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		branch, err := models.CreateBranch(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, branch)
	}
}

func updateBranchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionUpdate, auth.ResourceBranch) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.NewBranch
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		branch, err := models.UpdateBranch(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, branch)
	}
}

func listBranchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceBranch) {
			return
		}
		results, err := models.GetBranches(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"branches": results})
	}
}

func createCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourceCustomer) {
			return
		}
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, customer)
	}
}

func updateCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionUpdate, auth.ResourceCustomer) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

func listCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceCustomer) {
			return
		}
		results, err := models.GetCustomers(c.Request.Context(),
			optionalQueryString(c, "name"), optionalQueryString(c, "phone"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customers": results})
	}
}

func getCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceCustomer) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		customer, err := models.GetCustomer(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

func createMoneySourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourceMoneySource) {
			return
		}
		var input models.NewMoneySource
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		source, err := models.CreateMoneySource(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, source)
	}
}

func updateMoneySourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionUpdate, auth.ResourceMoneySource) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input models.NewMoneySource
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		source, err := models.UpdateMoneySource(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, source)
	}
}

func toggleMoneySourceHandler() gin.HandlerFunc {
	type toggleInput struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionUpdate, auth.ResourceMoneySource) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		var input toggleInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		source, err := models.ToggleActiveMoneySource(c.Request.Context(), id, *input.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, source)
	}
}

func listMoneySourcesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceMoneySource) {
			return
		}
		results, err := models.GetMoneySources(c.Request.Context(),
			optionalQueryString(c, "source_type"), optionalQueryString(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"money_sources": results})
	}
}

func getMoneySourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceMoneySource) {
			return
		}
		id, ok := paramId(c)
		if !ok {
			return
		}
		source, err := models.GetMoneySource(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, source)
	}
}

func createCapitalSourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourceCapitalSource) {
			return
		}
		var input models.NewCapitalSource
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		source, err := models.CreateCapitalSource(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, source)
	}
}

func listCapitalSourcesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceCapitalSource) {
			return
		}
		results, err := models.GetCapitalSources(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"capital_sources": results})
	}
}

func createRepledgeSourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionCreate, auth.ResourceRepledge) {
			return
		}
		var input models.NewRepledgeSource
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		source, err := models.CreateRepledgeSource(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, source)
	}
}

func listRepledgeSourcesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCan(c, auth.ActionRead, auth.ResourceRepledge) {
			return
		}
		results, err := models.GetRepledgeSources(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"repledge_sources": results})
	}
}
