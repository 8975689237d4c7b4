package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"github.com/sirupsen/logrus"
)

// RegisterTrackingProvisioner hooks customer loan tracking onto pledge
// creation. Provisioning runs after the intake commit; a failure here is
// logged and never surfaces to the counter operator, since the tracking row
// can be provisioned again later.
func RegisterTrackingProvisioner(logger *logrus.Logger) {
	models.OnPledgeCreated(func(ctx context.Context, ev models.PledgeCreatedEvent) {
		if ev.Pledge == nil || ev.Loan == nil {
			return
		}
		if !config.TrackingAutoProvision(ev.Pledge.BranchId) {
			return
		}
		if _, err := models.ProvisionLoanTracking(ctx, ev.Pledge, ev.Loan); err != nil {
			config.LogError(logger, "trackingProvisioner.go", "RegisterTrackingProvisioner", "ProvisionLoanTracking", ev.Pledge.ID, err)
		}
	})
}
