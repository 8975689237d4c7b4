package config

import (
	"os"
	"strconv"
	"strings"
)

// TrackingAutoProvision reports whether the given branch provisions a
// customer loan-tracking record whenever a pledge is created.
//
// Set via env:
// - TRACKING_AUTO_PROVISION_BRANCHES="1,4,7"  (branch ids, comma separated)
// - TRACKING_AUTO_PROVISION_BRANCHES="all"    (every branch)
func TrackingAutoProvision(branchId int) bool {
	raw := strings.TrimSpace(os.Getenv("TRACKING_AUTO_PROVISION_BRANCHES"))
	if raw == "" {
		return false
	}
	if strings.EqualFold(raw, "all") {
		return true
	}
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if id == branchId {
			return true
		}
	}
	return false
}
