package security

import (
	"github.com/giantswarm/sentinel/threat"
)

// RoleAdmin is the only role CheckUnauthorizedAccess guards.
const RoleAdmin = "admin"

// CheckUnauthorizedAccess records an unauthorized_access event when a
// non-admin reaches a resource that requires the admin role. Every other
// role combination returns nil; this is not a general RBAC check.
func (d *Detector) CheckUnauthorizedAccess(userID, resource, requiredRole, actualRole string) *threat.Event {
	if requiredRole != RoleAdmin || actualRole == RoleAdmin || requiredRole == actualRole {
		return nil
	}

	e := d.Detect(threat.Event{
		Type:   threat.TypeUnauthorizedAccess,
		Level:  threat.LevelMedium,
		Source: threat.Source{UserID: userID},
		Target: threat.Target{Resource: resource},
		Details: threat.Details{
			{Key: "required_role", Value: requiredRole},
			{Key: "actual_role", Value: actualRole},
		},
	})
	return &e
}
