package security

import (
	"testing"

	"github.com/giantswarm/sentinel/threat"
)

func TestCheckUnauthorizedAccess(t *testing.T) {
	tests := []struct {
		name         string
		requiredRole string
		actualRole   string
		wantEvent    bool
	}{
		{"user on admin resource", "admin", "user", true},
		{"anonymous on admin resource", "admin", "", true},
		{"admin on admin resource", "admin", "admin", false},
		{"user on user resource", "user", "user", false},
		{"guest on editor resource", "editor", "guest", false},
		{"admin on user resource", "user", "admin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td := newTestDetector(t, Config{})

			e := td.CheckUnauthorizedAccess("bob", "/admin/users", tt.requiredRole, tt.actualRole)
			if (e != nil) != tt.wantEvent {
				t.Fatalf("CheckUnauthorizedAccess() event = %v, want %v", e != nil, tt.wantEvent)
			}
			if e == nil {
				return
			}
			if e.Type != threat.TypeUnauthorizedAccess || e.Level != threat.LevelMedium {
				t.Errorf("unexpected event %s/%s", e.Type, e.Level)
			}
			if e.Source.UserID != "bob" || e.Target.Resource != "/admin/users" {
				t.Errorf("unexpected source/target %+v %+v", e.Source, e.Target)
			}
			if role, _ := e.Details.Get("actual_role"); role != tt.actualRole {
				t.Errorf("details.actual_role = %v, want %q", role, tt.actualRole)
			}
		})
	}
}
