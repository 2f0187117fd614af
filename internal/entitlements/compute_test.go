package entitlements

import (
	"testing"

	"github.com/simmerworks/simmer-backend/pkg/enums"
)

func TestCompute(t *testing.T) {
	trialing := enums.SubscriptionStatusTrialing
	active := enums.SubscriptionStatusActive
	pastDue := enums.SubscriptionStatusPastDue
	canceled := enums.SubscriptionStatusCanceled
	expired := enums.SubscriptionStatusExpired

	cases := []struct {
		name       string
		role       enums.AppRole
		status     *enums.SubscriptionStatus
		enterprise bool
		wantPublic bool
		wantEnt    bool
	}{
		{"owner without subscription", enums.AppRoleOwner, nil, false, true, true},
		{"owner expired still sees all", enums.AppRoleOwner, &expired, false, true, true},
		{"subscriber trialing", enums.AppRoleSubscriber, &trialing, false, true, false},
		{"subscriber active", enums.AppRoleSubscriber, &active, false, true, false},
		{"subscriber past due", enums.AppRoleSubscriber, &pastDue, false, false, false},
		{"subscriber canceled", enums.AppRoleSubscriber, &canceled, false, false, false},
		{"subscriber expired", enums.AppRoleSubscriber, &expired, false, false, false},
		{"subscriber no record", enums.AppRoleSubscriber, nil, false, false, false},
		{"enterprise grant without subscription", enums.AppRoleSubscriber, nil, true, false, true},
		{"enterprise grant with active sub", enums.AppRoleSubscriber, &active, true, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			access := Compute(tc.role, tc.status, tc.enterprise)
			if access.CanViewPublic != tc.wantPublic {
				t.Fatalf("CanViewPublic = %v, want %v", access.CanViewPublic, tc.wantPublic)
			}
			if access.CanViewEnterprise != tc.wantEnt {
				t.Fatalf("CanViewEnterprise = %v, want %v", access.CanViewEnterprise, tc.wantEnt)
			}
		})
	}
}
