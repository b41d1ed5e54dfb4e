package policy

import "testing"

func TestAllow(t *testing.T) {
	organizer := Actor{UserID: 7, Role: "organizer"}
	admin := Actor{UserID: 1, Role: "admin"}
	customer := Actor{UserID: 9, Role: "user"}

	ownEvent := Resource{Kind: "event", OwnerID: 7}
	otherEvent := Resource{Kind: "event", OwnerID: 8}
	publicListing := Resource{Kind: "event"}
	ownOrder := Resource{Kind: "order", OwnerID: 9}

	cases := []struct {
		name     string
		actor    Actor
		resource Resource
		action   Action
		want     bool
	}{
		{"admin manages anything", admin, otherEvent, ActionManage, true},
		{"organizer manages own event", organizer, ownEvent, ActionManage, true},
		{"organizer cannot manage foreign event", organizer, otherEvent, ActionManage, false},
		{"customer cannot manage", customer, ownOrder, ActionManage, false},
		{"owner reads own order", customer, ownOrder, ActionRead, true},
		{"owner writes own order", customer, ownOrder, ActionWrite, true},
		{"non-owner cannot read order", organizer, ownOrder, ActionRead, false},
		{"anyone reads unowned resource", customer, publicListing, ActionRead, true},
		{"nobody writes unowned resource", customer, publicListing, ActionWrite, false},
	}

	for _, tc := range cases {
		if got := Allow(tc.actor, tc.resource, tc.action); got != tc.want {
			t.Errorf("%s: Allow() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
