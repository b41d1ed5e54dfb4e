// internal/pkg/policy/policy.go
package policy

// Actor is whoever is performing an action.
type Actor struct {
	UserID uint
	Role   string
}

// Resource names a thing an action is performed on.
type Resource struct {
	Kind    string // "event", "order", "cart", ...
	OwnerID uint   // zero when the resource has no owner
}

// Action is what the actor wants to do.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

// Allow decides whether the actor may perform the action on the resource.
// Admins may do anything. Organizers may manage their own resources.
// Everyone may read/write resources they own.
func Allow(actor Actor, resource Resource, action Action) bool {
	if actor.Role == "admin" {
		return true
	}

	switch action {
	case ActionManage:
		return actor.Role == "organizer" && resource.OwnerID == actor.UserID
	case ActionRead, ActionWrite:
		if resource.OwnerID == 0 {
			return action == ActionRead
		}
		return resource.OwnerID == actor.UserID
	}
	return false
}
