package auth

// Action is a named operation gated by a minimum role.
type Action string

const (
	ActionView             Action = "view"
	ActionRecord           Action = "record"
	ActionSave             Action = "save"
	ActionModify           Action = "modify"
	ActionUserManagement   Action = "userManagement"
	ActionAdvancedSettings Action = "advancedSettings"
)

// minimumRole is the fixed action-to-minimum-role table. Actions absent from
// the table are denied for every role.
var minimumRole = map[Action]Role{
	ActionView:             RoleGuest,
	ActionRecord:           RoleUser,
	ActionSave:             RoleUser,
	ActionModify:           RoleUser,
	ActionUserManagement:   RoleAdmin,
	ActionAdvancedSettings: RoleAdmin,
}

// MinimumRole returns the role required for an action. The second return is
// false for unknown actions.
func MinimumRole(action Action) (Role, bool) {
	role, ok := minimumRole[action]
	return role, ok
}
