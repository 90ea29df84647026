package rbac

// Action identifies a requested operation.
type Action string

const (
	ActionPropose     Action = "propose"
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionCancel      Action = "cancel"
	ActionApply       Action = "apply"
	ActionView        Action = "view"
	ActionExport      Action = "export"
	ActionManageUsers Action = "manage-users"
)

// DenyReason classifies why a Decision denied the action.
type DenyReason string

const (
	DenyMissingPermission  DenyReason = "missing_permission"
	DenySeparationOfDuties DenyReason = "separation_of_duties"
	DenyProposerOnly       DenyReason = "proposer_only"
	DenyUnknownAction      DenyReason = "unknown_action"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Missing Permission
}

// ResourceContext carries the attributes of the targeted resource that the
// engine needs beyond the actor itself.
type ResourceContext struct {
	// ProposerID is the identity that proposed the targeted modification.
	// Zero when the action has no modification target.
	ProposerID int64
	// Draft marks a modification that has not yet been submitted for
	// review. A draft belongs to its proposer alone.
	Draft bool
}

// actionPermissions is the fixed action → minimal-required-permission table.
var actionPermissions = map[Action]Permission{
	ActionPropose:     PermProposeModification,
	ActionSubmit:      PermProposeModification,
	ActionApprove:     PermEditInfrastructure,
	ActionReject:      PermEditInfrastructure,
	ActionApply:       PermEditInfrastructure,
	ActionView:        PermViewInfrastructure,
	ActionExport:      PermExportData,
	ActionManageUsers: PermManageUsers,
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason DenyReason, missing Permission) Decision {
	return Decision{Reason: reason, Missing: missing}
}

// Authorize evaluates whether the actor may perform the action against the
// given resource context. It is pure: no state is read or mutated beyond the
// arguments, so identical inputs always yield identical decisions.
//
// Evaluation order follows a fixed policy: effective permission set first, the
// action's required permission second, then the contextual rules (separation
// of duties for approve/apply, proposer privilege for submit/cancel). A single
// missing bit denies the whole action.
func Authorize(actor Actor, action Action, rc ResourceContext) Decision {
	effective := EffectivePermissions(actor)

	switch action {
	case ActionCancel:
		// The proposer may withdraw their own modification.
		if rc.ProposerID != 0 && actor.ID == rc.ProposerID {
			return allow()
		}
		// An un-submitted draft cannot be withdrawn on the proposer's
		// behalf; the user-management override only reaches modifications
		// already in review.
		if rc.Draft {
			return deny(DenyProposerOnly, "")
		}
		if _, ok := effective[PermManageUsers]; ok {
			return allow()
		}
		return deny(DenyMissingPermission, PermManageUsers)

	case ActionSubmit:
		// Submit is open to the proposer as well as any propose-capable actor.
		if rc.ProposerID != 0 && actor.ID == rc.ProposerID {
			return allow()
		}
		if _, ok := effective[PermProposeModification]; ok {
			return allow()
		}
		return deny(DenyMissingPermission, PermProposeModification)

	case ActionApprove, ActionApply:
		required := actionPermissions[action]
		if _, ok := effective[required]; !ok {
			return deny(DenyMissingPermission, required)
		}
		// Separation of duties: the proposer may never approve or apply
		// their own change, regardless of permissions.
		if rc.ProposerID != 0 && actor.ID == rc.ProposerID {
			return deny(DenySeparationOfDuties, "")
		}
		return allow()

	default:
		required, ok := actionPermissions[action]
		if !ok {
			return deny(DenyUnknownAction, "")
		}
		if _, ok := effective[required]; !ok {
			return deny(DenyMissingPermission, required)
		}
		return allow()
	}
}
