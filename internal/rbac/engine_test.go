package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthorizeViewerCannotPropose(t *testing.T) {
	viewer := Actor{ID: 1, Role: RoleViewer}
	decision := Authorize(viewer, ActionPropose, ResourceContext{})
	require.False(t, decision.Allowed)
	require.Equal(t, DenyMissingPermission, decision.Reason)
	require.Equal(t, PermProposeModification, decision.Missing)
}

func TestAuthorizeIsIdempotent(t *testing.T) {
	actor := Actor{ID: 3, Role: RoleTechnician, Grants: []Permission{PermExportData}}
	rc := ResourceContext{ProposerID: 9}
	first := Authorize(actor, ActionApprove, rc)
	second := Authorize(actor, ActionApprove, rc)
	require.Equal(t, first, second)
}

func TestAuthorizeSeparationOfDuties(t *testing.T) {
	manager := Actor{ID: 5, Role: RoleNetworkManager}

	// A manager may approve someone else's modification.
	decision := Authorize(manager, ActionApprove, ResourceContext{ProposerID: 9})
	require.True(t, decision.Allowed)

	// Never their own, even though the role qualifies.
	decision = Authorize(manager, ActionApprove, ResourceContext{ProposerID: 5})
	require.False(t, decision.Allowed)
	require.Equal(t, DenySeparationOfDuties, decision.Reason)

	decision = Authorize(manager, ActionApply, ResourceContext{ProposerID: 5})
	require.False(t, decision.Allowed)
	require.Equal(t, DenySeparationOfDuties, decision.Reason)
}

func TestAuthorizeCancelRules(t *testing.T) {
	technician := Actor{ID: 4, Role: RoleTechnician}
	admin := Actor{ID: 1, Role: RoleAdmin}
	other := Actor{ID: 6, Role: RoleNetworkManager}

	// The proposer may always withdraw their own modification.
	require.True(t, Authorize(technician, ActionCancel, ResourceContext{ProposerID: 4}).Allowed)
	require.True(t, Authorize(technician, ActionCancel, ResourceContext{ProposerID: 4, Draft: true}).Allowed)

	// Admins hold the user-management override once the change is in review.
	require.True(t, Authorize(admin, ActionCancel, ResourceContext{ProposerID: 4}).Allowed)

	// The override does not reach an un-submitted draft.
	decision := Authorize(admin, ActionCancel, ResourceContext{ProposerID: 4, Draft: true})
	require.False(t, decision.Allowed)
	require.Equal(t, DenyProposerOnly, decision.Reason)

	// Other actors cannot cancel on the proposer's behalf.
	decision = Authorize(other, ActionCancel, ResourceContext{ProposerID: 4})
	require.False(t, decision.Allowed)
	require.Equal(t, DenyMissingPermission, decision.Reason)
}

func TestAuthorizeSubmitAllowsProposerAndProposeHolders(t *testing.T) {
	proposer := Actor{ID: 4, Role: RoleViewer}
	require.True(t, Authorize(proposer, ActionSubmit, ResourceContext{ProposerID: 4}).Allowed)

	colleague := Actor{ID: 8, Role: RoleTechnician}
	require.True(t, Authorize(colleague, ActionSubmit, ResourceContext{ProposerID: 4}).Allowed)

	viewer := Actor{ID: 9, Role: RoleViewer}
	require.False(t, Authorize(viewer, ActionSubmit, ResourceContext{ProposerID: 4}).Allowed)
}

func TestAuthorizeExplicitGrantSuffices(t *testing.T) {
	contractor := Actor{ID: 12, Role: RoleContractor, Grants: []Permission{PermExportData}}
	require.True(t, Authorize(contractor, ActionExport, ResourceContext{}).Allowed)

	bare := Actor{ID: 13, Role: RoleContractor}
	require.False(t, Authorize(bare, ActionExport, ResourceContext{}).Allowed)
}

func TestAuthorizeUnknownAction(t *testing.T) {
	admin := Actor{ID: 1, Role: RoleAdmin}
	decision := Authorize(admin, Action("reboot"), ResourceContext{})
	require.False(t, decision.Allowed)
	require.Equal(t, DenyUnknownAction, decision.Reason)
}

func TestAuthorizeManageUsers(t *testing.T) {
	require.True(t, Authorize(Actor{ID: 1, Role: RoleAdmin}, ActionManageUsers, ResourceContext{}).Allowed)
	require.False(t, Authorize(Actor{ID: 2, Role: RoleNetworkManager}, ActionManageUsers, ResourceContext{}).Allowed)
}
