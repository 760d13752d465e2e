package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthorizeDefaultDeny(t *testing.T) {
	eval := NewEvaluator(DefaultMatrix())

	require.False(t, eval.Authorize("UNKNOWN", ResourceObligations, ActionRead))
	require.False(t, eval.Authorize(RoleConsultor, ResourceObligations, ActionApprove))
	require.False(t, eval.Authorize(RoleResponsavel, ResourceObligations, ActionApprove))
	require.False(t, eval.Authorize(RoleGestor, "budgets", ActionRead))
	require.False(t, eval.Authorize(RoleACR, ResourceObligations, "publish"))
}

func TestAuthorizeApprovals(t *testing.T) {
	eval := NewEvaluator(DefaultMatrix())

	require.True(t, eval.Authorize(RoleACR, ResourceObligations, ActionApprove))
	require.True(t, eval.Authorize(RoleGestor, ResourceObligations, ActionApprove))
	require.False(t, eval.Authorize(RoleUsuario, ResourceObligations, ActionApprove))
}

func TestAuthorizeNormalisesNames(t *testing.T) {
	eval := NewEvaluator(map[Role][]Permission{
		RoleGestor: {{Resource: " Obligations ", Actions: []string{" Approve "}}},
	})

	require.True(t, eval.Authorize(RoleGestor, "obligations", "approve"))
	require.True(t, eval.Authorize(RoleGestor, "OBLIGATIONS", "APPROVE"))
	require.False(t, eval.Authorize(RoleGestor, "obligations", "read"))
}

func TestNilEvaluatorDenies(t *testing.T) {
	var eval *Evaluator
	require.False(t, eval.Authorize(RoleACR, ResourceObligations, ActionRead))
}

func TestConsultorIsReadOnly(t *testing.T) {
	eval := NewEvaluator(DefaultMatrix())
	for _, resource := range []string{ResourceObligations, ResourceNorms, ResourceUnits} {
		require.True(t, eval.Authorize(RoleConsultor, resource, ActionRead))
		for _, action := range []string{ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport} {
			require.False(t, eval.Authorize(RoleConsultor, resource, action), "resource %s action %s", resource, action)
		}
	}
}
