package rbac

import "strings"

// Evaluator answers authorization questions against an immutable
// Role→Permission table. Safe for concurrent use: the table is copied at
// construction and never mutated afterwards.
type Evaluator struct {
	table map[Role]map[string]map[string]struct{}
}

// NewEvaluator builds an Evaluator from the given matrix. Resource and
// action names are normalised to lower case.
func NewEvaluator(matrix map[Role][]Permission) *Evaluator {
	table := make(map[Role]map[string]map[string]struct{}, len(matrix))
	for role, perms := range matrix {
		resources := make(map[string]map[string]struct{}, len(perms))
		for _, perm := range perms {
			resource := strings.ToLower(strings.TrimSpace(perm.Resource))
			if resource == "" {
				continue
			}
			actions, ok := resources[resource]
			if !ok {
				actions = make(map[string]struct{}, len(perm.Actions))
				resources[resource] = actions
			}
			for _, action := range perm.Actions {
				action = strings.ToLower(strings.TrimSpace(action))
				if action == "" {
					continue
				}
				actions[action] = struct{}{}
			}
		}
		table[role] = resources
	}
	return &Evaluator{table: table}
}

// Authorize reports whether role may perform action on resource. Any
// combination absent from the table is denied.
func (e *Evaluator) Authorize(role Role, resource, action string) bool {
	if e == nil {
		return false
	}
	resources, ok := e.table[role]
	if !ok {
		return false
	}
	actions, ok := resources[strings.ToLower(strings.TrimSpace(resource))]
	if !ok {
		return false
	}
	_, ok = actions[strings.ToLower(strings.TrimSpace(action))]
	return ok
}

// DefaultMatrix is the static permission configuration shipped with the
// platform. ACR holds full authority; GESTOR approves within its unit;
// contributors create and update their own records; CONSULTOR reads only.
func DefaultMatrix() map[Role][]Permission {
	readAll := []Permission{
		{Resource: ResourceObligations, Actions: []string{ActionRead}},
		{Resource: ResourceNorms, Actions: []string{ActionRead}},
		{Resource: ResourceUnits, Actions: []string{ActionRead}},
	}
	return map[Role][]Permission{
		RoleACR: {
			{Resource: ResourceObligations, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionApprove, ActionExport}},
			{Resource: ResourceNorms, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport}},
			{Resource: ResourceUnits, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
			{Resource: ResourceUsers, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
		},
		RoleGestor: {
			{Resource: ResourceObligations, Actions: []string{ActionCreate, ActionRead, ActionUpdate, ActionApprove, ActionExport}},
			{Resource: ResourceNorms, Actions: []string{ActionRead}},
			{Resource: ResourceUnits, Actions: []string{ActionRead}},
			{Resource: ResourceUsers, Actions: []string{ActionRead}},
		},
		RoleResponsavel: {
			{Resource: ResourceObligations, Actions: []string{ActionCreate, ActionRead, ActionUpdate}},
			{Resource: ResourceNorms, Actions: []string{ActionRead}},
			{Resource: ResourceUnits, Actions: []string{ActionRead}},
		},
		RoleUsuario: {
			{Resource: ResourceObligations, Actions: []string{ActionCreate, ActionRead, ActionUpdate}},
			{Resource: ResourceNorms, Actions: []string{ActionRead}},
			{Resource: ResourceUnits, Actions: []string{ActionRead}},
		},
		RoleConsultor: readAll,
	}
}
