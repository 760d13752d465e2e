package units

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
)

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	units  map[int64]Unit
}

func newMemRepo() *memRepo {
	return &memRepo{units: make(map[int64]Unit)}
}

func (r *memRepo) Insert(_ context.Context, unit Unit) (Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.units {
		if existing.Code == unit.Code {
			return Unit{}, ErrDuplicateCode
		}
	}
	r.nextID++
	unit.ID = r.nextID
	r.units[unit.ID] = unit
	return unit, nil
}

func (r *memRepo) Get(_ context.Context, id int64) (Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[id]
	if !ok {
		return Unit{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memRepo) List(_ context.Context, includeInactive bool) ([]Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Unit
	for _, u := range r.units {
		if !includeInactive && !u.IsActive {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *memRepo) Update(_ context.Context, unit Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[unit.ID]; !ok {
		return shared.ErrNotFound
	}
	r.units[unit.ID] = unit
	return nil
}

func (r *memRepo) SetActive(_ context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	r.units[id] = u
	return nil
}

var (
	acr    = shared.Actor{UserID: 1, Role: string(rbac.RoleACR), UnitID: 1}
	gestor = shared.Actor{UserID: 2, Role: string(rbac.RoleGestor), UnitID: 1}
)

func TestUnitLifecycle(t *testing.T) {
	svc := NewService(newMemRepo(), rbac.NewEvaluator(rbac.DefaultMatrix()), nil, nil)
	ctx := context.Background()

	unit, err := svc.Create(ctx, acr, " FIN ", " Diretoria Financeira ")
	require.NoError(t, err)
	require.Equal(t, "FIN", unit.Code)
	require.True(t, unit.IsActive)

	renamed, err := svc.Rename(ctx, acr, unit.ID, "Diretoria de Finanças")
	require.NoError(t, err)
	require.Equal(t, "Diretoria de Finanças", renamed.Name)

	require.NoError(t, svc.Deactivate(ctx, acr, unit.ID))

	visible, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Empty(t, visible)

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestUnitValidationAndPermissions(t *testing.T) {
	svc := NewService(newMemRepo(), rbac.NewEvaluator(rbac.DefaultMatrix()), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, acr, "", "Sem código")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, gestor, "OPS", "Operações")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.Create(ctx, acr, "OPS", "Operações")
	require.NoError(t, err)
	_, err = svc.Create(ctx, acr, "OPS", "Duplicada")
	require.ErrorIs(t, err, shared.ErrValidation)
}
