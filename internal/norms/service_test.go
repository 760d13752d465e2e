package norms

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/conformia/conformia/internal/obligations"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
)

type memRepo struct {
	mu    sync.Mutex
	norms map[uuid.UUID]Norm
}

func newMemRepo() *memRepo {
	return &memRepo{norms: make(map[uuid.UUID]Norm)}
}

func (r *memRepo) Insert(_ context.Context, norm Norm) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.norms {
		if existing.Code == norm.Code {
			return ErrDuplicateCode
		}
	}
	r.norms[norm.ID] = norm
	return nil
}

func (r *memRepo) Get(_ context.Context, id uuid.UUID) (Norm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.norms[id]
	if !ok {
		return Norm{}, shared.ErrNotFound
	}
	return n, nil
}

func (r *memRepo) List(_ context.Context, limit, offset int) ([]Norm, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]Norm, 0, len(r.norms))
	for _, n := range r.norms {
		all = append(all, n)
	}
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *memRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.norms[id]
	if !ok {
		return shared.ErrNotFound
	}
	n.IsActive = false
	r.norms[id] = n
	return nil
}

type fakeObligations struct {
	mu      sync.Mutex
	created []obligations.CreateInput
}

func (f *fakeObligations) Create(_ context.Context, _ shared.Actor, input obligations.CreateInput) (obligations.Obligation, []obligations.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, input)
	return obligations.Obligation{ID: uuid.New(), NormID: input.NormID, Title: input.Title}, nil, nil
}

func (f *fakeObligations) ListByNorm(_ context.Context, _ uuid.UUID) ([]obligations.Obligation, error) {
	return nil, nil
}

var acr = shared.Actor{UserID: 1, Role: string(rbac.RoleACR), UnitID: 1}

func newTestService(repo *memRepo, obl *fakeObligations) *Service {
	return NewService(repo, obl, rbac.NewEvaluator(rbac.DefaultMatrix()), nil, nil)
}

func TestCreateNorm(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeObligations{})
	ctx := context.Background()

	norm, err := svc.Create(ctx, acr, CreateInput{Code: " LGPD ", Kind: KindLei, Title: "Lei Geral de Proteção de Dados"})
	require.NoError(t, err)
	require.Equal(t, "LGPD", norm.Code)
	require.True(t, norm.IsActive)

	_, err = svc.Create(ctx, acr, CreateInput{Code: "LGPD", Kind: KindLei, Title: "duplicada"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, acr, CreateInput{Code: "X", Kind: "sumula", Title: "y"})
	require.ErrorIs(t, err, shared.ErrValidation)

	gestor := shared.Actor{UserID: 2, Role: string(rbac.RoleGestor), UnitID: 1}
	_, err = svc.Create(ctx, gestor, CreateInput{Code: "Z", Kind: KindLei, Title: "z"})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestRegisterObligations(t *testing.T) {
	repo := newMemRepo()
	obl := &fakeObligations{}
	svc := newTestService(repo, obl)
	ctx := context.Background()

	norm, err := svc.Create(ctx, acr, CreateInput{Code: "LGPD", Kind: KindLei, Title: "LGPD"})
	require.NoError(t, err)

	created, err := svc.RegisterObligations(ctx, acr, norm.ID, []ObligationInput{
		{Tipo: obligations.TipoDeterminacao, Title: "Nomear DPO", UnitIDs: []int64{1}},
		{Tipo: obligations.TipoRecomendacao, Title: "Revisar contratos", UnitIDs: []int64{1, 2}},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Len(t, obl.created, 2)
	require.Equal(t, norm.ID, obl.created[0].NormID)

	_, err = svc.RegisterObligations(ctx, acr, norm.ID, nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RegisterObligations(ctx, acr, uuid.New(), []ObligationInput{{Tipo: obligations.TipoDeterminacao, Title: "x", UnitIDs: []int64{1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRegisterObligationsRejectsInactiveNorm(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &fakeObligations{})
	ctx := context.Background()

	norm, err := svc.Create(ctx, acr, CreateInput{Code: "LGPD", Kind: KindLei, Title: "LGPD"})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, acr, norm.ID))

	_, err = svc.RegisterObligations(ctx, acr, norm.ID, []ObligationInput{
		{Tipo: obligations.TipoDeterminacao, Title: "x", UnitIDs: []int64{1}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
