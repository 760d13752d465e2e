package plans

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/conformia/conformia/internal/notify"
	"github.com/conformia/conformia/internal/obligations"
	"github.com/conformia/conformia/internal/rbac"
	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/workflow"
)

type memRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]Plan
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[uuid.UUID]Plan)}
}

// txScope marks contexts handed out by WithTx, mirroring how the pgx-backed
// repository carries its open transaction in the context.
type txScope struct{}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.WithValue(ctx, txScope{}, true), (*memTx)(r))
}

func (r *memRepo) GetPlan(_ context.Context, id uuid.UUID) (Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return Plan{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memRepo) ListByAssignment(_ context.Context, assignmentID uuid.UUID) ([]Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Plan
	for _, p := range r.items {
		if p.AssignmentID == assignmentID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memTx memRepo

func (t *memTx) InsertPlan(_ context.Context, p Plan) error {
	t.items[p.ID] = p
	return nil
}

func (t *memTx) GetPlanForUpdate(_ context.Context, id uuid.UUID) (Plan, error) {
	p, ok := t.items[id]
	if !ok {
		return Plan{}, shared.ErrNotFound
	}
	return p, nil
}

func (t *memTx) UpdatePlanStatus(_ context.Context, id uuid.UUID, status workflow.Status, final workflow.FinalOutcome) error {
	p := t.items[id]
	p.Status = status
	p.Final = final
	t.items[id] = p
	return nil
}

type fakeAssignments struct {
	mu          sync.Mutex
	assignments map[uuid.UUID]obligations.Assignment
	recomputed  []obligations.Situacao
	inTx        []bool
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{assignments: make(map[uuid.UUID]obligations.Assignment)}
}

func (f *fakeAssignments) add(unitID int64) obligations.Assignment {
	a := obligations.Assignment{ID: uuid.New(), ObligationID: uuid.New(), UnitID: unitID, Situacao: obligations.SituacaoAguardandoEvidencia}
	f.assignments[a.ID] = a
	return a
}

func (f *fakeAssignments) GetAssignment(_ context.Context, id uuid.UUID) (obligations.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok {
		return obligations.Assignment{}, shared.ErrNotFound
	}
	return a, nil
}

func (f *fakeAssignments) RecomputeAssignment(ctx context.Context, id uuid.UUID, status workflow.Status, final workflow.FinalOutcome) (obligations.Situacao, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	situacao := obligations.ResolveSituacao(status, final)
	a := f.assignments[id]
	a.Situacao = situacao
	f.assignments[id] = a
	f.recomputed = append(f.recomputed, situacao)
	f.inTx = append(f.inTx, ctx.Value(txScope{}) != nil)
	return situacao, nil
}

var (
	responsavel = shared.Actor{UserID: 5, Role: string(rbac.RoleResponsavel), UnitID: 1}
	gestor      = shared.Actor{UserID: 6, Role: string(rbac.RoleGestor), UnitID: 1}
	acr         = shared.Actor{UserID: 8, Role: string(rbac.RoleACR), UnitID: 99}
)

func draftPlan(assignmentID uuid.UUID) Plan {
	return Plan{
		AssignmentID: assignmentID,
		What:         "Implantar trilha de auditoria no ERP",
		Why:          "Exigência de registro das operações de tratamento",
		Who:          "Equipe de TI",
		How:          "Ativar módulo de log e revisar retenção",
		Deadline:     time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		Cost:         15000,
	}
}

func TestPlanCreateAssignsOwnership(t *testing.T) {
	repo := newMemRepo()
	assignments := newFakeAssignments()
	svc := NewService(repo, assignments, rbac.NewEvaluator(rbac.DefaultMatrix()), nil, nil, &notify.MemorySink{}, nil, nil)
	assignment := assignments.add(1)

	plan, err := svc.Create(context.Background(), responsavel, draftPlan(assignment.ID))
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRascunho, plan.Status)
	require.Equal(t, int64(1), plan.UnitID)
	require.Equal(t, responsavel.UserID, plan.CreatedBy)

	_, err = svc.Create(context.Background(), responsavel, Plan{AssignmentID: assignment.ID, What: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPlanApprovalPropagatesSituacao(t *testing.T) {
	repo := newMemRepo()
	assignments := newFakeAssignments()
	sink := &notify.MemorySink{}
	svc := NewService(repo, assignments, rbac.NewEvaluator(rbac.DefaultMatrix()), nil, nil, sink, nil, nil)
	ctx := context.Background()
	assignment := assignments.add(1)

	plan, err := svc.Create(ctx, responsavel, draftPlan(assignment.ID))
	require.NoError(t, err)

	status, err := svc.Submit(ctx, responsavel, plan.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusEmAnaliseGestor, status)

	status, err = svc.DecideGestor(ctx, gestor, plan.ID, true, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusEmAnaliseACR, status)

	// An approved plan counts as partial conformity until executed, so the
	// ACR records ATENDE_PARCIALMENTE.
	status, err = svc.DecideACR(ctx, acr, plan.ID, true, "", workflow.OutcomeAtendeParcialmente)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAprovadoACR, status)

	got, err := assignments.GetAssignment(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, obligations.SituacaoAtendeParcialmente, got.Situacao)

	var sawDecided bool
	for _, e := range sink.Events() {
		if e.EventKind == notify.EventPlanDecided {
			sawDecided = true
		}
	}
	require.True(t, sawDecided)
}

func TestPlanGateOrderEnforced(t *testing.T) {
	repo := newMemRepo()
	assignments := newFakeAssignments()
	svc := NewService(repo, assignments, rbac.NewEvaluator(rbac.DefaultMatrix()), nil, nil, nil, nil, nil)
	ctx := context.Background()
	assignment := assignments.add(1)

	plan, err := svc.Create(ctx, responsavel, draftPlan(assignment.ID))
	require.NoError(t, err)

	// ACR cannot decide before the manager gate.
	_, err = svc.DecideACR(ctx, acr, plan.ID, true, "", workflow.OutcomeAtendeParcialmente)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// And a plain unit member can never decide.
	_, err = svc.DecideGestor(ctx, responsavel, plan.ID, true, "")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestPlanRecomputeRunsInsideTransitionScope(t *testing.T) {
	repo := newMemRepo()
	assignments := newFakeAssignments()
	svc := NewService(repo, assignments, rbac.NewEvaluator(rbac.DefaultMatrix()), nil, nil, &notify.MemorySink{}, nil, nil)
	assignment := assignments.add(1)
	ctx := context.Background()

	plan, err := svc.Create(ctx, responsavel, draftPlan(assignment.ID))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, responsavel, plan.ID)
	require.NoError(t, err)
	_, err = svc.DecideGestor(ctx, gestor, plan.ID, true, "")
	require.NoError(t, err)
	_, err = svc.DecideACR(ctx, acr, plan.ID, true, "", workflow.OutcomeAtendeParcialmente)
	require.NoError(t, err)

	// Every recompute must share the status write's transaction so the
	// situacao can never outlive a transition that failed to commit.
	require.Len(t, assignments.inTx, 3)
	for i, in := range assignments.inTx {
		require.True(t, in, "recompute %d escaped the transaction scope", i)
	}
}
