package evidence

import (
	"context"
	"sync"
	"testing"

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
	items map[uuid.UUID]Evidence
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[uuid.UUID]Evidence)}
}

// txScope marks contexts handed out by WithTx, mirroring how the pgx-backed
// repository carries its open transaction in the context.
type txScope struct{}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.WithValue(ctx, txScope{}, true), (*memTx)(r))
}

func (r *memRepo) GetEvidence(_ context.Context, id uuid.UUID) (Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.items[id]
	if !ok {
		return Evidence{}, shared.ErrNotFound
	}
	return ev, nil
}

func (r *memRepo) ListByAssignment(_ context.Context, assignmentID uuid.UUID) ([]Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Evidence
	for _, ev := range r.items {
		if ev.AssignmentID == assignmentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type memTx memRepo

func (t *memTx) InsertEvidence(_ context.Context, ev Evidence) error {
	t.items[ev.ID] = ev
	return nil
}

func (t *memTx) GetEvidenceForUpdate(_ context.Context, id uuid.UUID) (Evidence, error) {
	ev, ok := t.items[id]
	if !ok {
		return Evidence{}, shared.ErrNotFound
	}
	return ev, nil
}

func (t *memTx) UpdateEvidenceStatus(_ context.Context, id uuid.UUID, status workflow.Status, final workflow.FinalOutcome) error {
	ev := t.items[id]
	ev.Status = status
	ev.Final = final
	t.items[id] = ev
	return nil
}

func (t *memTx) UpdateEvidenceContent(_ context.Context, id uuid.UUID, tipo Tipo, content string) error {
	ev := t.items[id]
	ev.Tipo = tipo
	ev.Content = content
	t.items[id] = ev
	return nil
}

// fakeAssignments records every situacao recomputation the workflow pushes,
// and whether each one arrived inside the transition's transaction scope.
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
	a := obligations.Assignment{
		ID:           uuid.New(),
		ObligationID: uuid.New(),
		UnitID:       unitID,
		Situacao:     obligations.SituacaoAguardandoEvidencia,
	}
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

type memHistory struct {
	mu      sync.Mutex
	entries []shared.HistoryEntry
}

func (h *memHistory) Record(_ context.Context, entry shared.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry.ID = int64(len(h.entries) + 1)
	h.entries = append(h.entries, entry)
	return nil
}

func (h *memHistory) List(_ context.Context, module string, ref uuid.UUID) ([]shared.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []shared.HistoryEntry
	for _, e := range h.entries {
		if e.Module == module && e.RefID == ref {
			out = append(out, e)
		}
	}
	return out, nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveTransition(module, action string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[module+"/"+action]++
}

type fixture struct {
	svc         *Service
	repo        *memRepo
	assignments *fakeAssignments
	history     *memHistory
	sink        *notify.MemorySink
	observer    *countingObserver
}

func newFixture() *fixture {
	f := &fixture{
		repo:        newMemRepo(),
		assignments: newFakeAssignments(),
		history:     &memHistory{},
		sink:        &notify.MemorySink{},
		observer:    &countingObserver{},
	}
	f.svc = NewService(f.repo, f.assignments, rbac.NewEvaluator(rbac.DefaultMatrix()), f.history, nil, f.sink, f.observer, nil)
	return f
}

var (
	responsavel = shared.Actor{UserID: 5, Role: string(rbac.RoleResponsavel), UnitID: 1}
	gestor      = shared.Actor{UserID: 6, Role: string(rbac.RoleGestor), UnitID: 1}
	otherGestor = shared.Actor{UserID: 7, Role: string(rbac.RoleGestor), UnitID: 2}
	acr         = shared.Actor{UserID: 8, Role: string(rbac.RoleACR), UnitID: 99}
	consultor   = shared.Actor{UserID: 9, Role: string(rbac.RoleConsultor), UnitID: 1}
)

func TestFullApprovalFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assignment := f.assignments.add(1)

	ev, err := f.svc.Create(ctx, responsavel, CreateInput{
		AssignmentID: assignment.ID,
		Tipo:         TipoTexto,
		Content:      "Encarregado nomeado pela portaria 12/2026.",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRascunho, ev.Status)
	require.Equal(t, int64(1), ev.UnitID)

	status, err := f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusEmAnaliseGestor, status)
	require.Equal(t, []obligations.Situacao{obligations.SituacaoAguardandoAprovacaoGestor}, f.assignments.recomputed)

	status, err = f.svc.DecideGestor(ctx, gestor, ev.ID, true, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusEmAnaliseACR, status)

	status, err = f.svc.DecideACR(ctx, acr, ev.ID, true, "", workflow.OutcomeAtendeIntegralmente)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAprovadoACR, status)

	stored, err := f.svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAprovadoACR, stored.Status)
	require.Equal(t, workflow.OutcomeAtendeIntegralmente, stored.Final)

	got, err := f.assignments.GetAssignment(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, obligations.SituacaoAtendeIntegralmente, got.Situacao)

	entries, err := f.svc.History(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, shared.HistorySubmit, entries[0].Action)
	require.Equal(t, workflow.GateGestor, entries[1].Gate)
	require.Equal(t, workflow.GateACR, entries[2].Gate)
	require.Equal(t, shared.HistoryApprove, entries[2].Action)

	require.Equal(t, 1, f.observer.counts["EVIDENCIA/submit"])
	require.Equal(t, 1, f.observer.counts["EVIDENCIA/decide_gestor"])
	require.Equal(t, 1, f.observer.counts["EVIDENCIA/decide_acr"])
}

func TestRevisionRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assignment := f.assignments.add(1)

	ev, err := f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: TipoLink, Content: "https://intranet/ata"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)

	status, err := f.svc.DecideGestor(ctx, gestor, ev.ID, false, "faltou a ata assinada")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRevisaoSolicitadaGestor, status)

	// The unit corrects the record and resubmits to the same gate.
	_, err = f.svc.Revise(ctx, responsavel, ev.ID, TipoArquivo, "s3://evidencias/ata-assinada.pdf")
	require.NoError(t, err)
	status, err = f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusEmAnaliseGestor, status)

	events := f.sink.Events()
	require.NotEmpty(t, events)
	var sawRevision bool
	for _, e := range events {
		if e.EventKind == notify.EventRevisionRequested {
			sawRevision = true
		}
	}
	require.True(t, sawRevision)
}

func TestGestorDecisionRequiresNotesOnRefusal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assignment := f.assignments.add(1)

	ev, err := f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: TipoTexto, Content: "x"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)

	_, err = f.svc.DecideGestor(ctx, gestor, ev.ID, false, "   ")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestACRApprovalRequiresVerdict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assignment := f.assignments.add(1)

	ev, err := f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: TipoTexto, Content: "x"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)
	_, err = f.svc.DecideGestor(ctx, gestor, ev.ID, true, "")
	require.NoError(t, err)

	_, err = f.svc.DecideACR(ctx, acr, ev.ID, true, "", "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUnitScoping(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assignment := f.assignments.add(1)

	ev, err := f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: TipoTexto, Content: "x"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)

	// A manager from another unit cannot decide here.
	_, err = f.svc.DecideGestor(ctx, otherGestor, ev.ID, true, "")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	// Nor can a unit member create evidence against a foreign assignment.
	foreign := f.assignments.add(2)
	_, err = f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: foreign.ID, Tipo: TipoTexto, Content: "x"})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	// ACR is unit-independent.
	_, err = f.svc.DecideGestor(ctx, gestor, ev.ID, true, "")
	require.NoError(t, err)
	_, err = f.svc.DecideACR(ctx, acr, ev.ID, true, "", workflow.OutcomeNaoSeAplica)
	require.NoError(t, err)
}

func TestDuplicateDecisionIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assignment := f.assignments.add(1)

	ev, err := f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: TipoTexto, Content: "x"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)
	_, err = f.svc.DecideGestor(ctx, gestor, ev.ID, true, "")
	require.NoError(t, err)

	historyBefore := len(f.history.entries)
	recomputedBefore := len(f.assignments.recomputed)

	// Re-delivery of the same approval reports the resting state without
	// touching history, notifications or the assignment.
	status, err := f.svc.DecideGestor(ctx, gestor, ev.ID, true, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusEmAnaliseACR, status)
	require.Len(t, f.history.entries, historyBefore)
	require.Len(t, f.assignments.recomputed, recomputedBefore)
}

func TestRejectScopes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assignment := f.assignments.add(1)

	ev, err := f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: TipoTexto, Content: "x"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)
	_, err = f.svc.DecideGestor(ctx, gestor, ev.ID, true, "")
	require.NoError(t, err)

	// The manager gate is already passed; only ACR may reject now.
	_, err = f.svc.Reject(ctx, gestor, ev.ID, "insuficiente")
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = f.svc.Reject(ctx, responsavel, ev.ID, "insuficiente")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	status, err := f.svc.Reject(ctx, acr, ev.ID, "não comprova o atendimento")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejeitado, status)

	got, err := f.assignments.GetAssignment(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, obligations.SituacaoNaoConforme, got.Situacao)
}

func TestCreateAndReviseValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assignment := f.assignments.add(1)

	_, err := f.svc.Create(ctx, consultor, CreateInput{AssignmentID: assignment.ID, Tipo: TipoTexto, Content: "x"})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: "video", Content: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: TipoTexto, Content: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	ev, err := f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: TipoTexto, Content: "x"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)

	// Under analysis the content is frozen.
	_, err = f.svc.Revise(ctx, responsavel, ev.ID, TipoTexto, "alterado")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRecomputeRunsInsideTransitionScope(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assignment := f.assignments.add(1)

	ev, err := f.svc.Create(ctx, responsavel, CreateInput{AssignmentID: assignment.ID, Tipo: TipoTexto, Content: "Inventário de dados concluído."})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, responsavel, ev.ID)
	require.NoError(t, err)
	_, err = f.svc.DecideGestor(ctx, gestor, ev.ID, true, "")
	require.NoError(t, err)
	_, err = f.svc.DecideACR(ctx, acr, ev.ID, true, "", workflow.OutcomeAtendeIntegralmente)
	require.NoError(t, err)

	// Every recompute must share the status write's transaction so the
	// situacao can never outlive a transition that failed to commit.
	require.Len(t, f.assignments.inTx, 3)
	for i, in := range f.assignments.inTx {
		require.True(t, in, "recompute %d escaped the transaction scope", i)
	}
}
