package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conformia/conformia/internal/shared"
)

func TestSubmitFromDraft(t *testing.T) {
	res, err := Submit(StatusRascunho)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, StatusEmAnaliseGestor, res.Status)
}

func TestSubmitResubmission(t *testing.T) {
	res, err := Submit(StatusRevisaoSolicitadaGestor)
	require.NoError(t, err)
	require.Equal(t, StatusEmAnaliseGestor, res.Status)

	res, err = Submit(StatusRevisaoSolicitadaACR)
	require.NoError(t, err)
	require.Equal(t, StatusEmAnaliseACR, res.Status)
}

func TestSubmitDuplicateIsNoop(t *testing.T) {
	res, err := Submit(StatusEmAnaliseGestor)
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Equal(t, StatusEmAnaliseGestor, res.Status)
}

func TestSubmitFromTerminalFails(t *testing.T) {
	_, err := Submit(StatusAprovadoACR)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = Submit(StatusRejeitado)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDecideGestorApproveChainsIntoACRQueue(t *testing.T) {
	res, err := DecideGestor(StatusEmAnaliseGestor, Decision{Approved: true})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, StatusEmAnaliseACR, res.Status)
}

func TestDecideGestorRefusalRequiresNotes(t *testing.T) {
	_, err := DecideGestor(StatusEmAnaliseGestor, Decision{Approved: false, Notes: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	res, err := DecideGestor(StatusEmAnaliseGestor, Decision{Approved: false, Notes: "faltou anexo"})
	require.NoError(t, err)
	require.Equal(t, StatusRevisaoSolicitadaGestor, res.Status)
}

func TestDecideGestorDuplicateIsNoop(t *testing.T) {
	res, err := DecideGestor(StatusEmAnaliseACR, Decision{Approved: true})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Equal(t, StatusEmAnaliseACR, res.Status)

	res, err = DecideGestor(StatusRevisaoSolicitadaGestor, Decision{Approved: false, Notes: "x"})
	require.NoError(t, err)
	require.False(t, res.Applied)
}

func TestDecideGestorWrongStateFails(t *testing.T) {
	_, err := DecideGestor(StatusRascunho, Decision{Approved: true})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDecideACRApproveRequiresFinalOutcome(t *testing.T) {
	for _, current := range []Status{StatusRascunho, StatusEmAnaliseGestor, StatusEmAnaliseACR, StatusAprovadoACR} {
		_, err := DecideACR(current, Decision{Approved: true})
		require.ErrorIs(t, err, shared.ErrValidation, "status %s", current)
	}
}

func TestDecideACRApprove(t *testing.T) {
	res, err := DecideACR(StatusEmAnaliseACR, Decision{Approved: true, Final: OutcomeAtendeIntegralmente})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, StatusAprovadoACR, res.Status)
}

func TestDecideACRRefusalRequiresNotes(t *testing.T) {
	_, err := DecideACR(StatusEmAnaliseACR, Decision{Approved: false})
	require.ErrorIs(t, err, shared.ErrValidation)

	res, err := DecideACR(StatusEmAnaliseACR, Decision{Approved: false, Notes: "evidência insuficiente"})
	require.NoError(t, err)
	require.Equal(t, StatusRevisaoSolicitadaACR, res.Status)
}

func TestDecideACRDuplicateIsNoop(t *testing.T) {
	res, err := DecideACR(StatusAprovadoACR, Decision{Approved: true, Final: OutcomeNaoSeAplica})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Equal(t, StatusAprovadoACR, res.Status)
}

func TestRejectFromAnalysis(t *testing.T) {
	for _, current := range []Status{StatusEmAnaliseGestor, StatusEmAnaliseACR} {
		res, err := Reject(current, "fora de escopo")
		require.NoError(t, err)
		require.Equal(t, StatusRejeitado, res.Status)
	}

	_, err := Reject(StatusEmAnaliseACR, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = Reject(StatusRascunho, "motivo")
	require.ErrorIs(t, err, shared.ErrInvalidState)

	res, err := Reject(StatusRejeitado, "motivo")
	require.NoError(t, err)
	require.False(t, res.Applied)
}

func TestFinalOutcomeValid(t *testing.T) {
	require.True(t, OutcomeAtendeParcialmente.Valid())
	require.False(t, FinalOutcome("CONFORME").Valid())
	require.False(t, FinalOutcome("").Valid())
}
