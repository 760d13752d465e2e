package obligations

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conformia/conformia/internal/workflow"
)

func TestResolveSituacao(t *testing.T) {
	cases := []struct {
		name   string
		status workflow.Status
		final  workflow.FinalOutcome
		want   Situacao
	}{
		{"draft", workflow.StatusRascunho, "", SituacaoAguardandoEvidencia},
		{"manager gate", workflow.StatusEmAnaliseGestor, "", SituacaoAguardandoAprovacaoGestor},
		{"manager revision", workflow.StatusRevisaoSolicitadaGestor, "", SituacaoAguardandoEvidencia},
		{"acr gate", workflow.StatusEmAnaliseACR, "", SituacaoAguardandoAprovacaoACR},
		{"acr revision", workflow.StatusRevisaoSolicitadaACR, "", SituacaoAguardandoEvidencia},
		{"approved full", workflow.StatusAprovadoACR, workflow.OutcomeAtendeIntegralmente, SituacaoAtendeIntegralmente},
		{"approved partial", workflow.StatusAprovadoACR, workflow.OutcomeAtendeParcialmente, SituacaoAtendeParcialmente},
		{"approved n/a", workflow.StatusAprovadoACR, workflow.OutcomeNaoSeAplica, SituacaoNaoSeAplica},
		{"approved missing verdict", workflow.StatusAprovadoACR, "", SituacaoAguardandoAprovacaoACR},
		{"rejected", workflow.StatusRejeitado, "", SituacaoNaoConforme},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ResolveSituacao(tc.status, tc.final))
		})
	}
}

func TestAggregateChildrenPrecedence(t *testing.T) {
	require.Equal(t, AggregateEmAndamento, AggregateChildren(nil))

	require.Equal(t, AggregateNaoConforme, AggregateChildren([]Situacao{
		SituacaoAtendeIntegralmente, SituacaoNaoConforme, SituacaoAguardandoEvidencia,
	}))

	require.Equal(t, AggregateEmAndamento, AggregateChildren([]Situacao{
		SituacaoAtendeIntegralmente, SituacaoAguardandoAprovacaoACR,
	}))

	require.Equal(t, AggregateConforme, AggregateChildren([]Situacao{
		SituacaoAtendeIntegralmente, SituacaoAtendeParcialmente, SituacaoNaoSeAplica,
	}))
}
