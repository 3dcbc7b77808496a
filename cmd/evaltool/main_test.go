package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cordexkit/evaltools/internal/domain"
)

type captureSink struct {
	verdicts []domain.Verdict
}

func (c *captureSink) Publish(_ context.Context, vs []domain.Verdict) error {
	c.verdicts = append(c.verdicts, vs...)
	return nil
}

func TestVerdictRecorderCountsRejectionsByStage(t *testing.T) {
	downstream := &captureSink{}
	recorder := newVerdictRecorder(downstream)

	verdicts := []domain.Verdict{
		{InstanceID: "a", Outcome: domain.OutcomePass, Time: time.Now()},
		{InstanceID: "b", Outcome: domain.OutcomeRejected, Stage: domain.StageOpen, Reason: "no such file"},
		{InstanceID: "c", Outcome: domain.OutcomeRejected, Stage: domain.StageOpen, Reason: "no such file"},
		{InstanceID: "d", Outcome: domain.OutcomeRejected, Stage: domain.StageVerify, Reason: "unsupported grid mapping"},
		{InstanceID: "e", Outcome: domain.OutcomeFixed, FixesApplied: []string{"grid-mapping-name"}},
	}
	require.NoError(t, recorder.Publish(context.Background(), verdicts))

	assert.Equal(t, map[string]int{"open": 2, "verify": 1}, recorder.rejections())
	// The downstream sink sees every verdict, not just rejections.
	assert.Len(t, downstream.verdicts, 5)
}

func TestVerdictRecorderWithoutDownstreamSink(t *testing.T) {
	recorder := newVerdictRecorder(nil)
	require.NoError(t, recorder.Publish(context.Background(), []domain.Verdict{
		{InstanceID: "a", Outcome: domain.OutcomeRejected, Stage: domain.StageMerge},
	}))
	assert.Equal(t, map[string]int{"merge": 1}, recorder.rejections())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"tas", "pr"}, splitList("tas, pr"))
	assert.Equal(t, []string{"tas"}, splitList("tas,,"))
	assert.Nil(t, splitList(" , "))
}
