package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageSelection, StageCollectingCard, true},
		{StageSelection, StageCollectingBank, true},
		{StageSelection, StageProcessing, false},
		{StageCollectingRedirect, StageProcessing, true},
		{StageCollectingRedirect, StageSelection, true},
		{StageCollectingCard, StageCollectingBank, false},
		{StageProcessing, StageSuccess, true},
		{StageProcessing, StageSelection, false},
		{StageSuccess, StageSelection, true},
		{StageSuccess, StageProcessing, false},
		{Stage("FAILURE"), StageSelection, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestEveryStageHasTransitions(t *testing.T) {
	for _, s := range Stages {
		assert.NotEmpty(t, AllowedTransitions[s], "stage %s is a dead end", s)
	}
}

func TestMethodCollectingStage(t *testing.T) {
	for _, m := range Methods {
		assert.True(t, m.Valid())
		stage := m.CollectingStage()
		assert.True(t, stage.Collecting(), "method %s", m)
		assert.True(t, CanTransition(StageSelection, stage))
	}

	assert.False(t, Method("crypto").Valid())
	assert.Equal(t, Stage(""), Method("crypto").CollectingStage())
	assert.False(t, StageProcessing.Collecting())
	assert.False(t, Stage("").Valid())
}
