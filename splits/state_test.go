package splits_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mangrobe.dev/streamsource/splits"
)

func TestState_StartsAtSplitCursor(t *testing.T) {
	state := splits.NewState(splits.New("T", 1, "c3"))
	assert.Equal(t, "c3", state.CurrentCommitID())
	assert.True(t, state.PollDue(time.Unix(0, 0)), "new state is immediately pollable")
}

func TestState_ToSplitCarriesProgress(t *testing.T) {
	original := splits.New("T", 1, "c3")
	state := splits.NewState(original)
	state.Advance("c7")

	assert.Equal(t, splits.New("T", 1, "c7"), state.ToSplit())
	assert.Equal(t, original, state.Split(), "original descriptor is unchanged")
}

func TestState_DeferPoll(t *testing.T) {
	now := time.Unix(100, 0)
	state := splits.NewState(splits.New("T", 1, ""))
	state.DeferPoll(now.Add(5 * time.Second))

	assert.False(t, state.PollDue(now))
	assert.False(t, state.PollDue(now.Add(4999*time.Millisecond)))
	assert.True(t, state.PollDue(now.Add(5*time.Second)))
}
