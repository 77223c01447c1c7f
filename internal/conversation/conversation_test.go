// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/model"
)

func countType(h model.History, typ model.TurnType) int {
	n := 0
	for _, t := range h {
		if t.Type == typ {
			n++
		}
	}
	return n
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestNew_StartsIdleWithGreeting(t *testing.T) {
	c := New()
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Last().IsGreeting())
	assert.True(t, c.CanSubmit())
}

func TestSubmitText_RejectsEmpty(t *testing.T) {
	c := New()
	_, err := c.SubmitText("   \t")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, 1, c.Len())
}

func TestSuccessfulSubmission(t *testing.T) {
	c := New()

	_, err := c.SubmitText("How much did the dryer use?")
	require.NoError(t, err)
	assert.Equal(t, StateUserTurn, c.State())
	assert.True(t, c.NeedsResponse())

	req, err := c.BeginResponse()
	require.NoError(t, err)
	assert.Equal(t, StateLoading, c.State())
	assert.Equal(t, model.LoadingText, c.Last().Text)

	// No second call while one is pending.
	_, err = c.BeginResponse()
	assert.ErrorIs(t, err, ErrNoPendingTurn)
	_, err = c.SubmitText("again")
	assert.ErrorIs(t, err, ErrBusy)

	before := c.Len()
	answer, err := c.Resolve(req, "About 3 kWh per load.")
	require.NoError(t, err)

	h := c.History()
	assert.Equal(t, 0, countType(h, model.TypeLoading), "loading placeholder must be gone")
	assert.Equal(t, before, c.Len(), "placeholder replaced by exactly one answer")
	assert.Equal(t, answer.ID, c.Last().ID)
	assert.Equal(t, model.RoleAssistant, c.Last().Role)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, answer.ID, c.RevealID())
}

func TestFailedSubmission_BlocksUntilRetry(t *testing.T) {
	c := New()
	c.SubmitText("q")
	req, _ := c.BeginResponse()

	_, err := c.Fail(req, errors.New("backend unavailable"))
	require.NoError(t, err)

	h := c.History()
	assert.Equal(t, 1, countType(h, model.TypeError))
	assert.Equal(t, 0, countType(h, model.TypeLoading))
	assert.Equal(t, "backend unavailable", c.Last().Text)
	assert.Equal(t, StateErrored, c.State())
	assert.True(t, c.IsErrored())

	_, err = c.SubmitText("another")
	assert.ErrorIs(t, err, ErrBlocked)
	_, err = c.SubmitFile("a.csv", 1)
	assert.ErrorIs(t, err, ErrBlocked)

	require.NoError(t, c.Retry())
	assert.False(t, c.IsErrored())
}

func TestRetry_TextTurnReturnsToPreErrorState(t *testing.T) {
	c := New()
	c.SubmitText("q")
	preError := c.History()

	req, _ := c.BeginResponse()
	c.Fail(req, errors.New("timeout"))
	require.NoError(t, c.Retry())

	assert.True(t, c.History().Equal(preError))
	assert.True(t, c.NeedsResponse(), "the user turn is re-sent after retry")
}

func TestRetry_DropsFileTurn(t *testing.T) {
	c := New()
	c.SubmitText("q")
	req, _ := c.BeginResponse()
	c.Resolve(req, "a")
	preError := c.History()

	c.SubmitFile("usage.csv", 2048)
	req, _ = c.BeginResponse()
	c.Fail(req, errors.New("bad csv"))

	require.NoError(t, c.Retry())
	assert.True(t, c.History().Equal(preError))
	assert.Equal(t, StateIdle, c.State())
}

func TestRetry_NothingToRetry(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.Retry(), ErrNothingToRetry)
}

func TestStaleCompletionIgnored(t *testing.T) {
	c := New()
	c.SubmitText("q")
	req, _ := c.BeginResponse()

	c.Reset()
	_, err := c.Resolve(req, "late answer")
	assert.ErrorIs(t, err, ErrStaleCompletion)
	assert.Equal(t, 1, c.Len())

	_, err = c.Fail(req, errors.New("late"))
	assert.ErrorIs(t, err, ErrStaleCompletion)
}

func TestReset(t *testing.T) {
	c := New()
	c.SetChatID("5")
	c.SubmitText("q")
	gen := c.Generation()

	c.Reset()
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "", c.ChatID())
	assert.NotEqual(t, gen, c.Generation())
}

func TestLoad_NoReveal(t *testing.T) {
	c := New()
	h := model.History{model.NewGreeting(), model.NewUserText("q"), model.NewAnswer("a")}
	c.Load(h, "12")

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "12", c.ChatID())
	assert.Equal(t, "", c.RevealID())
	assert.Equal(t, StateIdle, c.State())
}

func TestLoad_EndingOnUserTurnNeedsResponse(t *testing.T) {
	c := New()
	c.Load(model.History{model.NewGreeting(), model.NewUserText("unanswered")}, "4")

	assert.Equal(t, StateUserTurn, c.State())
	assert.True(t, c.NeedsResponse())
}

func TestLoad_EndingOnErrorBlocksInput(t *testing.T) {
	c := New()
	c.Load(model.History{model.NewGreeting(), model.NewUserText("q"), model.NewError("backend down")}, "5")

	assert.Equal(t, StateErrored, c.State())
	assert.False(t, c.CanSubmit())
	_, err := c.SubmitText("again")
	assert.ErrorIs(t, err, ErrBlocked)

	require.NoError(t, c.Retry())
	assert.True(t, c.NeedsResponse())
}

func TestLoad_KeepsAnswerMatchingGreeting(t *testing.T) {
	c := New()
	c.Load(model.History{model.NewGreeting(), model.NewUserText("hello"), model.NewAnswer(model.GreetingText)}, "6")

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.NeedsResponse())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "user-turn-appended", StateUserTurn.String())
}

// =============================================================================
// REMOTE CALL SELECTION
// =============================================================================

func TestSelect_TextModes(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantMode  api.Mode
		wantQuery string
	}{
		{"plain", "How can I save energy?", api.ModePhi, "How can I save energy?"},
		{"marker prefix", "/file which day peaked?", api.ModeTapas, "which day peaked?"},
		{"marker suffix", "total kWh in March /file", api.ModeTapas, "total kWh in March"},
		{"fullwidth marker", "／file total", api.ModeTapas, "total"},
		{"padded", "  hi  ", api.ModePhi, "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := model.History{model.NewGreeting(), model.NewUserText(tt.text)}
			req, err := Select(h)
			require.NoError(t, err)
			assert.Equal(t, KindChat, req.Kind)
			assert.Equal(t, tt.wantMode, req.Chat.Type)
			assert.Equal(t, tt.wantQuery, req.Chat.Query)
		})
	}
}

func TestSelect_PrevChat(t *testing.T) {
	// After the greeting there is no context.
	h := model.History{model.NewGreeting(), model.NewUserText("first")}
	req, err := Select(h)
	require.NoError(t, err)
	assert.Empty(t, req.Chat.PrevChat)

	// Later turns carry the previous answer.
	h = append(h, model.NewAnswer("answer one"), model.NewUserText("second"))
	req, err = Select(h)
	require.NoError(t, err)
	assert.Equal(t, "answer one", req.Chat.PrevChat)
}

func TestSelect_PrevChatMatchingGreeting(t *testing.T) {
	h := model.History{
		model.NewGreeting(),
		model.NewUserText("hello"),
		model.NewAnswer(model.GreetingText),
		model.NewUserText("tips for my heater?"),
	}
	req, err := Select(h)
	require.NoError(t, err)
	assert.Equal(t, model.GreetingText, req.Chat.PrevChat)
}

func TestSelect_File(t *testing.T) {
	h := model.History{model.NewGreeting(), model.NewUserFile("meter.csv", 900)}
	req, err := Select(h)
	require.NoError(t, err)
	assert.Equal(t, KindUpload, req.Kind)
	assert.Equal(t, "meter.csv", req.File.Name)
	assert.EqualValues(t, 900, req.File.Size)
}

func TestSelect_RequiresUserTurn(t *testing.T) {
	_, err := Select(model.NewHistory())
	assert.ErrorIs(t, err, ErrNoPendingTurn)
}
