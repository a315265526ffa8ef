package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

func TestNewDraft(t *testing.T) {
	d := NewDraft("acc-1", t0)

	assert.True(t, IsTempID(d.ID))
	assert.Equal(t, "acc-1", d.AccountID)
	assert.Equal(t, t0, d.CreatedAt)
	assert.Equal(t, t0, d.UpdatedAt)
	require.NoError(t, ValidateDraft(d))

	assert.ErrorIs(t, ValidateDraft(Entry{ID: "x"}), ErrInvalidDraft)
}

func TestPatch_Apply_DoesNotMutateInput(t *testing.T) {
	orig := Entry{ID: "e1", Belief: "old", DisputeHistory: []DisputeAttempt{{Dispute: "d1", CreatedAt: t0}}}

	got := Patch{
		Belief:        Ptr("new"),
		AppendDispute: &DisputeAttempt{Dispute: "d2", CreatedAt: at(1)},
		IsDeleted:     Ptr(true),
	}.Apply(orig)

	assert.Equal(t, "new", got.Belief)
	assert.True(t, got.IsDeleted)
	assert.Len(t, got.DisputeHistory, 2)

	assert.Equal(t, "old", orig.Belief)
	assert.False(t, orig.IsDeleted)
	assert.Len(t, orig.DisputeHistory, 1)
}

func TestAsPatch_RoundTrip(t *testing.T) {
	src := Entry{
		ID: "e1", Adversity: "a", Belief: "b", Consequence: "c", Dispute: "d", Energy: "e",
		AIResponse: &AIAnalysis{Payload: json.RawMessage(`{"k":1}`), CreatedAt: t0},
	}
	got := src.AsPatch().Apply(Entry{ID: "e1"})

	assert.Equal(t, src.Adversity, got.Adversity)
	assert.Equal(t, src.Energy, got.Energy)
	require.NotNil(t, got.AIResponse)
	assert.JSONEq(t, `{"k":1}`, string(got.AIResponse.Payload))
}

func TestNewerThan_AndAINewerThan(t *testing.T) {
	old := Entry{UpdatedAt: at(0)}
	newer := Entry{UpdatedAt: at(1)}

	assert.True(t, newer.NewerThan(old))
	assert.False(t, old.NewerThan(newer))
	assert.False(t, old.NewerThan(old))

	withAI := Entry{AIResponse: &AIAnalysis{CreatedAt: at(5)}}
	olderAI := Entry{AIResponse: &AIAnalysis{CreatedAt: at(2)}}
	assert.True(t, withAI.AINewerThan(Entry{}))
	assert.True(t, withAI.AINewerThan(olderAI))
	assert.False(t, olderAI.AINewerThan(withAI))
	assert.False(t, Entry{}.AINewerThan(withAI))
}

func TestVisible_FiltersAndSorts(t *testing.T) {
	in := []Entry{
		{ID: "e3", CreatedAt: at(5)},
		{ID: "e2", CreatedAt: at(20), IsDeleted: true},
		{ID: "e1", CreatedAt: at(10)},
		{ID: "e0", CreatedAt: at(10)},
	}

	got := Visible(in)

	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"e0", "e1", "e3"}, ids)
}

func TestClone_IsDeep(t *testing.T) {
	src := Entry{AIResponse: &AIAnalysis{Payload: json.RawMessage(`{}`)}, DisputeHistory: []DisputeAttempt{{Dispute: "x"}}}
	c := src.Clone()
	c.AIResponse.Payload[0] = '['
	c.DisputeHistory[0].Dispute = "y"

	assert.Equal(t, `{}`, string(src.AIResponse.Payload))
	assert.Equal(t, "x", src.DisputeHistory[0].Dispute)
}
