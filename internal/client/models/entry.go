package models

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks ids minted for drafts before the entries service has
// assigned a canonical one.
const TempIDPrefix = "tmp-"

var ErrInvalidDraft = errors.New("draft must carry a temporary id and timestamps")

// NewDraft returns a draft stamped with a temporary id and the given time.
func NewDraft(accountID string, now time.Time) Entry {
	return Entry{
		ID:        TempIDPrefix + uuid.NewString(),
		AccountID: accountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTempID reports whether id was minted by NewDraft.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// ValidateDraft checks the shape Create expects.
func ValidateDraft(e Entry) error {
	if e.ID == "" || e.CreatedAt.IsZero() || e.UpdatedAt.IsZero() {
		return ErrInvalidDraft
	}
	return nil
}

// Clone returns a copy that shares no mutable state with e.
func (e Entry) Clone() Entry {
	c := e
	if e.AIResponse != nil {
		ai := *e.AIResponse
		ai.Payload = slices.Clone(e.AIResponse.Payload)
		c.AIResponse = &ai
	}
	c.DisputeHistory = slices.Clone(e.DisputeHistory)
	return c
}

// NewerThan reports whether e wins last-writer-wins against other.
func (e Entry) NewerThan(other Entry) bool {
	return e.UpdatedAt.After(other.UpdatedAt)
}

// AINewerThan reports whether e carries an AI analysis produced after
// other's (or other has none).
func (e Entry) AINewerThan(other Entry) bool {
	if e.AIResponse == nil {
		return false
	}
	if other.AIResponse == nil {
		return true
	}
	return e.AIResponse.CreatedAt.After(other.AIResponse.CreatedAt)
}

// Patch is a partial update. Nil fields are left untouched. DisputeHistory
// can only grow, through AppendDispute.
type Patch struct {
	Adversity   *string
	Belief      *string
	Consequence *string
	Dispute     *string
	Energy      *string

	AIResponse    *AIAnalysis
	AppendDispute *DisputeAttempt

	AccountID *string
	IsDeleted *bool
	UpdatedAt *time.Time
	Dirty     *bool
}

// Apply returns e with p applied. e itself is not modified.
func (p Patch) Apply(e Entry) Entry {
	out := e.Clone()
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&out.Adversity, p.Adversity)
	set(&out.Belief, p.Belief)
	set(&out.Consequence, p.Consequence)
	set(&out.Dispute, p.Dispute)
	set(&out.Energy, p.Energy)
	set(&out.AccountID, p.AccountID)

	if p.AIResponse != nil {
		ai := *p.AIResponse
		ai.Payload = slices.Clone(p.AIResponse.Payload)
		out.AIResponse = &ai
	}
	if p.AppendDispute != nil {
		out.DisputeHistory = append(out.DisputeHistory, *p.AppendDispute)
	}
	if p.IsDeleted != nil {
		out.IsDeleted = *p.IsDeleted
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = *p.UpdatedAt
	}
	if p.Dirty != nil {
		out.Dirty = *p.Dirty
	}
	return out
}

// AsPatch describes the whole user-editable content of e. History is not
// included because it is append-only.
func (e Entry) AsPatch() Patch {
	c := e.Clone()
	return Patch{
		Adversity:   &c.Adversity,
		Belief:      &c.Belief,
		Consequence: &c.Consequence,
		Dispute:     &c.Dispute,
		Energy:      &c.Energy,
		AIResponse:  c.AIResponse,
		AccountID:   &c.AccountID,
		IsDeleted:   &c.IsDeleted,
	}
}

// Ptr is a convenience for building patches.
func Ptr[T any](v T) *T { return &v }

// CompareEntries orders by CreatedAt descending, then ID ascending.
func CompareEntries(a, b Entry) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SortEntries sorts in place using CompareEntries.
func SortEntries(entries []Entry) {
	slices.SortFunc(entries, CompareEntries)
}

// Visible drops soft-deleted entries and returns the rest sorted.
func Visible(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.IsDeleted {
			out = append(out, e)
		}
	}
	SortEntries(out)
	return out
}
