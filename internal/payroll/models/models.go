// Package models defines the payroll-domain entities: batches, timecards,
// punches, and the derived lock status.
package models

import (
	"time"

	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
)

// BatchStatus is the lifecycle state of a payroll batch.
type BatchStatus string

const (
	BatchStatusDraft      BatchStatus = "draft"
	BatchStatusSubmitted  BatchStatus = "submitted"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusProcessed  BatchStatus = "processed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// Locks reports whether a batch in this status freezes its member timecards.
func (s BatchStatus) Locks() bool {
	return s == BatchStatusProcessing || s == BatchStatusProcessed
}

// CanTransitionTo enforces the transition model:
//
//	draft → submitted → processing → processed
//
// with submitted → cancelled and processing → cancelled as the only reversing
// transitions. processed is terminal; amendments to processed time happen
// through a separate adjustment workflow, never by reverting the batch.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	switch s {
	case BatchStatusDraft:
		return next == BatchStatusSubmitted
	case BatchStatusSubmitted:
		return next == BatchStatusProcessing || next == BatchStatusCancelled
	case BatchStatusProcessing:
		return next == BatchStatusProcessed || next == BatchStatusCancelled
	default:
		return false
	}
}

// PayrollBatch groups timecards submitted together for payroll processing.
//
// Invariants:
//   - Status transitions are monotonic except the cancelled branch
//   - Once processed, a batch never silently reverts
//   - A member timecard of a processing/processed batch is never editable
type PayrollBatch struct {
	ID                id.BatchID      `json:"id"`
	Status            BatchStatus     `json:"status"`
	MemberTimecardIDs []id.TimecardID `json:"memberTimecardIds"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// HasMember reports whether the timecard belongs to this batch.
func (b *PayrollBatch) HasMember(timecardID id.TimecardID) bool {
	for _, member := range b.MemberTimecardIDs {
		if member == timecardID {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change.
func (b *PayrollBatch) Transition(next BatchStatus, now time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeConflict, "batch cannot move from "+string(b.Status)+" to "+string(next))
	}
	b.Status = next
	b.UpdatedAt = now
	return nil
}

// PunchKind distinguishes clock-in from clock-out entries.
type PunchKind string

const (
	PunchIn  PunchKind = "in"
	PunchOut PunchKind = "out"
)

// Punch is a single clock event on a timecard.
type Punch struct {
	ID   id.PunchID `json:"id"`
	Kind PunchKind  `json:"kind"`
	At   time.Time  `json:"at"`
	Note string     `json:"note,omitempty"`
}

// Timecard is one user's punches for a pay period. Editable is derived from
// current batch state at check time and never stored.
type Timecard struct {
	ID          id.TimecardID `json:"id"`
	UserID      id.UserID     `json:"userId"`
	PeriodStart time.Time     `json:"periodStart"`
	PeriodEnd   time.Time     `json:"periodEnd"`
	Punches     []Punch       `json:"punches"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// FindPunch returns the punch with the given ID, or nil.
func (t *Timecard) FindPunch(punchID id.PunchID) *Punch {
	for i := range t.Punches {
		if t.Punches[i].ID == punchID {
			return &t.Punches[i]
		}
	}
	return nil
}

// LockStatus is the derived answer to "is this timecard frozen by payroll?".
type LockStatus struct {
	Locked      bool        `json:"locked"`
	BatchID     *id.BatchID `json:"batchId,omitempty"`
	BatchStatus BatchStatus `json:"batchStatus,omitempty"`
}
