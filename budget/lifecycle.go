package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUISITION TRANSITIONS
// =============================================================================

var requisitionTransitions = map[RequisitionStatus][]RequisitionStatus{
	RequisitionDraft:        {RequisitionOpen, RequisitionCancelled},
	RequisitionOpen:         {RequisitionInterviewing, RequisitionCancelled},
	RequisitionInterviewing: {RequisitionOfferPending, RequisitionOpen, RequisitionCancelled},
	RequisitionOfferPending: {RequisitionFilled, RequisitionInterviewing, RequisitionCancelled},
	RequisitionFilled:       {},
	RequisitionCancelled:    {RequisitionDraft},
}

// CanTransition reports whether from -> to is an allowed requisition move.
func (s RequisitionStatus) CanTransition(to RequisitionStatus) bool {
	for _, allowed := range requisitionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the requisition to a new status.
func (r *Requisition) Transition(to RequisitionStatus, now time.Time) error {
	if !r.Status.CanTransition(to) {
		return &TransitionError{Kind: "requisition", ID: string(r.ID), From: string(r.Status), To: string(to)}
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}

// Fill marks the requisition FILLED after one of its offers is accepted.
// Acceptance wins over the pipeline state, so only a cancelled requisition
// is refused.
func (r *Requisition) Fill(now time.Time) error {
	if r.Status == RequisitionCancelled {
		return &TransitionError{Kind: "requisition", ID: string(r.ID), Action: "fill", From: string(r.Status)}
	}
	r.Status = RequisitionFilled
	r.UpdatedAt = now
	return nil
}

// RequisitionEdit holds the fields of a partial requisition update. Nil
// fields are left unchanged.
type RequisitionEdit struct {
	Title                *string
	Priority             *RequisitionPriority
	Status               *RequisitionStatus
	TargetStartMonth     *Month
	EstimatedMonthlyCost *decimal.Decimal
	HasCandidateReady    *bool
	Notes                *string
}

// Edit applies a partial update. A status change still has to be an allowed
// transition; nothing is modified when it is not.
func (r *Requisition) Edit(e RequisitionEdit, now time.Time) error {
	if e.Priority != nil && !e.Priority.Valid() {
		return &InvalidStatusError{Kind: "priority", Value: string(*e.Priority)}
	}
	if e.EstimatedMonthlyCost != nil && e.EstimatedMonthlyCost.IsNegative() {
		return fmt.Errorf("%w: estimated monthly cost %s", ErrNegativeAmount, e.EstimatedMonthlyCost)
	}
	if e.Status != nil && *e.Status != r.Status && !r.Status.CanTransition(*e.Status) {
		return &TransitionError{Kind: "requisition", ID: string(r.ID), From: string(r.Status), To: string(*e.Status)}
	}

	if e.Title != nil {
		r.Title = *e.Title
	}
	if e.Priority != nil {
		r.Priority = *e.Priority
	}
	if e.Status != nil {
		r.Status = *e.Status
	}
	if e.TargetStartMonth != nil {
		m := *e.TargetStartMonth
		r.TargetStartMonth = &m
	}
	if e.EstimatedMonthlyCost != nil {
		c := *e.EstimatedMonthlyCost
		r.EstimatedMonthlyCost = &c
	}
	if e.HasCandidateReady != nil {
		r.HasCandidateReady = *e.HasCandidateReady
	}
	if e.Notes != nil {
		r.Notes = *e.Notes
	}
	r.UpdatedAt = now
	return nil
}

// =============================================================================
// OFFER LIFECYCLE
// =============================================================================
//
//   DRAFT -> PROPOSED -> APPROVED -> SENT -> ACCEPTED
//                 \          \         \--> REJECTED
//                  \----------\--> HOLD
//   any non-terminal -> CANCELLED

func (o *Offer) requireStatus(action string, allowed ...OfferStatus) error {
	for _, s := range allowed {
		if o.Status == s {
			return nil
		}
	}
	return &TransitionError{Kind: "offer", ID: string(o.ID), Action: action, From: string(o.Status)}
}

// Terminal reports whether no further lifecycle moves are possible.
func (o *Offer) Terminal() bool {
	switch o.Status {
	case OfferAccepted, OfferRejected, OfferCancelled:
		return true
	}
	return false
}

func (o *Offer) Propose(now time.Time) error {
	if err := o.requireStatus("propose", OfferDraft); err != nil {
		return err
	}
	o.Status = OfferProposed
	o.UpdatedAt = now
	return nil
}

func (o *Offer) Approve(now time.Time) error {
	if err := o.requireStatus("approve", OfferProposed); err != nil {
		return err
	}
	o.Status = OfferApproved
	o.UpdatedAt = now
	return nil
}

func (o *Offer) Send(now time.Time) error {
	if err := o.requireStatus("send", OfferApproved); err != nil {
		return err
	}
	o.Status = OfferSent
	o.UpdatedAt = now
	return nil
}

// Hold parks a proposed or approved offer. until may be nil.
func (o *Offer) Hold(reason string, until *time.Time, now time.Time) error {
	if err := o.requireStatus("hold", OfferProposed, OfferApproved); err != nil {
		return err
	}
	o.Status = OfferHold
	o.HoldReason = reason
	o.HoldUntil = until
	o.UpdatedAt = now
	return nil
}

// Accept commits a sent offer. The final cost defaults to the proposed cost
// and start overrides the start date when non-nil. The caller marks the
// requisition FILLED.
func (o *Offer) Accept(final *decimal.Decimal, start *time.Time, now time.Time) error {
	if err := o.requireStatus("accept", OfferSent); err != nil {
		return err
	}
	o.Status = OfferAccepted
	cost := o.ProposedMonthlyCost
	if final != nil {
		cost = *final
	}
	o.FinalMonthlyCost = &cost
	if start != nil {
		s := *start
		o.StartDate = &s
	}
	o.UpdatedAt = now
	return nil
}

func (o *Offer) Reject(now time.Time) error {
	if err := o.requireStatus("reject", OfferSent); err != nil {
		return err
	}
	o.Status = OfferRejected
	o.UpdatedAt = now
	return nil
}

func (o *Offer) Cancel(now time.Time) error {
	if o.Terminal() {
		return &TransitionError{Kind: "offer", ID: string(o.ID), Action: "cancel", From: string(o.Status)}
	}
	o.Status = OfferCancelled
	o.UpdatedAt = now
	return nil
}

// OfferEdit holds the fields of a partial offer update. Nil fields are left
// unchanged.
type OfferEdit struct {
	CandidateName       *string
	ProposedMonthlyCost *decimal.Decimal
	FinalMonthlyCost    *decimal.Decimal
	StartDate           *time.Time
	Notes               *string
}

// Edit changes the terms of an offer still under negotiation: DRAFT,
// PROPOSED or HOLD. Once approved the terms are frozen.
func (o *Offer) Edit(e OfferEdit, now time.Time) error {
	if err := o.requireStatus("update", OfferDraft, OfferProposed, OfferHold); err != nil {
		return err
	}
	if e.ProposedMonthlyCost != nil && !e.ProposedMonthlyCost.IsPositive() {
		return fmt.Errorf("%w: proposed monthly cost %s", ErrNegativeAmount, e.ProposedMonthlyCost)
	}
	if e.FinalMonthlyCost != nil && e.FinalMonthlyCost.IsNegative() {
		return fmt.Errorf("%w: final monthly cost %s", ErrNegativeAmount, e.FinalMonthlyCost)
	}

	if e.CandidateName != nil {
		o.CandidateName = *e.CandidateName
	}
	if e.ProposedMonthlyCost != nil {
		o.ProposedMonthlyCost = *e.ProposedMonthlyCost
	}
	if e.FinalMonthlyCost != nil {
		c := *e.FinalMonthlyCost
		o.FinalMonthlyCost = &c
	}
	if e.StartDate != nil {
		d := *e.StartDate
		o.StartDate = &d
	}
	if e.Notes != nil {
		o.Notes = *e.Notes
	}
	o.UpdatedAt = now
	return nil
}

// ChangeStartDate is allowed in any status. A non-empty note is appended to
// the offer notes.
func (o *Offer) ChangeStartDate(start time.Time, note string, now time.Time) {
	o.StartDate = &start
	if note != "" {
		o.Notes = strings.TrimLeft(o.Notes+"\n[Date change] "+note, "\n")
	}
	o.UpdatedAt = now
}

// =============================================================================
// BUDGET LOCK
// =============================================================================

// SetApproved updates the approved amount of an unlocked budget.
func (b *Budget) SetApproved(amount decimal.Decimal, currency string, now time.Time) error {
	if b.Locked {
		return ErrBudgetLocked
	}
	b.ApprovedAmount = amount
	if currency != "" {
		b.Currency = currency
	}
	b.UpdatedAt = now
	return nil
}

// Lock freezes the budget month. Locking twice keeps the first lock.
func (b *Budget) Lock(actor string, now time.Time) {
	if b.Locked {
		return
	}
	b.Locked = true
	b.LockedBy = actor
	at := now
	b.LockedAt = &at
	b.UpdatedAt = now
}
