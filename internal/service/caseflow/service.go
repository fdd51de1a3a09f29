// Package caseflow owns the case lifecycle: creation, state transitions
// along the fixed pipeline graph, and the append-only history log.
package caseflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	"github.com/vespl/caseflow-api/internal/service/sequence"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
	"github.com/vespl/caseflow-api/pkg/logger"
	"github.com/vespl/caseflow-api/pkg/messaging"
)

type Service struct {
	cases       repository.CaseRepository
	transitions repository.TransitionRepository
	sequences   *sequence.Service
	broker      messaging.Broker
	clock       clock.Clock
	logger      *logger.Logger
}

func NewService(
	cases repository.CaseRepository,
	transitions repository.TransitionRepository,
	sequences *sequence.Service,
	broker messaging.Broker,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	if broker == nil {
		broker = messaging.Noop{}
	}
	return &Service{
		cases:       cases,
		transitions: transitions,
		sequences:   sequences,
		broker:      broker,
		clock:       clk,
		logger:      log,
	}
}

// CreateCaseInput carries the fields needed to open a case as an enquiry.
type CreateCaseInput struct {
	Title      string
	Priority   model.Priority
	ClientID   uuid.UUID
	AssigneeID uuid.UUID
	ActorID    uuid.UUID
}

// CreateCase opens a new case in the enquiry state, drawing its case
// number from the sequence generator.
func (s *Service) CreateCase(ctx context.Context, input CreateCaseInput) (*model.Case, error) {
	if input.Priority == "" {
		input.Priority = model.PriorityMedium
	}
	if !model.IsValidPriority(input.Priority) {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown priority %q", input.Priority), nil)
	}
	if input.ClientID == uuid.Nil {
		return nil, apperrors.NewValidation("client id is required", nil)
	}
	if input.AssigneeID == uuid.Nil {
		return nil, apperrors.NewValidation("assignee id is required", nil)
	}

	number, err := s.sequences.NextDocumentNumber(ctx, model.DocEnquiry)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	c := &model.Case{
		CaseNumber:              number,
		CurrentState:            model.StateEnquiry,
		Status:                  model.CaseStatusActive,
		Priority:                input.Priority,
		ExpectedStateCompletion: now.Add(model.StateDuration(model.StateEnquiry)),
		ClientID:                input.ClientID,
		AssigneeID:              input.AssigneeID,
		Title:                   input.Title,
	}
	c.ID = uuid.New()
	c.CreatedAt = now
	c.UpdatedAt = now

	tr := &model.CaseStateTransition{
		ID:            uuid.New(),
		CaseID:        c.ID,
		ReferenceType: model.RefCase,
		ReferenceID:   c.ID,
		ToState:       model.StateEnquiry,
		Note:          "case opened",
		ActorID:       input.ActorID,
		CreatedAt:     now,
	}

	if err := s.cases.Create(ctx, c, tr); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	s.logger.Info("case created", "case_number", c.CaseNumber, "case_id", c.ID.String())
	return c, nil
}

// Transition moves a case along one edge of the pipeline graph, appends
// the history entry and recomputes the deadline for the new state. The
// case update and the history append commit as one atomic unit.
func (s *Service) Transition(ctx context.Context, caseID uuid.UUID, toState model.CaseState, actorID uuid.UUID, note string) (*model.CaseStateTransition, error) {
	if !model.IsValidState(toState) {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown state %q", toState), nil)
	}

	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() || model.IsTerminal(c.CurrentState) {
		return nil, apperrors.NewCaseClosed(c.CaseNumber)
	}
	if !model.CanTransition(c.CurrentState, toState) {
		return nil, apperrors.NewInvalidTransition(string(c.CurrentState), string(toState))
	}

	now := s.clock.Now()
	fromState := c.CurrentState

	c.CurrentState = toState
	c.ExpectedStateCompletion = now.Add(model.StateDuration(toState))
	// Entering a new state starts a fresh SLA window.
	c.SLABreached = false
	c.UpdatedAt = now
	if toState == model.StateClosed {
		c.Status = model.CaseStatusCompleted
	}

	tr := &model.CaseStateTransition{
		ID:            uuid.New(),
		CaseID:        c.ID,
		ReferenceType: model.RefCase,
		ReferenceID:   c.ID,
		FromState:     fromState,
		ToState:       toState,
		Note:          note,
		ActorID:       actorID,
		CreatedAt:     now,
	}

	if err := s.cases.ApplyTransition(ctx, c, tr); err != nil {
		return nil, fmt.Errorf("failed to apply transition: %w", err)
	}

	if err := s.broker.Publish(ctx, messaging.ChannelCaseTransitioned, map[string]interface{}{
		"case_id":     c.ID,
		"case_number": c.CaseNumber,
		"from_state":  fromState,
		"to_state":    toState,
		"actor_id":    actorID,
	}); err != nil {
		s.logger.Error(err, "failed to publish transition event", "case_id", c.ID.String())
	}

	s.logger.Info("case transitioned",
		"case_number", c.CaseNumber,
		"from", string(fromState),
		"to", string(toState))
	return tr, nil
}

// RecordHistory appends a free-form status note against any case-bearing
// document without changing the case state.
func (s *Service) RecordHistory(ctx context.Context, refType model.ReferenceType, refID uuid.UUID, statusLabel, note string, actorID uuid.UUID) (*model.CaseStateTransition, error) {
	if !model.IsValidReferenceType(refType) {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown reference type %q", refType), nil)
	}
	if statusLabel == "" {
		return nil, apperrors.NewValidation("status label is required", nil)
	}

	var caseID uuid.UUID
	if refType == model.RefCase {
		c, err := s.cases.Get(ctx, refID)
		if err != nil {
			return nil, err
		}
		caseID = c.ID
	}

	tr := &model.CaseStateTransition{
		ID:            uuid.New(),
		CaseID:        caseID,
		ReferenceType: refType,
		ReferenceID:   refID,
		StatusLabel:   statusLabel,
		Note:          note,
		ActorID:       actorID,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.transitions.Append(ctx, tr); err != nil {
		return nil, fmt.Errorf("failed to record history: %w", err)
	}
	return tr, nil
}

// GetHistory returns the ordered history for any case-bearing document,
// oldest first.
func (s *Service) GetHistory(ctx context.Context, refType model.ReferenceType, refID uuid.UUID) ([]*model.CaseStateTransition, error) {
	if !model.IsValidReferenceType(refType) {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown reference type %q", refType), nil)
	}
	return s.transitions.ListByReference(ctx, refType, refID)
}

// GetCaseHistory returns the full history for a case id, oldest first.
func (s *Service) GetCaseHistory(ctx context.Context, caseID uuid.UUID) ([]*model.CaseStateTransition, error) {
	if _, err := s.cases.Get(ctx, caseID); err != nil {
		return nil, err
	}
	return s.transitions.ListByCase(ctx, caseID)
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	return s.cases.Get(ctx, id)
}

func (s *Service) ListCases(ctx context.Context, filter model.CaseFilter) ([]*model.Case, error) {
	return s.cases.List(ctx, filter)
}
