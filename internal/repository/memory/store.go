// Package memory provides mutex-guarded in-memory implementations of the
// repository interfaces. They back unit tests and the `store: memory`
// development mode; semantics mirror the postgres implementations.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
)

// Store aggregates every in-memory repository behind one lock domain.
type Store struct {
	mu          sync.Mutex
	cases       map[uuid.UUID]*model.Case
	transitions []*model.CaseStateTransition
	rules       map[uuid.UUID]*model.EscalationRule
	escalations []*model.CaseEscalation
	queue       map[uuid.UUID]*model.QueuedNotification
	templates   map[string]*model.NotificationTemplate
	sequences   map[string]int64
	daily       map[string]*model.DailyCaseMetrics
}

func NewStore() *Store {
	s := &Store{
		cases:     make(map[uuid.UUID]*model.Case),
		rules:     make(map[uuid.UUID]*model.EscalationRule),
		queue:     make(map[uuid.UUID]*model.QueuedNotification),
		templates: make(map[string]*model.NotificationTemplate),
		sequences: make(map[string]int64),
		daily:     make(map[string]*model.DailyCaseMetrics),
	}
	s.seedTemplates()
	return s
}

func (s *Store) seedTemplates() {
	for _, tmpl := range []*model.NotificationTemplate{
		{
			Code:    model.TemplateSLAWarning,
			Name:    "SLA Warning — 2 Hours",
			Subject: "SLA warning for case {{.case_number}}",
			Body:    "Case {{.case_number}} is due in {{.hours_until}} hour(s).",
		},
		{
			Code:    model.TemplateSLABreach,
			Name:    "SLA Breach Alert",
			Subject: "SLA breached for case {{.case_number}}",
			Body:    "Case {{.case_number}} missed its {{.state}} deadline.",
		},
		{
			Code:    model.TemplateEscalationNotice,
			Name:    "Escalation Notice",
			Subject: "Escalation (level {{.level}}) for case {{.case_number}}",
			Body:    "Case {{.case_number}} is {{.hours_overdue}} hour(s) overdue: {{.reason}}",
		},
	} {
		tmpl.ID = uuid.New()
		tmpl.CreatedAt = time.Now()
		tmpl.UpdatedAt = tmpl.CreatedAt
		s.templates[tmpl.Code] = tmpl
	}
}

// Cases returns the case repository view of the store.
func (s *Store) Cases() repository.CaseRepository { return (*caseStore)(s) }

// Transitions returns the history repository view of the store.
func (s *Store) Transitions() repository.TransitionRepository { return (*transitionStore)(s) }

// Escalations returns the escalation repository view of the store.
func (s *Store) Escalations() repository.EscalationRepository { return (*escalationStore)(s) }

// Queue returns the notification queue repository view of the store.
func (s *Store) Queue() repository.NotificationQueueRepository { return (*queueStore)(s) }

// Templates returns the template repository view of the store.
func (s *Store) Templates() repository.TemplateRepository { return (*templateStore)(s) }

// Sequences returns the sequence repository view of the store.
func (s *Store) Sequences() repository.SequenceRepository { return (*sequenceStore)(s) }

// Metrics returns the metrics repository view of the store.
func (s *Store) Metrics() repository.MetricsRepository { return (*metricsStore)(s) }

// AddRule seeds an escalation rule. Rules are configuration, so the store
// exposes a direct setter instead of a repository mutation.
func (s *Store) AddRule(rule *model.EscalationRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	s.rules[rule.ID] = rule
}

type caseStore Store

func (s *caseStore) Create(ctx context.Context, c *model.Case, tr *model.CaseStateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.cases[c.ID] = &cp
	trCp := *tr
	s.transitions = append(s.transitions, &trCp)
	return nil
}

func (s *caseStore) Get(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, apperrors.NewNotFound("case", nil)
	}
	cp := *c
	return &cp, nil
}

func (s *caseStore) List(ctx context.Context, filter model.CaseFilter) ([]*model.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Case
	for _, c := range s.cases {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.State != nil && c.CurrentState != *filter.State {
			continue
		}
		if filter.Priority != nil && c.Priority != *filter.Priority {
			continue
		}
		if filter.ClientID != nil && c.ClientID != *filter.ClientID {
			continue
		}
		if filter.Breached != nil && c.SLABreached != *filter.Breached {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *caseStore) ListDue(ctx context.Context, horizon time.Time) ([]*model.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Case
	for _, c := range s.cases {
		if c.Status != model.CaseStatusActive {
			continue
		}
		if c.ExpectedStateCompletion.After(horizon) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpectedStateCompletion.Before(out[j].ExpectedStateCompletion)
	})
	return out, nil
}

func (s *caseStore) ListBreached(ctx context.Context) ([]*model.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Case
	for _, c := range s.cases {
		if c.Status == model.CaseStatusActive && c.SLABreached {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpectedStateCompletion.Before(out[j].ExpectedStateCompletion)
	})
	return out, nil
}

func (s *caseStore) ApplyTransition(ctx context.Context, c *model.Case, tr *model.CaseStateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; !ok {
		return apperrors.NewNotFound("case", nil)
	}
	cp := *c
	s.cases[c.ID] = &cp
	trCp := *tr
	s.transitions = append(s.transitions, &trCp)
	return nil
}

func (s *caseStore) MarkBreached(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return false, apperrors.NewNotFound("case", nil)
	}
	if c.SLABreached {
		return false, nil
	}
	c.SLABreached = true
	c.UpdatedAt = at
	return true, nil
}

func (s *caseStore) CountByState(ctx context.Context) (map[model.CaseState]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[model.CaseState]int)
	for _, c := range s.cases {
		if c.Status == model.CaseStatusActive {
			counts[c.CurrentState]++
		}
	}
	return counts, nil
}

func (s *caseStore) CountBreached(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.cases {
		if c.Status == model.CaseStatusActive && c.SLABreached {
			n++
		}
	}
	return n, nil
}

type transitionStore Store

func (s *transitionStore) Append(ctx context.Context, tr *model.CaseStateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tr
	s.transitions = append(s.transitions, &cp)
	return nil
}

func (s *transitionStore) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*model.CaseStateTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.CaseStateTransition
	for _, tr := range s.transitions {
		if tr.CaseID == caseID {
			cp := *tr
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *transitionStore) ListByReference(ctx context.Context, refType model.ReferenceType, refID uuid.UUID) ([]*model.CaseStateTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.CaseStateTransition
	for _, tr := range s.transitions {
		if tr.ReferenceType == refType && tr.ReferenceID == refID {
			cp := *tr
			out = append(out, &cp)
		}
	}
	return out, nil
}

type escalationStore Store

func (s *escalationStore) ListActiveRules(ctx context.Context) ([]*model.EscalationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.EscalationRule
	for _, r := range s.rules {
		if r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HoursOverdue < out[j].HoursOverdue })
	return out, nil
}

func (s *escalationStore) GetRule(ctx context.Context, id uuid.UUID) (*model.EscalationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, apperrors.NewNotFound("escalation rule", nil)
	}
	cp := *r
	return &cp, nil
}

func (s *escalationStore) LatestForCaseRule(ctx context.Context, caseID, ruleID uuid.UUID) (*model.CaseEscalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.CaseEscalation
	for _, esc := range s.escalations {
		if esc.CaseID != caseID || esc.RuleID != ruleID {
			continue
		}
		if latest == nil || esc.CreatedAt.After(latest.CreatedAt) {
			latest = esc
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *escalationStore) CountForCaseRule(ctx context.Context, caseID, ruleID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, esc := range s.escalations {
		if esc.CaseID == caseID && esc.RuleID == ruleID {
			n++
		}
	}
	return n, nil
}

func (s *escalationStore) Create(ctx context.Context, esc *model.CaseEscalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *esc
	s.escalations = append(s.escalations, &cp)
	return nil
}

func (s *escalationStore) CountOpen(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, esc := range s.escalations {
		if esc.ResolvedAt == nil {
			n++
		}
	}
	return n, nil
}

type queueStore Store

func (s *queueStore) Create(ctx context.Context, n *model.QueuedNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.queue[n.ID] = &cp
	return nil
}

func sameKey(n *model.QueuedNotification, key model.DedupKey) bool {
	if n.TemplateCode != key.TemplateCode || n.TriggerEvent != key.TriggerEvent {
		return false
	}
	if (n.CaseID == nil) != (key.CaseID == nil) {
		return false
	}
	if n.CaseID != nil && *n.CaseID != *key.CaseID {
		return false
	}
	return n.Recipient.Key() == key.Recipient.Key()
}

func (s *queueStore) ExistsSince(ctx context.Context, key model.DedupKey, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.queue {
		if n.Status == model.NotificationStatusFailed {
			continue
		}
		if !sameKey(n, key) {
			continue
		}
		if !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *queueStore) ListPending(ctx context.Context, limit int) ([]*model.QueuedNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.QueuedNotification
	for _, n := range s.queue {
		if n.Status == model.NotificationStatusPending {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *queueStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.queue[id]
	if !ok {
		return apperrors.NewNotFound("queued notification", nil)
	}
	n.Status = model.NotificationStatusSent
	sent := at
	n.SentAt = &sent
	n.UpdatedAt = at
	return nil
}

func (s *queueStore) RecordAttempt(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.queue[id]
	if !ok {
		return apperrors.NewNotFound("queued notification", nil)
	}
	n.RetryCount++
	n.LastError = errMsg
	n.UpdatedAt = at
	return nil
}

func (s *queueStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.queue[id]
	if !ok {
		return apperrors.NewNotFound("queued notification", nil)
	}
	n.Status = model.NotificationStatusFailed
	n.RetryCount++
	n.LastError = errMsg
	n.UpdatedAt = at
	return nil
}

func (s *queueStore) DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, n := range s.queue {
		if n.Status == model.NotificationStatusPending {
			continue
		}
		if n.CreatedAt.Before(before) {
			delete(s.queue, id)
			deleted++
		}
	}
	return deleted, nil
}

type templateStore Store

func (s *templateStore) GetByCode(ctx context.Context, code string) (*model.NotificationTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmpl, ok := s.templates[code]
	if !ok {
		return nil, apperrors.NewNotFound("notification template", nil)
	}
	cp := *tmpl
	return &cp, nil
}

type sequenceStore Store

func (s *sequenceStore) Next(ctx context.Context, docType model.DocumentType, fiscalYear string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(docType) + "/" + fiscalYear
	s.sequences[key]++
	return s.sequences[key], nil
}

type metricsStore Store

func (s *metricsStore) UpsertDaily(ctx context.Context, m *model.DailyCaseMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.daily[m.Day.Format("2006-01-02")] = &cp
	return nil
}
