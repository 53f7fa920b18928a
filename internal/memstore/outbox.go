package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/outbox"
)

type Outbox struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*outbox.Message
	seq  []uuid.UUID
}

func NewOutbox() *Outbox {
	return &Outbox{byID: make(map[uuid.UUID]*outbox.Message)}
}

func copyMessage(m *outbox.Message) outbox.Message {
	c := *m
	if m.TemplateData != nil {
		c.TemplateData = make(map[string]any, len(m.TemplateData))
		for k, v := range m.TemplateData {
			c.TemplateData[k] = v
		}
	}
	return c
}

func (s *Outbox) Insert(_ context.Context, msg *outbox.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := copyMessage(msg)
	s.byID[msg.ID] = &stored
	s.seq = append(s.seq, msg.ID)
	return nil
}

func (s *Outbox) Get(_ context.Context, id uuid.UUID) (*outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, outbox.ErrMessageNotFound
	}
	c := copyMessage(m)
	return &c, nil
}

// List returns matching messages in insertion order.
func (s *Outbox) List(_ context.Context, f outbox.ListFilter) ([]outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []outbox.Message
	for _, id := range s.seq {
		m := s.byID[id]
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.Reference != "" && m.Reference != f.Reference {
			continue
		}
		out = append(out, copyMessage(m))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Outbox) CountByStatus(_ context.Context) (map[outbox.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[outbox.Status]int)
	for _, m := range s.byID {
		counts[m.Status]++
	}
	return counts, nil
}

func (s *Outbox) CancelPending(_ context.Context, reference string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.byID {
		if m.Reference == reference && m.Status == outbox.StatusPending {
			m.Status = outbox.StatusCancelled
			n++
		}
	}
	return n, nil
}

func (s *Outbox) ClaimDue(_ context.Context, now time.Time, limit int, claimUntil time.Time) ([]outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*outbox.Message
	for _, id := range s.seq {
		m := s.byID[id]
		if m.Status == outbox.StatusPending && !m.SendAfter.After(now) {
			due = append(due, m)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].SendAfter.Before(due[j].SendAfter) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]outbox.Message, 0, len(due))
	for _, m := range due {
		m.SendAfter = claimUntil
		out = append(out, copyMessage(m))
	}
	return out, nil
}

func (s *Outbox) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return outbox.ErrMessageNotFound
	}
	if m.Status != outbox.StatusPending {
		return outbox.ErrMessageNotPending
	}
	m.Status = outbox.StatusSent
	m.SentAt = &sentAt
	m.ErrorMessage = nil
	return nil
}

func (s *Outbox) MarkAttemptFailed(_ context.Context, id uuid.UUID, errMsg string, nextAttempt time.Time) (*outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok || m.Status != outbox.StatusPending {
		return nil, outbox.ErrMessageNotPending
	}

	m.ErrorMessage = &errMsg
	if m.RetryCount+1 >= m.MaxRetries {
		m.RetryCount = min(m.RetryCount+1, m.MaxRetries)
		m.Status = outbox.StatusFailed
	} else {
		m.RetryCount++
		m.SendAfter = nextAttempt
	}
	c := copyMessage(m)
	return &c, nil
}
