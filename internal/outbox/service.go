package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidMessage = errors.New("invalid outbox message")

// EnqueueRequest describes a message to store. A zero SendAfter means now.
type EnqueueRequest struct {
	MessageType MessageType
	Recipient   string
	Subject     string
	Template    string
	Data        map[string]any
	Reference   string
	SendAfter   time.Time
}

type Service struct {
	repo       Repository
	maxRetries int
	now        func() time.Time
}

func NewService(repo Repository, maxRetries int) *Service {
	return &Service{
		repo:       repo,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Enqueue stores a pending message. It never attempts delivery.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*Message, error) {
	if !req.MessageType.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, req.MessageType)
	}
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if req.Template == "" {
		return nil, fmt.Errorf("%w: template is required", ErrInvalidMessage)
	}

	sendAfter := req.SendAfter
	if sendAfter.IsZero() {
		sendAfter = s.now()
	}

	var subject *string
	if req.Subject != "" {
		subj := req.Subject
		subject = &subj
	}

	data := req.Data
	if data == nil {
		data = map[string]any{}
	}

	msg := &Message{
		ID:           uuid.New(),
		MessageType:  req.MessageType,
		Recipient:    recipient,
		Subject:      subject,
		Template:     req.Template,
		TemplateData: data,
		Reference:    req.Reference,
		Status:       StatusPending,
		MaxRetries:   s.maxRetries,
		SendAfter:    sendAfter,
		CreatedAt:    s.now(),
	}

	if err := s.repo.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", req.Template, err)
	}
	return msg, nil
}

func (s *Service) CancelPending(ctx context.Context, reference string) (int, error) {
	if reference == "" {
		return 0, nil
	}
	return s.repo.CancelPending(ctx, reference)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Message, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Stats(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

// WithClock replaces time.Now, for tests and simulations.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
