package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitalis-ai/vitalis/internal/adapter/ws"
	"github.com/vitalis-ai/vitalis/internal/domain/approval"
	"github.com/vitalis-ai/vitalis/internal/domain/event"
	"github.com/vitalis-ai/vitalis/internal/port/broadcast"
	"github.com/vitalis-ai/vitalis/internal/port/database"
	"github.com/vitalis-ai/vitalis/internal/port/eventstore"
	"github.com/vitalis-ai/vitalis/internal/port/messagequeue"
)

// ApprovalService is the human approval gate. A sensitive action suspends at
// the gate until Approve or Deny resolves it; resolution reaches the waiting
// run through a per-approval channel.
type ApprovalService struct {
	store   database.Store
	events  eventstore.Store
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	timeout time.Duration

	// approvalID -> chan approval.Status, buffer 1 so the resolver never
	// blocks and only the first decision lands.
	pending sync.Map

	log *slog.Logger
}

// NewApprovalService creates the approval gate. A zero timeout waits
// indefinitely; a positive timeout expires (and denies) unresolved requests.
func NewApprovalService(
	store database.Store,
	events eventstore.Store,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	timeout time.Duration,
	log *slog.Logger,
) *ApprovalService {
	if log == nil {
		log = slog.Default()
	}
	return &ApprovalService{
		store:   store,
		events:  events,
		queue:   queue,
		hub:     hub,
		timeout: timeout,
		log:     log,
	}
}

// Request persists a pending approval and notifies every channel a human
// may answer from: the event log, the queue, and connected dashboards. The
// wake channel is registered before any notification goes out, so a decision
// arriving before Wait is still delivered.
func (s *ApprovalService) Request(ctx context.Context, a *approval.PendingApproval) error {
	a.Status = approval.StatusPending
	if err := s.store.CreateApproval(ctx, a); err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	s.pending.Store(a.ID, make(chan approval.Status, 1))

	appendEvent(ctx, s.events, event.AgentEvent{
		UserID:  a.UserID,
		TraceID: a.TraceID,
		Type:    event.TypeApprovalRequested,
		Payload: mustJSON(a),
	})
	publishJSON(ctx, s.queue, messagequeue.SubjectApprovalRequested, a)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventApprovalRequest, ws.ApprovalEvent{
			ApprovalID:  a.ID,
			UserID:      a.UserID,
			Tool:        a.Tool,
			Description: a.Description,
			Status:      string(a.Status),
		})
	}

	s.log.Info("approval requested",
		"approval_id", a.ID,
		"user_id", a.UserID,
		"tool", a.Tool,
	)
	return nil
}

// Wait blocks until the approval is resolved, the configured timeout
// expires, or ctx is cancelled. Timeouts and cancellation mark the record
// expired; both read as a denial to the waiting run.
func (s *ApprovalService) Wait(ctx context.Context, approvalID string) approval.Status {
	v, ok := s.pending.Load(approvalID)
	if !ok {
		// No request registered in this process; fall back to the stored
		// decision.
		if a, err := s.store.GetApproval(ctx, approvalID); err == nil && a.Status != approval.StatusPending {
			return a.Status
		}
		return approval.StatusDenied
	}
	ch := v.(chan approval.Status)
	defer s.pending.Delete(approvalID)

	var timeoutCh <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case status := <-ch:
		return status
	case <-timeoutCh:
		s.log.Warn("approval timed out", "approval_id", approvalID, "timeout", s.timeout)
		return s.expire(ctx, approvalID, ch)
	case <-ctx.Done():
		s.log.Warn("approval wait cancelled", "approval_id", approvalID)
		if st := s.expire(ctx, approvalID, ch); st != approval.StatusApproved {
			return approval.StatusDenied
		}
		return approval.StatusApproved
	}
}

// expire resolves an unanswered approval as expired. A decision that raced
// the deadline wins: the already-stored status is returned instead.
func (s *ApprovalService) expire(ctx context.Context, approvalID string, ch chan approval.Status) approval.Status {
	select {
	case status := <-ch:
		return status
	default:
	}

	bg := context.WithoutCancel(ctx)
	if err := s.store.ResolveApproval(bg, approvalID, approval.StatusExpired); err != nil {
		if a, gerr := s.store.GetApproval(bg, approvalID); gerr == nil && a.Status != approval.StatusPending {
			return a.Status
		}
		s.log.Error("expire approval failed", "approval_id", approvalID, "error", err)
	}
	return approval.StatusExpired
}

// Approve resolves a pending approval positively.
func (s *ApprovalService) Approve(ctx context.Context, approvalID string) error {
	return s.resolve(ctx, approvalID, approval.StatusApproved)
}

// Deny resolves a pending approval negatively.
func (s *ApprovalService) Deny(ctx context.Context, approvalID string) error {
	return s.resolve(ctx, approvalID, approval.StatusDenied)
}

func (s *ApprovalService) resolve(ctx context.Context, approvalID string, status approval.Status) error {
	if err := s.store.ResolveApproval(ctx, approvalID, status); err != nil {
		return err
	}

	// Wake the suspended run. The channel stays registered until Wait is
	// done with it: a decision landing before Wait starts selecting is
	// buffered, not lost.
	if ch, ok := s.pending.Load(approvalID); ok {
		select {
		case ch.(chan approval.Status) <- status:
		default:
		}
	}

	a, err := s.store.GetApproval(ctx, approvalID)
	if err != nil {
		return err
	}

	appendEvent(ctx, s.events, event.AgentEvent{
		UserID:  a.UserID,
		TraceID: a.TraceID,
		Type:    event.TypeApprovalResolved,
		Payload: mustJSON(a),
	})
	publishJSON(ctx, s.queue, messagequeue.SubjectApprovalResolved, a)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventApprovalResolved, ws.ApprovalEvent{
			ApprovalID: a.ID,
			UserID:     a.UserID,
			Tool:       a.Tool,
			Status:     string(status),
		})
	}

	s.log.Info("approval resolved", "approval_id", approvalID, "status", status)
	return nil
}

// ListPending returns all unresolved approvals, oldest first.
func (s *ApprovalService) ListPending(ctx context.Context) ([]approval.PendingApproval, error) {
	return s.store.ListPendingApprovals(ctx)
}
