// Package operation tracks hypervisor operations in the local store so an
// interrupted or timed out wait can be resumed later.
package operation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/opstore"

	"go.uber.org/zap"
)

// RetentionPeriod is how long finished records are kept.
const RetentionPeriod = 24 * time.Hour

// pending is implemented by wait errors that know whether the operation
// may still complete remotely.
type pending interface {
	Pending() bool
}

// Service records operation waits and resumes them. It implements
// domain.OperationObserver so a provider can report waits as they happen.
type Service struct {
	repo   opstore.Repository
	remote string
	waiter domain.OperationWaiter
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]*opstore.OperationRecord
}

var _ domain.OperationObserver = (*Service)(nil)

// NewService creates a tracking service for one remote. waiter may be nil
// when operations are only recorded; repo may be nil to disable tracking.
func NewService(remote string, waiter domain.OperationWaiter, repo opstore.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		remote: remote,
		waiter: waiter,
		logger: logger,
		active: map[string]*opstore.OperationRecord{},
	}
}

// SetWaiter sets the waiter used by Resume. Providers are usually built
// after their observer, so the waiter is wired in afterwards.
func (s *Service) SetWaiter(w domain.OperationWaiter) {
	s.waiter = w
}

// Close releases repository resources.
func (s *Service) Close() error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Close()
}

// OperationStarted implements domain.OperationObserver.
func (s *Service) OperationStarted(ref domain.OperationRef) {
	record := s.Track(ref)
	if record == nil {
		return
	}
	s.mu.Lock()
	s.active[ref.ID] = record
	s.mu.Unlock()
}

// OperationFinished implements domain.OperationObserver.
func (s *Service) OperationFinished(ref domain.OperationRef, err error) {
	s.mu.Lock()
	record := s.active[ref.ID]
	delete(s.active, ref.ID)
	s.mu.Unlock()

	s.Finalize(record, err)
}

// Track persists a running record for ref. A wait issued again for an
// operation that is still recorded as running reuses that record.
// Persistence failures are logged and yield nil so callers can proceed
// without tracking.
func (s *Service) Track(ref domain.OperationRef) *opstore.OperationRecord {
	if s.repo == nil || ref.ID == "" {
		return nil
	}

	existing, err := s.repo.FindByOperationID(s.remote, ref.ID)
	if err != nil {
		s.logger.Debug("failed to look up operation", zap.String("operation", ref.ID), zap.Error(err))
	}
	if existing != nil && existing.Status == domain.OperationStatusRunning {
		existing.ErrorMessage = ""
		if err := s.repo.Save(existing); err != nil {
			s.logger.Debug("failed to track operation", zap.String("operation", ref.ID), zap.Error(err))
			return nil
		}
		return existing
	}

	record := &opstore.OperationRecord{
		OperationID: ref.ID,
		Remote:      s.remote,
		Container:   ref.Container,
		Command:     ref.Command,
		Status:      domain.OperationStatusRunning,
	}
	if err := s.repo.Save(record); err != nil {
		s.logger.Debug("failed to track operation", zap.String("operation", ref.ID), zap.Error(err))
		return nil
	}

	// Opportunistically clean up old finished records.
	_, _ = s.repo.DeleteOlderThan(RetentionPeriod)

	return record
}

// Finalize records the outcome of a wait. A wait that ended while the
// operation may still complete leaves the record running for Resume.
func (s *Service) Finalize(record *opstore.OperationRecord, err error) {
	if s.repo == nil || record == nil {
		return
	}

	switch {
	case err == nil:
		record.Status = domain.OperationStatusSuccess
		record.ErrorMessage = ""
	case stillPending(err):
		record.Status = domain.OperationStatusRunning
		record.ErrorMessage = err.Error()
	default:
		record.Status = domain.OperationStatusError
		record.ErrorMessage = err.Error()
	}

	if err := s.repo.Save(record); err != nil {
		s.logger.Debug("failed to finalize operation", zap.String("operation", record.OperationID), zap.Error(err))
	}
}

func stillPending(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var p pending
	return errors.As(err, &p) && p.Pending()
}

// ListPending returns records whose wait has not concluded.
func (s *Service) ListPending() ([]opstore.OperationRecord, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("operations: repository unavailable")
	}
	return s.repo.ListPending()
}

// ListRecent returns the most recent n records.
func (s *Service) ListRecent(n int) ([]opstore.OperationRecord, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("operations: repository unavailable")
	}
	return s.repo.ListRecent(n)
}

// Cleanup removes finished records older than maxAge.
func (s *Service) Cleanup(maxAge time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("operations: repository unavailable")
	}
	return s.repo.DeleteOlderThan(maxAge)
}

// Resume re-issues the wait for a recorded operation. Only the wait is
// repeated, never the action that produced the operation.
func (s *Service) Resume(ctx context.Context, record *opstore.OperationRecord, timeout time.Duration) error {
	if s.waiter == nil {
		return fmt.Errorf("operations: provider cannot wait on operations")
	}
	if record == nil {
		return fmt.Errorf("operations: record is nil")
	}
	if record.Remote != "" && record.Remote != s.remote {
		return fmt.Errorf("operations: record %d belongs to remote %q, not %q", record.ID, record.Remote, s.remote)
	}

	err := s.waiter.WaitForOperation(ctx, record.OperationID, timeout)
	s.Finalize(record, err)
	return err
}
