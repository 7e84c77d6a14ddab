// Package audit durably records gate decisions. Writes are fail-open: a
// failed append never blocks the physical-entry decision, but it is alerted,
// counted, and retried asynchronously until it lands or retries run out.
package audit

import (
	"context"
	"errors"
	"log"
	"time"

	"gym-access-control/backend/internal/audit/domain"
	auditrepo "gym-access-control/backend/internal/audit/repository"
)

// AlertFunc is invoked when an append fails, so the failure reaches an
// operational alert channel instead of being swallowed.
type AlertFunc func(err error, entry *domain.AccessLog)

const (
	retryQueueSize = 256
	maxAttempts    = 5
	retryBaseDelay = time.Second
	writeTimeout   = 5 * time.Second
	closeTimeout   = 5 * time.Second
)

// errShutdown is passed to the alert hook for entries dropped because
// shutdown arrived before their retries could complete.
var errShutdown = errors.New("audit: shutdown before entry could be retried")

// Recorder appends access logs through the repository with an async retry
// queue behind it. Safe for concurrent use by many terminals.
type Recorder struct {
	repo      auditrepo.Repository
	alert     AlertFunc
	baseDelay time.Duration
	closeWait time.Duration
	jobs      chan *domain.AccessLog
	closing   chan struct{}
	done      chan struct{}
}

// NewRecorder returns a Recorder over repo and starts its retry worker.
// alert may be nil; failures are then only logged. Call Close on shutdown.
func NewRecorder(repo auditrepo.Repository, alert AlertFunc) *Recorder {
	return newRecorder(repo, alert, retryBaseDelay)
}

func newRecorder(repo auditrepo.Repository, alert AlertFunc, baseDelay time.Duration) *Recorder {
	r := &Recorder{
		repo:      repo,
		alert:     alert,
		baseDelay: baseDelay,
		closeWait: closeTimeout,
		jobs:      make(chan *domain.AccessLog, retryQueueSize),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	go r.retryLoop()
	return r
}

// Record appends the entry. On failure it alerts, enqueues the entry for
// background retry, and returns the error; the caller keeps its decision
// outcome either way.
func (r *Recorder) Record(ctx context.Context, entry *domain.AccessLog) error {
	err := r.repo.Create(ctx, entry)
	if err == nil {
		return nil
	}

	log.Printf("audit: failed to record decision %s/%s: %v", entry.FacilityID, entry.Outcome, err)
	if r.alert != nil {
		r.alert(err, entry)
	}
	select {
	case r.jobs <- entry:
	default:
		log.Printf("audit: retry queue full, dropping entry %s", entry.ID)
	}
	return err
}

// Close stops the retry worker. Queued entries get a bounded window to land;
// after it elapses they are alerted and dropped so shutdown cannot hang on a
// dead database.
func (r *Recorder) Close() {
	close(r.jobs)
	select {
	case <-r.done:
		return
	case <-time.After(r.closeWait):
	}
	close(r.closing)
	<-r.done
}

func (r *Recorder) retryLoop() {
	defer close(r.done)

	for entry := range r.jobs {
		r.retry(entry)
	}
}

func (r *Recorder) retry(entry *domain.AccessLog) {
	delay := r.baseDelay
	for attempt := 2; attempt <= maxAttempts; attempt++ {
		select {
		case <-time.After(delay):
		case <-r.closing:
			log.Printf("audit: dropping entry %s at shutdown", entry.ID)
			if r.alert != nil {
				r.alert(errShutdown, entry)
			}
			return
		}
		delay *= 2

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.repo.Create(ctx, entry)
		cancel()
		if err == nil {
			return
		}
		if attempt == maxAttempts {
			log.Printf("audit: giving up on entry %s after %d attempts: %v", entry.ID, maxAttempts, err)
			if r.alert != nil {
				r.alert(err, entry)
			}
		}
	}
}
