package notification

import (
	"context"
	"log"
	"time"
)

// Emitter delivers notifications without blocking the caller. Delivery is
// best-effort: a failed write is logged and dropped, never surfaced to the
// workflow that triggered it.
type Emitter struct {
	service *Service
	timeout time.Duration
}

// NewEmitter wraps a service in best-effort asynchronous delivery.
func NewEmitter(service *Service) *Emitter {
	return &Emitter{service: service, timeout: 5 * time.Second}
}

// Emit persists a notification on a background goroutine.
func (e *Emitter) Emit(input CreateInput) {
	if e == nil || e.service == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if _, err := e.service.Create(ctx, input); err != nil {
			log.Printf("notification emit failed: recipient=%s kind=%s err=%v",
				input.RecipientParticipantID, input.Kind, err)
		}
	}()
}
