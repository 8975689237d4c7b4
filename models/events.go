package models

import (
	"context"
	"sync"
)

// PledgeCreatedEvent is published after a pledge intake commits. Consumers
// run outside the intake transaction; they must tolerate redelivery and keep
// their own failure handling.
type PledgeCreatedEvent struct {
	Pledge *Pledge
	Loan   *Loan
}

type PledgeCreatedHandler func(ctx context.Context, ev PledgeCreatedEvent)

var (
	pledgeCreatedMu       sync.RWMutex
	pledgeCreatedHandlers []PledgeCreatedHandler
)

// OnPledgeCreated registers a post-creation hook. Registration happens at
// startup, before any request is served.
func OnPledgeCreated(h PledgeCreatedHandler) {
	pledgeCreatedMu.Lock()
	defer pledgeCreatedMu.Unlock()
	pledgeCreatedHandlers = append(pledgeCreatedHandlers, h)
}

func publishPledgeCreated(ctx context.Context, ev PledgeCreatedEvent) {
	pledgeCreatedMu.RLock()
	handlers := make([]PledgeCreatedHandler, len(pledgeCreatedHandlers))
	copy(handlers, pledgeCreatedHandlers)
	pledgeCreatedMu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}

// ResetPledgeCreatedHandlers clears registrations. Test hook.
func ResetPledgeCreatedHandlers() {
	pledgeCreatedMu.Lock()
	defer pledgeCreatedMu.Unlock()
	pledgeCreatedHandlers = nil
}
