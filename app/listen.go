package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/lib/pq"
)

const (
	contractsChannel     = "contract_events"
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// ContractEvent is the payload fanned out by the contracts trigger.
type ContractEvent struct {
	Op     string `json:"op"`
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// WatchContracts subscribes to contract change notifications and invokes fn
// for each event until ctx is canceled. Malformed payloads are logged and
// skipped; reconnects are handled by the underlying listener.
func (s *Store) WatchContracts(ctx context.Context, fn func(ContractEvent)) error {
	listener := pq.NewListener(s.dsn, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Printf("contract listener event=%d err=%v", ev, err)
			}
		})
	defer listener.Close()

	if err := listener.Listen(contractsChannel); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-listener.Notify:
			if n == nil {
				// Connection was re-established; listener re-subscribes itself.
				continue
			}
			var ev ContractEvent
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				log.Printf("contract event unmarshal failed: %v payload=%s", err, n.Extra)
				continue
			}
			fn(ev)
		case <-time.After(listenerPingInterval):
			if err := listener.Ping(); err != nil {
				log.Printf("contract listener ping failed: %v", err)
			}
		}
	}
}
