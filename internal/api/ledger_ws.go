package api

import (
	"context"
	"net/http"
	"time"

	reqctx "drone-flight/registry/internal/context"
	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/logging"

	"github.com/gorilla/websocket"
)

const (
	ledgerWSWriteWait = 10 * time.Second
	ledgerWSPongWait  = 60 * time.Second
	ledgerWSPingEvery = (ledgerWSPongWait * 9) / 10
)

var ledgerWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type ledgerWSMessage struct {
	Type  string        `json:"type"`
	Event *ledger.Event `json:"event,omitempty"`
	// DroneID is sent with the subscribed message.
	DroneID *uint64 `json:"droneId,omitempty"`
}

// LedgerEventsWS handles GET /api/ledger/ws?from=N. Events with
// FlightID >= from are replayed first, then live events follow in order.
func (h *Handlers) LedgerEventsWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := parseUintParam(r, "from", 0)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "from must be a non-negative integer")
			return
		}

		conn, err := ledgerWSUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Subscribe before reading the backlog so nothing falls in between.
		live, unsubscribe := h.deps.Services.EventHub.Subscribe()
		defer unsubscribe()

		l := h.deps.Services.Ledger
		current := l.DroneID(ctx)

		if err := conn.SetReadDeadline(time.Now().Add(ledgerWSPongWait)); err != nil {
			return
		}
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(ledgerWSPongWait))
		})

		// reader: only control frames are expected; any error ends the session
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		write := func(msg ledgerWSMessage) bool {
			if err := conn.SetWriteDeadline(time.Now().Add(ledgerWSWriteWait)); err != nil {
				return false
			}
			return conn.WriteJSON(msg) == nil
		}

		if !write(ledgerWSMessage{Type: "subscribed", DroneID: &current}) {
			return
		}

		// lastSent is the highest flight id written to the client. Anything
		// between lastSent and a newer event is read back from the ledger, so
		// events the hub dropped for this subscriber are still delivered.
		lastSent := current
		if from > 0 {
			lastSent = from - 1
		}
		catchUp := func(to uint64) bool {
			for lastSent < to {
				batch, err := l.Events(ctx, lastSent+1, 500)
				if err != nil {
					logging.Warn("Ledger websocket backlog failed",
						"request_id", reqctx.GetRequestID(r.Context()),
						"error", err.Error(),
					)
					return false
				}
				if len(batch) == 0 {
					return true
				}
				for i := range batch {
					if batch[i].FlightID > to {
						return true
					}
					if !write(ledgerWSMessage{Type: "event", Event: &batch[i]}) {
						return false
					}
					lastSent = batch[i].FlightID
				}
			}
			return true
		}

		if !catchUp(current) {
			return
		}
		// with from=0 the client only wants events after the announced droneId
		lastSent = max(lastSent, current)

		ticker := time.NewTicker(ledgerWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-live:
				if !ok {
					return
				}
				if ev.FlightID <= lastSent {
					continue
				}
				// The hub only drops while an older event is still buffered,
				// so reading up to the current counter here covers every drop.
				if !catchUp(max(ev.FlightID, l.DroneID(ctx))) {
					return
				}
			case <-ticker.C:
				if !catchUp(l.DroneID(ctx)) {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(ledgerWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
