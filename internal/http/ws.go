package http

import (
	"log/slog"
	"net/http"
	"time"

	"SchoolPayments/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamTransactionStatus sends the current status of an order, then every
// status event for it until the client goes away.
func (h *Handler) StreamTransactionStatus(w http.ResponseWriter, r *http.Request) {
	customOrderID := chi.URLParam(r, "customOrderId")

	// Subscribe before reading so no event between the read and the upgrade
	// is lost.
	sub := h.Hub.Subscribe(customOrderID)
	defer sub.Close()

	status, err := h.Transactions.GetTransactionStatus(r.Context(), customOrderID)
	if err != nil {
		h.fail(w, err, "get transaction status failed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "custom_order_id", customOrderID, "error", err)
		return
	}
	defer conn.Close()

	initial := models.StatusEvent{CustomOrderID: customOrderID, Status: status}
	if err := writeWS(conn, initial); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeWS(conn, ev); err != nil {
				slog.Warn("ws write failed", "custom_order_id", customOrderID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
