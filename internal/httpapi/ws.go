package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"example.com/mastermind/internal/board"
	"example.com/mastermind/internal/game"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // boards are public
}

const (
	pingPeriod = 25 * time.Second
	writeWait  = 10 * time.Second
)

// Envelope is the frame sent on the live board feed.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// handleWS streams a game's board: the current state first, then every
// update the projector publishes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id, err := game.ParseID(chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "game not found")
		return
	}

	// subscribe before reading, so no update slips between the two
	updates, cancel := s.feed.Subscribe(id)
	defer cancel()

	current, found, err := s.boards.FindDecodingBoard(r.Context(), id)
	if err != nil {
		s.log.Error("find board", "game_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "game not found")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	// writer loop
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ws.Close()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		sent := current.Version
		if err := writeBoard(ws, current); err != nil {
			return
		}
		for {
			select {
			case b, ok := <-updates:
				if !ok {
					_ = ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
					return
				}
				if b.Version <= sent {
					continue
				}
				if err := writeBoard(ws, b); err != nil {
					return
				}
				sent = b.Version
			case <-ticker.C:
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
					return
				}
			}
		}
	}()

	// reader loop: the feed is one way, reading only notices the close
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-done
	s.log.Debug("board feed closed", "game_id", id)
}

func writeBoard(ws *websocket.Conn, b board.DecodingBoard) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(Envelope{Type: "board", Payload: mustJSON(b)})
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
