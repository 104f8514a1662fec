package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"example.com/mastermind/internal/game"
)

// statusClientClosedRequest is nginx's code for a client that went away
// before the response.
const statusClientClosedRequest = 499

type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	GameID  game.ID `json:"gameId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, ErrorResponse{Code: errCode, Message: msg})
}

// writeGameError maps a command failure to a response. Rejected commands keep
// their message, which is meant for the player; failures are logged and
// reported without detail.
func writeGameError(w http.ResponseWriter, log *slog.Logger, id game.ID, err error) {
	status, code := classify(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "game not found"
	case statusClientClosedRequest:
		log.Debug("command canceled", "game_id", id, "err", err)
		msg = "request canceled"
	case http.StatusGatewayTimeout:
		log.Warn("command timed out", "game_id", id, "err", err)
		msg = "the game is busy, try again"
	case http.StatusInternalServerError:
		log.Error("command failed", "game_id", id, "err", err)
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg, GameID: id})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrIncompleteCode):
		return http.StatusBadRequest, "incomplete_code"
	case errors.Is(err, game.ErrInvalidCode):
		return http.StatusBadRequest, "invalid_code"
	case errors.Is(err, game.ErrGameFinished):
		return http.StatusBadRequest, "game_finished"
	case errors.Is(err, game.ErrInvalidMoves):
		return http.StatusBadRequest, "invalid_moves"
	case errors.Is(err, game.ErrGameAlreadyStarted):
		return http.StatusConflict, "game_already_started"
	case errors.Is(err, game.ErrGameNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrCanceled):
		return statusClientClosedRequest, "canceled"
	case errors.Is(err, game.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
