package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"example.com/mastermind/internal/auth"
	"example.com/mastermind/internal/game"
	"github.com/go-chi/chi/v5"
)

type StartGameRequest struct {
	Moves *int `json:"moves,omitempty"`
}

type StartGameResponse struct {
	GameID      game.ID `json:"gameId"`
	PlayerToken string  `json:"playerToken"`
}

type GuessRequest struct {
	Guess []string `json:"guess"`
}

type FeedbackBody struct {
	Outcome    game.Outcome `json:"outcome"`
	ExactHits  int          `json:"exactHits"`
	ColourHits int          `json:"colourHits"`
	Pegs       []string     `json:"pegs"`
}

type GuessResponse struct {
	GameID   game.ID      `json:"gameId"`
	Feedback FeedbackBody `json:"feedback"`
}

func feedbackBody(fb game.Feedback) FeedbackBody {
	pegs := fb.Pegs()
	out := FeedbackBody{
		Outcome:    fb.Outcome,
		ExactHits:  fb.ExactHits,
		ColourHits: fb.ColourHits,
		Pegs:       make([]string, len(pegs)),
	}
	for i, p := range pegs {
		out.Pegs[i] = string(p)
	}
	return out
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	moves := 0 // service default
	if req.Moves != nil {
		if *req.Moves < 1 {
			writeError(w, http.StatusBadRequest, "invalid_moves", game.ErrInvalidMoves.Error())
			return
		}
		moves = *req.Moves
	}

	id, err := s.games.StartGame(r.Context(), moves)
	if err != nil {
		writeGameError(w, s.log, "", err)
		return
	}

	token, err := auth.Sign(s.auth.Secret, id.String(), s.auth.TokenTTL)
	if err != nil {
		s.log.Error("sign player token", "game_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	w.Header().Set("Location", "/games/"+id.String())
	writeJSON(w, http.StatusCreated, StartGameResponse{GameID: id, PlayerToken: token})
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	id, err := game.ParseID(chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "game not found")
		return
	}

	if s.auth.Required {
		if err := auth.VerifyForGame(s.auth.Secret, bearerToken(r), id.String()); err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrWrongGame) {
				status = http.StatusForbidden
			}
			writeError(w, status, "unauthorized", "missing or invalid player token")
			return
		}
	}

	var req GuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	code, err := game.ParseCode(req.Guess)
	if err != nil {
		writeGameError(w, s.log, id, err)
		return
	}

	fb, err := s.games.MakeGuess(r.Context(), id, code, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeGameError(w, s.log, id, err)
		return
	}
	writeJSON(w, http.StatusOK, GuessResponse{GameID: id, Feedback: feedbackBody(fb)})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	id, err := game.ParseID(chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "game not found")
		return
	}

	b, found, err := s.boards.FindDecodingBoard(r.Context(), id)
	if err != nil {
		s.log.Error("find board", "game_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "game not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}
