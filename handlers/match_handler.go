package handlers

import (
	"net/http"

	"github.com/Dosada05/scrimverse-engine/middleware"
	"github.com/Dosada05/scrimverse-engine/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

func (h *MatchHandler) UpdateRoomDetailsHandler(w http.ResponseWriter, r *http.Request) {
	hostID, matchID, ok := h.hostAndMatch(w, r)
	if !ok {
		return
	}

	var input services.RoomDetailsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.UpdateRoomDetails(r.Context(), matchID, hostID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) StartMatchHandler(w http.ResponseWriter, r *http.Request) {
	hostID, matchID, ok := h.hostAndMatch(w, r)
	if !ok {
		return
	}

	match, err := h.matchService.StartMatch(r.Context(), matchID, hostID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) EndMatchHandler(w http.ResponseWriter, r *http.Request) {
	hostID, matchID, ok := h.hostAndMatch(w, r)
	if !ok {
		return
	}

	match, err := h.matchService.EndMatch(r.Context(), matchID, hostID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) CancelMatchHandler(w http.ResponseWriter, r *http.Request) {
	hostID, matchID, ok := h.hostAndMatch(w, r)
	if !ok {
		return
	}

	match, err := h.matchService.CancelMatch(r.Context(), matchID, hostID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type submitScoresRequest struct {
	Scores []services.ScoreInput `json:"scores"`
}

func (h *MatchHandler) SubmitScoresHandler(w http.ResponseWriter, r *http.Request) {
	hostID, matchID, ok := h.hostAndMatch(w, r)
	if !ok {
		return
	}

	var req submitScoresRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	scores, err := h.matchService.SubmitScores(r.Context(), matchID, hostID, req.Scores)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scores": scores}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) hostAndMatch(w http.ResponseWriter, r *http.Request) (hostID, matchID int, ok bool) {
	hostID, err := middleware.GetHostIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return 0, 0, false
	}
	matchID, err = idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, false
	}
	return hostID, matchID, true
}
