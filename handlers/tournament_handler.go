package handlers

import (
	"net/http"
	"time"

	"github.com/Dosada05/scrimverse-engine/middleware"
	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/Dosada05/scrimverse-engine/repositories"
	"github.com/Dosada05/scrimverse-engine/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	roundService      services.RoundService
}

func NewTournamentHandler(ts services.TournamentService, rs services.RoundService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		roundService:      rs,
	}
}

type createTournamentRequest struct {
	Title             string    `json:"title"`
	GameName          string    `json:"game_name"`
	EventMode         string    `json:"event_mode"`
	MaxParticipants   int       `json:"max_participants"`
	MaxMatches        int       `json:"max_matches"`
	RegistrationStart time.Time `json:"registration_start"`
	RegistrationEnd   time.Time `json:"registration_end"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
}

func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	hostID, err := middleware.GetHostIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var req createTournamentRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t := &models.Tournament{
		RegistrationStart: req.RegistrationStart,
		RegistrationEnd:   req.RegistrationEnd,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
	}
	input := services.CreateTournamentInput{
		Title:           req.Title,
		GameName:        req.GameName,
		EventMode:       models.EventMode(req.EventMode),
		MaxParticipants: req.MaxParticipants,
		MaxMatches:      req.MaxMatches,
	}

	created, err := h.tournamentService.Create(r.Context(), hostID, input, t)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": created}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.tournamentService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": t}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", "20")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", "0")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	filter := repositories.ListTournamentsFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.TournamentStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("event_mode"); raw != "" {
		mode := models.EventMode(raw)
		filter.EventMode = &mode
	}
	if raw := r.URL.Query().Get("game"); raw != "" {
		filter.GameName = &raw
	}

	tournaments, err := h.tournamentService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	h.withHostAndID(w, r, func(tournamentID, hostID int) (interface{}, error) {
		t, err := h.tournamentService.Start(r.Context(), tournamentID, hostID)
		return jsonResponse{"tournament": t}, err
	})
}

func (h *TournamentHandler) EndHandler(w http.ResponseWriter, r *http.Request) {
	h.withHostAndID(w, r, func(tournamentID, hostID int) (interface{}, error) {
		t, err := h.roundService.EndTournament(r.Context(), tournamentID, hostID)
		return jsonResponse{"tournament": t}, err
	})
}

func (h *TournamentHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	h.withHostAndID(w, r, func(tournamentID, hostID int) (interface{}, error) {
		t, err := h.roundService.CancelTournament(r.Context(), tournamentID, hostID)
		return jsonResponse{"tournament": t}, err
	})
}

func (h *TournamentHandler) withHostAndID(w http.ResponseWriter, r *http.Request, fn func(tournamentID, hostID int) (interface{}, error)) {
	hostID, err := middleware.GetHostIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	payload, err := fn(tournamentID, hostID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, payload, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
