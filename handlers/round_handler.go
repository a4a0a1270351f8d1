package handlers

import (
	"net/http"

	"github.com/Dosada05/scrimverse-engine/middleware"
	"github.com/Dosada05/scrimverse-engine/services"
)

type RoundHandler struct {
	groupService services.GroupService
	roundService services.RoundService
}

func NewRoundHandler(gs services.GroupService, rs services.RoundService) *RoundHandler {
	return &RoundHandler{
		groupService: gs,
		roundService: rs,
	}
}

// ConfigureRoundHandler нарезает текущий раунд турнира на группы и матчи.
func (h *RoundHandler) ConfigureRoundHandler(w http.ResponseWriter, r *http.Request) {
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

	var input services.ConfigureRoundInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	groups, err := h.groupService.ConfigureRound(r.Context(), tournamentID, hostID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"groups": groups}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type selectTeamsRequest struct {
	Action  string `json:"action"`
	TeamIDs []int  `json:"team_ids"`
}

func (h *RoundHandler) SelectTeamsHandler(w http.ResponseWriter, r *http.Request) {
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

	var req selectTeamsRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	selection, err := h.roundService.SelectTeams(r.Context(), tournamentID, hostID, req.Action, req.TeamIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"selected_team_ids": selection}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RoundHandler) EndRoundHandler(w http.ResponseWriter, r *http.Request) {
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

	t, err := h.roundService.EndRound(r.Context(), tournamentID, hostID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": t}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type selectWinnerRequest struct {
	WinnerTeamID int `json:"winner_team_id"`
}

func (h *RoundHandler) SelectWinnerHandler(w http.ResponseWriter, r *http.Request) {
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

	var req selectWinnerRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.roundService.SelectWinner(r.Context(), tournamentID, hostID, req.WinnerTeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": t}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RoundResultsHandler отдаёт сводку раунда: группы со standings,
// прошедшие и выбывшие команды.
func (h *RoundHandler) RoundResultsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	roundNumber, err := idParam(r, "roundNumber")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	results, err := h.roundService.RoundResults(r.Context(), tournamentID, roundNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RoundHandler) GetGroupHandler(w http.ResponseWriter, r *http.Request) {
	groupID, err := idParam(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	group, err := h.groupService.GetGroup(r.Context(), groupID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"group": group}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RoundHandler) GroupStandingsHandler(w http.ResponseWriter, r *http.Request) {
	groupID, err := idParam(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.groupService.GroupStandings(r.Context(), groupID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
