package routes

import (
	"github.com/Dosada05/scrimverse-engine/handlers"
	"github.com/Dosada05/scrimverse-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

// SetupRoutes собирает весь HTTP API движка: публичные маршруты просмотра
// и защищённые маршруты хоста для управления турниром.
func SetupRoutes(
	tournamentHandler *handlers.TournamentHandler,
	roundHandler *handlers.RoundHandler,
	matchHandler *handlers.MatchHandler,
	leaderboardHandler *handlers.LeaderboardHandler,
	wsHandler *handlers.WebSocketHandler,
	jwtSecret []byte,
) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты для просмотра турниров
		r.Get("/", tournamentHandler.ListHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetHandler)
		r.Get("/{tournamentID}/rounds/{roundNumber}/results", roundHandler.RoundResultsHandler)

		// Защищенные маршруты только для хостов
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("host"))

			r.Post("/", tournamentHandler.CreateHandler)
			r.Post("/{tournamentID}/start", tournamentHandler.StartHandler)
			r.Post("/{tournamentID}/end", tournamentHandler.EndHandler)
			r.Post("/{tournamentID}/cancel", tournamentHandler.CancelHandler)

			r.Post("/{tournamentID}/rounds/configure", roundHandler.ConfigureRoundHandler)
			r.Post("/{tournamentID}/rounds/select-teams", roundHandler.SelectTeamsHandler)
			r.Post("/{tournamentID}/rounds/end", roundHandler.EndRoundHandler)
			r.Post("/{tournamentID}/winner", roundHandler.SelectWinnerHandler)
		})
	})

	router.Route("/groups", func(r chi.Router) {
		r.Get("/{groupID}", roundHandler.GetGroupHandler)
		r.Get("/{groupID}/standings", roundHandler.GroupStandingsHandler)
	})

	router.Route("/matches", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("host"))

			r.Patch("/{matchID}/room", matchHandler.UpdateRoomDetailsHandler)
			r.Post("/{matchID}/start", matchHandler.StartMatchHandler)
			r.Post("/{matchID}/end", matchHandler.EndMatchHandler)
			r.Post("/{matchID}/cancel", matchHandler.CancelMatchHandler)
			r.Post("/{matchID}/scores", matchHandler.SubmitScoresHandler)
		})
	})

	router.Route("/leaderboard", func(r chi.Router) {
		r.Get("/", leaderboardHandler.GetLeaderboardHandler)
		r.Get("/teams/{teamID}", leaderboardHandler.GetTeamHandler)
	})

	router.Get("/ws/tournaments/{tournamentID}", wsHandler.ServeWs)
	router.Get("/ws/leaderboard", wsHandler.ServeLeaderboardWs)

	return router
}
