package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // alias to avoid conflict
	"github.com/go-chi/cors"

	"github.com/openlaps/apexfantasy/handlers"
	"github.com/openlaps/apexfantasy/middleware"
	"github.com/openlaps/apexfantasy/models"
)

// SetupRoutes mounts every HTTP endpoint on the router. All data routes
// run under SeasonContext so handlers can resolve the season from the
// request; mutating routes additionally require authentication, and the
// administrative subtree requires the admin role.
func SetupRoutes(
	router *chi.Mux,
	authHandler *handlers.AuthHandler,
	managerHandler *handlers.ManagerHandler,
	driverHandler *handlers.DriverHandler,
	raceHandler *handlers.RaceHandler,
	rosterHandler *handlers.RosterHandler,
	settlementHandler *handlers.SettlementHandler,
	seasonHandler *handlers.SeasonHandler,
	webSocketHandler *handlers.WebSocketHandler,
	tokenParser middleware.TokenParser,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/ws", webSocketHandler.Serve)

	router.Group(func(r chi.Router) {
		r.Use(middleware.SeasonContext)

		r.Post("/auth/signup", authHandler.SignUp)
		r.Post("/auth/signin", authHandler.SignIn)

		// Публичные маршруты для просмотра сезона
		r.Get("/seasons", seasonHandler.List)
		r.Get("/seasons/{year}/stats", seasonHandler.Stats)
		r.Get("/drivers", driverHandler.List)
		r.Get("/drivers/{id}", driverHandler.Get)
		r.Get("/drivers/{id}/analysis", settlementHandler.DriverAnalysis)
		r.Get("/races", raceHandler.List)
		r.Get("/races/{id}", raceHandler.Get)
		r.Get("/races/history", settlementHandler.History)
		r.Get("/managers/leaderboard", managerHandler.Leaderboard)
		r.Get("/managers/{id}", managerHandler.Get)

		// Маршруты, требующие аутентификации
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(tokenParser))

			r.Get("/me", managerHandler.Me)

			r.Post("/rosters", rosterHandler.Create)
			r.Post("/rosters/validate", rosterHandler.Validate)
			r.Get("/rosters/{id}", rosterHandler.Get)
			r.Put("/rosters/{id}", rosterHandler.Update)
			r.Delete("/rosters/{id}", rosterHandler.Delete)
			r.Get("/races/{raceID}/rosters/own", rosterHandler.GetOwn)
			r.Get("/races/{raceID}/rosters", rosterHandler.ListByRace)

			// Административные маршруты
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))

				r.Post("/drivers", driverHandler.Create)
				r.Put("/drivers/{id}", driverHandler.Update)
				r.Delete("/drivers/{id}", driverHandler.Delete)
				r.Post("/drivers/{id}/portrait", driverHandler.UploadPortrait)

				r.Post("/races", raceHandler.Create)
				r.Put("/races/{id}", raceHandler.Update)
				r.Patch("/races/{id}/lock", raceHandler.SetLocked)
				r.Delete("/races/{id}", raceHandler.Delete)

				r.Post("/races/{raceID}/settle", settlementHandler.Settle)
				r.Post("/races/{raceID}/simulate", settlementHandler.Simulate)

				r.Post("/seasons/{year}", seasonHandler.Init)
				r.Post("/seasons/copy", seasonHandler.Copy)

				r.Delete("/managers/{id}", managerHandler.Delete)
			})
		})
	})
}
