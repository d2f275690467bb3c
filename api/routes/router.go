package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jackvaisey/user-service/api/controllers"
	"github.com/jackvaisey/user-service/api/middleware"
	"github.com/jackvaisey/user-service/pkg/logger"
)

// New assembles the service router: request id, logging, and panic
// recovery around the user endpoints.
func New(usersController *controllers.Users, logg *logger.Logger) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID(logg))
	router.Use(middleware.Logging(logg))
	router.Use(middleware.Recoverer(logg))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api/users", func(r chi.Router) {
		r.Post("/", usersController.Register)
		r.Post("/login", usersController.Login)
		r.Get("/{id}", usersController.Get)
		r.Put("/{id}", usersController.Update)
		r.Delete("/{id}", usersController.Delete)
	})

	return router
}
