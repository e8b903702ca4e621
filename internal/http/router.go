package http

import (
	"net/http"
	"time"

	"github.com/FLG2005/todo-api/internal/auth"
	"github.com/FLG2005/todo-api/internal/catalog"
	"github.com/FLG2005/todo-api/internal/repo"
	"github.com/FLG2005/todo-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type API struct {
	Repo    *repo.Repo
	Service *service.Service
	Auth    *auth.Manager
	Catalog *catalog.Catalog
	Origins []string
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(loggingMiddleware)
	r.Use(a.corsMiddleware)

	r.Get("/health", a.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.authMiddleware)
		r.Get("/me", a.handleMe)
		r.Get("/settings", a.handleGetSettings)
		r.Put("/settings", a.handleUpdateSettings)

		r.Route("/lists", func(r chi.Router) {
			r.Get("/", a.handleListLists)
			r.Post("/", a.handleCreateList)
			r.Put("/{id}", a.handleRenameList)
			r.Delete("/{id}", a.handleDeleteList)
		})
		r.Route("/todos", func(r chi.Router) {
			r.Get("/", a.handleListTodos)
			r.Post("/", a.handleCreateTodo)
			r.Get("/{id}", a.handleGetTodo)
			r.Put("/{id}", a.handleUpdateTodo)
			r.Delete("/{id}", a.handleDeleteTodo)
			r.Get("/{id}/related", a.handleRelatedTodos)
			r.Post("/{id}/complete", a.handleCompleteTodo)
		})
		r.Route("/store", func(r chi.Router) {
			r.Get("/catalog", a.handleStoreCatalog)
			r.Post("/purchase", a.handlePurchase)
			r.Post("/equip", a.handleEquip)
		})
		r.Post("/goals/score", a.handleScoreGoal)
	})

	return r
}
