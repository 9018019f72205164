// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avdeevk/job-board/internal/config"
	"github.com/avdeevk/job-board/internal/handler"
	"github.com/avdeevk/job-board/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth      *handler.AuthHandler
	Roles     *handler.RoleHandler
	Vacancies *handler.VacancyHandler
	Resumes   *handler.ResumeHandler
	Comments  *handler.CommentHandler
}

// Register mounts all routes.  Public browse endpoints carry the Redis
// response cache; the credential endpoints carry the rate limiter;
// everything else sits behind the access token gate.
func Register(e *echo.Echo, h Handlers, verifier middleware.TokenVerifier, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Credential endpoints: no token required, rate limited.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register, limiter)
	auth.POST("/login", h.Auth.Login, limiter)
	auth.POST("/refresh", h.Auth.Refresh)

	// Session and account management: valid access token required.
	me := e.Group("/v1/auth", middleware.JWTAuth(verifier))
	me.POST("/logout", h.Auth.Logout)
	me.POST("/logout-all", h.Auth.LogoutAll)
	me.GET("/me", h.Auth.Me)
	me.GET("/me/roles", h.Auth.MyRoles)
	me.PATCH("/me", h.Auth.UpdateMe)
	me.DELETE("/me", h.Auth.Deactivate)
	me.POST("/password", h.Auth.ChangePassword)
	me.GET("/entries", h.Auth.Entries)

	// Public vacancy browsing, cached.
	e.GET("/v1/vacancies", h.Vacancies.List, cache)
	e.GET("/v1/vacancies/:id", h.Vacancies.Get, cache)
	e.GET("/v1/vacancies/:id/comments", h.Comments.ListByVacancy, cache)

	// Authenticated resource mutations.
	api := e.Group("/v1", middleware.JWTAuth(verifier))
	api.POST("/vacancies", h.Vacancies.Create)
	api.PATCH("/vacancies/:id", h.Vacancies.Update)
	api.DELETE("/vacancies/:id", h.Vacancies.Delete)
	api.POST("/vacancies/:id/comments", h.Comments.Create)
	api.PATCH("/comments/:id", h.Comments.Update)
	api.DELETE("/comments/:id", h.Comments.Delete)

	api.GET("/resumes", h.Resumes.List)
	api.GET("/resumes/:id", h.Resumes.Get)
	api.POST("/resumes", h.Resumes.Create)
	api.PATCH("/resumes/:id", h.Resumes.Update)
	api.DELETE("/resumes/:id", h.Resumes.Delete)

	// Role administration is admin-only.
	admin := e.Group("/v1/roles", middleware.JWTAuth(verifier), middleware.RequireRole("admin"))
	admin.POST("", h.Roles.Create)
	admin.GET("", h.Roles.List)
	admin.GET("/:id", h.Roles.Get)
	admin.PATCH("/:id", h.Roles.Update)
	admin.DELETE("/:id", h.Roles.Delete)
	admin.POST("/assign", h.Roles.Assign)
	admin.POST("/unassign", h.Roles.Unassign)
}
