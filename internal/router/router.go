package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"

	apiHandler "github.com/fastygo/taskpulse/api/handler"
)

type Handlers struct {
	Task     *apiHandler.TaskHandler
	Insight  *apiHandler.InsightHandler
	Feedback *apiHandler.FeedbackHandler
	Health   *apiHandler.HealthHandler
}

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Options toggles optional routes.
type Options struct {
	EnablePprof bool
}

func New(handlers Handlers, requireUser Middleware, opts Options) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if opts.EnablePprof {
		r.GET("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
	}

	api := r.Group("/api/v1")

	api.GET("/tasks", requireUser(handlers.Task.GetTasks))
	api.POST("/tasks", requireUser(handlers.Task.CreateTask))
	api.GET("/tasks/{id}", requireUser(handlers.Task.GetTask))
	api.PUT("/tasks/{id}", requireUser(handlers.Task.UpdateTask))
	api.DELETE("/tasks/{id}", requireUser(handlers.Task.DeleteTask))
	api.POST("/tasks/{id}/toggle", requireUser(handlers.Task.ToggleTask))

	api.POST("/tasks/{id}/subtasks", requireUser(handlers.Task.AddSubtask))
	api.POST("/tasks/{id}/subtasks/{sid}/toggle", requireUser(handlers.Task.ToggleSubtask))
	api.PUT("/tasks/{id}/subtasks/{sid}", requireUser(handlers.Task.UpdateSubtask))
	api.DELETE("/tasks/{id}/subtasks/{sid}", requireUser(handlers.Task.DeleteSubtask))

	api.GET("/views/{view}", requireUser(handlers.Insight.View))
	api.GET("/trends/{granularity}", requireUser(handlers.Insight.Trend))

	api.GET("/feedback", requireUser(handlers.Feedback.Get))
	api.POST("/feedback/refresh", requireUser(handlers.Feedback.Refresh))

	return r
}
