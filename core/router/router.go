package router

import (
	"net/http"

	"github.com/dmitrymomot/triage/core/handler"
)

// Router registers typed handlers on top of net/http pattern matching.
// Patterns use the ServeMux syntax, so path wildcards like "{id}" are
// available to handlers through Context.Param.
type Router[C handler.Context] interface {
	http.Handler

	Get(pattern string, h handler.HandlerFunc[C])
	Post(pattern string, h handler.HandlerFunc[C])
	Put(pattern string, h handler.HandlerFunc[C])
	Patch(pattern string, h handler.HandlerFunc[C])
	Delete(pattern string, h handler.HandlerFunc[C])
	Options(pattern string, h handler.HandlerFunc[C])

	// Use appends middleware; it must be called before routes are registered.
	Use(middlewares ...handler.Middleware[C])
	// With returns an inline router sharing the route table with extra middleware.
	With(middlewares ...handler.Middleware[C]) Router[C]
	// Group calls fn with an inline router, scoping any Use calls inside it.
	Group(fn func(r Router[C])) Router[C]

	Routes() []Route
}

// Route describes a registered method and pattern.
type Route struct {
	Method  string
	Pattern string
}

// New creates a router with the given options.
func New[C handler.Context](opts ...Option[C]) Router[C] {
	return newMux[C](opts...)
}
