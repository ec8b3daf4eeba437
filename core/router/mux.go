package router

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/dmitrymomot/triage/core/handler"
)

// mux is the Router implementation. Inline routers created by With and Group
// share the parent's ServeMux and route list.
type mux[C handler.Context] struct {
	root         *http.ServeMux
	routes       *[]Route
	middlewares  []handler.Middleware[C]
	errorHandler handler.ErrorHandler[C]
	newContext   func(http.ResponseWriter, *http.Request) C
	logger       *slog.Logger
	parent       *mux[C]
	inline       bool
	sealed       bool
}

func newMux[C handler.Context](opts ...Option[C]) *mux[C] {
	m := &mux[C]{
		root:         http.NewServeMux(),
		routes:       &[]Route{},
		errorHandler: defaultErrorHandler[C],
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.newContext == nil {
		m.newContext = func(w http.ResponseWriter, r *http.Request) C {
			var zero C
			if _, ok := any(zero).(*Context); ok {
				return any(NewContext(w, r)).(C)
			}
			panic(ErrNoContextFactory)
		}
	}

	// Unmatched paths go through the error handler instead of ServeMux's text 404.
	m.root.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		err := ErrNotFound
		if m.matchesOtherMethod(r) {
			err = ErrMethodNotAllowed
		}
		m.errorHandler(m.newContext(w, r), err)
	})

	return m
}

// ServeHTTP implements http.Handler.
func (m *mux[C]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.root.ServeHTTP(newResponseWriter(w), r)
}

func (m *mux[C]) Get(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodGet, pattern, h)
}

func (m *mux[C]) Post(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodPost, pattern, h)
}

func (m *mux[C]) Put(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodPut, pattern, h)
}

func (m *mux[C]) Patch(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodPatch, pattern, h)
}

func (m *mux[C]) Delete(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodDelete, pattern, h)
}

func (m *mux[C]) Options(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodOptions, pattern, h)
}

// Use appends middleware to the router.
func (m *mux[C]) Use(middlewares ...handler.Middleware[C]) {
	if m.sealed {
		panic("triage: all middlewares must be defined before routes on a mux")
	}
	m.middlewares = append(m.middlewares, middlewares...)
}

// With creates an inline router with additional middleware.
func (m *mux[C]) With(middlewares ...handler.Middleware[C]) Router[C] {
	return &mux[C]{
		root:         m.root,
		routes:       m.routes,
		middlewares:  middlewares,
		errorHandler: m.errorHandler,
		newContext:   m.newContext,
		logger:       m.logger,
		parent:       m,
		inline:       true,
	}
}

// Group creates an inline router for grouping routes.
func (m *mux[C]) Group(fn func(r Router[C])) Router[C] {
	im := m.With()
	if fn != nil {
		fn(im)
	}
	return im
}

// Routes returns all registered routes in registration order.
func (m *mux[C]) Routes() []Route {
	out := make([]Route, len(*m.routes))
	copy(out, *m.routes)
	return out
}

func (m *mux[C]) handle(method, pattern string, fn handler.HandlerFunc[C]) {
	if len(pattern) == 0 || pattern[0] != '/' {
		panic(fmt.Errorf("%w: '%s'", ErrInvalidPattern, pattern))
	}
	m.sealed = true

	h := chain(m.middlewareChain(), fn)
	*m.routes = append(*m.routes, Route{Method: method, Pattern: pattern})

	m.root.HandleFunc(method+" "+pattern, func(w http.ResponseWriter, r *http.Request) {
		m.serve(w, r, h)
	})
}

// matchesOtherMethod reports whether the path is registered under a different method.
// OPTIONS routes are usually preflight catch-alls and are not probed.
func (m *mux[C]) matchesOtherMethod(r *http.Request) bool {
	seen := make(map[string]bool)
	for _, rt := range *m.routes {
		if rt.Method == r.Method || rt.Method == http.MethodOptions || seen[rt.Method] {
			continue
		}
		seen[rt.Method] = true

		probe := *r
		probe.Method = rt.Method
		if _, pattern := m.root.Handler(&probe); pattern != "" && pattern != "/" {
			return true
		}
	}
	return false
}

// middlewareChain collects middleware from the outermost router inwards.
func (m *mux[C]) middlewareChain() []handler.Middleware[C] {
	var all []handler.Middleware[C]
	for curr := m; curr != nil; curr = curr.parent {
		if len(curr.middlewares) > 0 {
			all = append(append([]handler.Middleware[C]{}, curr.middlewares...), all...)
		}
		if !curr.inline {
			break
		}
	}
	return all
}

func (m *mux[C]) serve(w http.ResponseWriter, r *http.Request, h handler.HandlerFunc[C]) {
	ctx := m.newContext(w, r)

	defer func() {
		if p := recover(); p != nil {
			perr := &panicError{value: p, stack: debug.Stack()}
			if ww, ok := w.(*responseWriter); ok && ww.Written() {
				m.logger.Error("panic after response written",
					"value", perr.value,
					"stack", string(perr.stack),
					"path", r.URL.Path,
					"method", r.Method,
					"status", ww.Status(),
				)
				return
			}
			m.errorHandler(ctx, perr)
		}
	}()

	resp := h(ctx)
	if resp == nil {
		m.errorHandler(ctx, ErrNilResponse)
		return
	}

	// Middleware may have replaced the request (SetValue), so render with ctx's view of it.
	if err := resp(ctx.ResponseWriter(), ctx.Request()); err != nil {
		m.errorHandler(ctx, err)
	}
}

// chain builds a single handler from a middleware stack and endpoint.
// The first middleware runs first.
func chain[C handler.Context](middlewares []handler.Middleware[C], endpoint handler.HandlerFunc[C]) handler.HandlerFunc[C] {
	h := endpoint
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
