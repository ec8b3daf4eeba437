// Package router is a generic HTTP router built on net/http pattern matching.
//
// Handlers receive a typed context and return a handler.Response; errors from
// handlers, from rendering, unmatched paths and recovered panics all flow
// through one ErrorHandler so the API renders them consistently.
//
//	r := router.New[*router.Context](
//		router.WithErrorHandler(response.JSONErrorHandler[*router.Context]),
//		router.WithMiddleware(middleware.RequestID[*router.Context]()),
//	)
//
//	r.Get("/api/sessions/{id}", func(ctx *router.Context) handler.Response {
//		return response.JSON(map[string]string{"id": ctx.Param("id")})
//	})
//
//	r.Group(func(r router.Router[*router.Context]) {
//		r.Use(middleware.BearerAuth[*router.Context](verifier))
//		r.Delete("/api/sessions/{id}", deleteSession)
//	})
//
// Middleware registered with Use must be added before any route on the same
// router; Group and With create inline routers that share the route table
// and scope their own middleware.
package router
