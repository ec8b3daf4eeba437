// Package handler defines the generic handler, response and middleware types
// shared by the router, response, health and middleware packages.
//
// Handlers return a Response closure instead of writing to the ResponseWriter
// directly, which lets middleware decorate the rendered output and lets the
// router route every failure through a single ErrorHandler:
//
//	func getSession(svc *aggregator.Engine) handler.HandlerFunc[*Context] {
//		return func(ctx *Context) handler.Response {
//			sess, err := svc.Get(ctx, ctx.Param("id"))
//			if err != nil {
//				return response.Error(err)
//			}
//			return response.JSON(sess)
//		}
//	}
package handler
