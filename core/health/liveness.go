package health

import (
	"github.com/dmitrymomot/triage/core/handler"
	"github.com/dmitrymomot/triage/core/response"
)

// Liveness reports that the process is up. No dependency checks.
func Liveness[C handler.Context](C) handler.Response {
	return response.String("ALIVE")
}
