package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/triage/core/binder"
	"github.com/dmitrymomot/triage/core/handler"
	"github.com/dmitrymomot/triage/core/response"
	"github.com/dmitrymomot/triage/core/router"
	"github.com/dmitrymomot/triage/internal/aggregator"
	"github.com/dmitrymomot/triage/internal/session"
)

// fragmentRequest uses the collector's wire names.
type fragmentRequest struct {
	SessionID  string         `json:"session_id"`
	Type       string         `json:"type"`
	Data       any            `json:"data"`
	DeviceInfo map[string]any `json:"device_info"`
}

type fragmentResponse struct {
	Success        bool           `json:"success"`
	SessionID      string         `json:"session_id"`
	ItemsCollected int            `json:"items_collected"`
	Status         session.Status `json:"status"`
}

type listRequest struct {
	Limit int `query:"limit"`
}

type listResponse struct {
	Success  bool              `json:"success"`
	Count    int               `json:"count"`
	Sessions []session.Summary `json:"sessions"`
}

type sessionResponse struct {
	Success bool            `json:"success"`
	Session session.Session `json:"session"`
}

type renameRequest struct {
	TargetName *string `json:"target_name"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type descriptor struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

func (a *API) submit(ctx Context) handler.Response {
	var req fragmentRequest
	if err := a.body(ctx.Request(), &req); err != nil {
		return failure(err)
	}

	var deviceInfo map[string]string
	if len(req.DeviceInfo) > 0 {
		deviceInfo = make(map[string]string, len(req.DeviceInfo))
		for k, v := range req.DeviceInfo {
			deviceInfo[k] = aggregator.Stringify(v)
		}
	}

	res, err := a.svc.Submit(ctx, aggregator.Fragment{
		SessionID:  req.SessionID,
		Category:   req.Type,
		Payload:    req.Data,
		DeviceInfo: deviceInfo,
	})
	if err != nil {
		return failure(err)
	}

	return response.JSON(fragmentResponse{
		Success:        true,
		SessionID:      res.SessionID,
		ItemsCollected: res.CategoryCount,
		Status:         res.Status,
	})
}

func (a *API) listSessions(ctx Context) handler.Response {
	var req listRequest
	if err := binder.Query()(ctx.Request(), &req); err != nil {
		return failure(err)
	}

	sessions, err := a.svc.List(ctx, req.Limit)
	if err != nil {
		return failure(err)
	}
	return response.JSON(listResponse{Success: true, Count: len(sessions), Sessions: sessions})
}

func (a *API) getSession(ctx Context) handler.Response {
	s, err := a.svc.Get(ctx, ctx.Param("id"))
	if err != nil {
		return failure(err)
	}
	return response.JSON(sessionResponse{Success: true, Session: s})
}

func (a *API) renameSession(ctx Context) handler.Response {
	var req renameRequest
	if err := a.body(ctx.Request(), &req); err != nil {
		return failure(err)
	}
	if req.TargetName == nil {
		return response.Error(response.ErrBadRequest.WithMessage("target_name is required"))
	}

	s, err := a.svc.Rename(ctx, ctx.Param("id"), *req.TargetName)
	if err != nil {
		return failure(err)
	}
	return response.JSON(sessionResponse{Success: true, Session: s})
}

func (a *API) deleteSession(ctx Context) handler.Response {
	if err := a.svc.Delete(ctx, ctx.Param("id")); err != nil {
		return failure(err)
	}
	return response.JSON(messageResponse{Success: true, Message: "Session deleted"})
}

// describe lists the registered routes, keyed by pattern.
func (a *API) describe(r router.Router[Context]) handler.HandlerFunc[Context] {
	return func(Context) handler.Response {
		endpoints := make(map[string]string)
		for _, rt := range r.Routes() {
			if rt.Method == http.MethodOptions {
				continue
			}
			key := strings.TrimSuffix(rt.Pattern, "{$}")
			if prev, ok := endpoints[key]; ok {
				endpoints[key] = prev + ", " + rt.Method
				continue
			}
			endpoints[key] = rt.Method
		}
		return response.JSON(descriptor{
			Status:    "online",
			Message:   a.cfg.ServiceName,
			Endpoints: endpoints,
		})
	}
}
