package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/middleware"
	"github.com/iliyamo/civic-incident-reporting/internal/service"
)

// IncidentHandler serves incidents, their comments and media, and the admin
// incident endpoints.
type IncidentHandler struct {
	Incidents *service.IncidentService
	Log       *zap.SugaredLogger
}

func NewIncidentHandler(incidents *service.IncidentService, log *zap.SugaredLogger) *IncidentHandler {
	if incidents == nil {
		panic("nil service passed to NewIncidentHandler")
	}
	return &IncidentHandler{Incidents: incidents, Log: nopIfNil(log)}
}

func (h *IncidentHandler) Create(c echo.Context) error {
	var req service.IncidentInput
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	inc, err := h.Incidents.Create(ctx, middleware.CallerFrom(c), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, inc)
}

func (h *IncidentHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	items, err := h.Incidents.List(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *IncidentHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	inc, err := h.Incidents.Get(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, inc)
}

func (h *IncidentHandler) Mine(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	items, err := h.Incidents.ListMine(ctx, middleware.CallerFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *IncidentHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req service.IncidentPatch
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	inc, err := h.Incidents.Update(ctx, middleware.CallerFrom(c), id, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, inc)
}

func (h *IncidentHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Incidents.Delete(ctx, middleware.CallerFrom(c), id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Incident deleted"})
}

func (h *IncidentHandler) AddComment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req service.CommentInput
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	cm, err := h.Incidents.AddComment(ctx, middleware.CallerFrom(c), id, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cm)
}

func (h *IncidentHandler) ListComments(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	items, err := h.Incidents.ListComments(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, items)
}

// UploadMedia expects a multipart form with a "file" part.
func (h *IncidentHandler) UploadMedia(c echo.Context) error {
	id, err := pathID(c, "incident_id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, h.Log, apperr.Invalid("file", "no file part"))
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, h.Log, apperr.Invalid("file", "unreadable upload"))
	}
	defer f.Close()

	ctx, cancel := withTimeout(c)
	defer cancel()

	m, err := h.Incidents.AttachMedia(ctx, middleware.CallerFrom(c), id, fh.Filename, f)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *IncidentHandler) DeleteMedia(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Incidents.DeleteMedia(ctx, middleware.CallerFrom(c), id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Media deleted"})
}

// AdminList accepts an optional ?status= filter.
func (h *IncidentHandler) AdminList(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	items, err := h.Incidents.AdminList(ctx, middleware.CallerFrom(c), c.QueryParam("status"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, items)
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *IncidentHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	inc, err := h.Incidents.UpdateStatus(ctx, middleware.CallerFrom(c), id, req.Status)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Incident status updated to " + string(inc.Status), "incident": inc})
}
