package workclock

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// clock state
	r.POST("/work_clock", h.Clock)
	r.GET("/work_clock/clock_in", h.ClockIn)
	r.GET("/work_clock/clock_out", h.ClockOut)
	r.GET("/work_clock/toggle", h.Toggle)
	r.GET("/work_clock/status", h.Status)

	// raw log + daily view
	r.GET("/work_clock/latest", h.Latest)
	r.GET("/work_clock/days", h.Days)

	// historical edits
	r.POST("/work_clock/clock_in_out_at", h.ClockInOutAt)
	r.POST("/work_clock/add_clock_in_out_pair", h.AddPair)
	r.POST("/work_clock/modify", h.Modify)
	r.POST("/work_clock/delete", h.DeletePair)
}

// ===== clock state =====

func (h *Handler) Clock(c *gin.Context) {
	var req ClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	var err error
	if *req.ClockIn {
		err = h.svc.ClockIn(c.Request.Context())
	} else {
		err = h.svc.ClockOut(c.Request.Context())
	}
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ClockIn(c *gin.Context) {
	if err := h.svc.ClockIn(c.Request.Context()); err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ClockOut(c *gin.Context) {
	if err := h.svc.ClockOut(c.Request.Context()); err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Toggle(c *gin.Context) {
	clockedIn, err := h.svc.Toggle(c.Request.Context())
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "clocked_in": clockedIn})
}

func (h *Handler) Status(c *gin.Context) {
	clockedIn, err := h.svc.IsCurrentlyClockedIn(c.Request.Context())
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, StatusResponse{ClockedIn: clockedIn})
}

// ===== raw log + daily view =====

func (h *Handler) Latest(c *gin.Context) {
	limit := atoiDef(c.Query("limit"), DefaultPageLimit)
	events, err := h.svc.LatestEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) Days(c *gin.Context) {
	records, err := h.svc.DailyRecords(c.Request.Context(), c.Query("tz"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": records})
}

// ===== historical edits =====

func (h *Handler) ClockInOutAt(c *gin.Context) {
	var req ClockAtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.ClockInOutAt(c.Request.Context(), *req.ClockIn, req.Timestamp); err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) AddPair(c *gin.Context) {
	var req AddPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.AddClockInOutPair(c.Request.Context(), req.ClockInTimestamp, req.ClockOutTimestamp); err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Modify(c *gin.Context) {
	var req ModifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.ModifyTimestamp(c.Request.Context(), req.WorkClockID, req.NewTimestamp); err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) DeletePair(c *gin.Context) {
	var req DeletePairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.DeletePair(c.Request.Context(), req.ClockInID); err != nil {
		c.JSON(ToHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ===== helpers =====

func atoiDef(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func apiErr(code Code, msg string) gin.H {
	return gin.H{"error": APIError{Code: code, Message: msg}}
}

func apiErrFrom(err error) gin.H {
	var api *APIError
	if errors.As(err, &api) {
		return gin.H{"error": api}
	}
	return gin.H{"error": APIError{Code: CodeInternal, Message: err.Error()}}
}
