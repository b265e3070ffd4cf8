package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"TownSquare/internal/middleware"
	"TownSquare/internal/model"
	"TownSquare/internal/service"
)

const EventsPath = "/api/events"

type EventHandler struct {
	svc    *service.EventService
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewEventHandler loc 为活动所在时区，决定首页的“今天”
func NewEventHandler(svc *service.EventService, loc *time.Location, logger *zap.Logger) *EventHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &EventHandler{svc: svc, loc: loc, now: time.Now, logger: logger}
}

// localToday now 在 loc 中的日期，以 UTC 零点表示（与库中 date 一致）
func localToday(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseDateQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	d, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid " + key + ", expected YYYY-MM-DD"})
		return nil, false
	}
	return &d, true
}

// List 活动列表，支持关键字/分类/日期范围过滤
func (h *EventHandler) List(c *gin.Context) {
	start, ok := parseDateQuery(c, "start_date")
	if !ok {
		return
	}
	end, ok := parseDateQuery(c, "end_date")
	if !ok {
		return
	}
	res, err := h.svc.List(c.Request.Context(), service.ListFilter{
		Keyword:   c.Query("keyword"),
		Category:  c.Query("category"),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *EventHandler) Detail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.svc.Detail(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *EventHandler) Create(c *gin.Context) {
	var in service.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	e, err := h.svc.Create(c.Request.Context(), middleware.CallerFrom(c), in)
	if err != nil {
		failWithInput(c, h.logger, err, in)
		return
	}
	c.Header("Location", EventsPath+"/"+strconv.FormatUint(e.ID, 10))
	c.JSON(http.StatusCreated, gin.H{"id": e.ID, "redirect": EventsPath})
}

// EditForm 返回编辑表单的当前值
func (h *EventHandler) EditForm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	v, err := h.svc.EditForm(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *EventHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in service.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	e, err := h.svc.Update(c.Request.Context(), middleware.CallerFrom(c), id, in)
	if err != nil {
		failWithInput(c, h.logger, err, in)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": e.ID, "version": e.Version, "redirect": EventsPath})
}

func (h *EventHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CallerFrom(c), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok", "redirect": EventsPath})
}

// Home 首页：最近 10 个即将开始的活动
func (h *EventHandler) Home(c *gin.Context) {
	events, err := h.svc.Upcoming(c.Request.Context(), localToday(h.now(), h.loc))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upcoming_events": events})
}

func (h *EventHandler) Profile(c *gin.Context) {
	res, err := h.svc.Profile(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
