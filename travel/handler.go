package travel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"viajeia-backend/ai"
	"viajeia-backend/conversation"
	"viajeia-backend/quota"
	"viajeia-backend/realtime"
	"viajeia-backend/security"
	"viajeia-backend/sse"
	"viajeia-backend/trip"
	"viajeia-backend/weather"
)

type RealtimeSource interface {
	Info(ctx context.Context, destination string) (*realtime.Info, error)
}

// Deps groups what the HTTP layer needs. Realtime, Photos and HTTPClient may be nil.
type Deps struct {
	Planner       *Planner
	Conversations *conversation.Service
	Realtime      RealtimeSource
	Weather       *weather.Service
	CountryCodes  *weather.CountryCodes
	Photos        PhotoSource
	Quota         *quota.Validator
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

type Handler struct {
	planner  *Planner
	conv     *conversation.Service
	realtime RealtimeSource
	weather  *weather.Service
	codes    *weather.CountryCodes
	photos   PhotoSource
	quota    *quota.Validator
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Handler{
		planner:  d.Planner,
		conv:     d.Conversations,
		realtime: d.Realtime,
		weather:  d.Weather,
		codes:    d.CountryCodes,
		photos:   d.Photos,
		quota:    d.Quota,
		client:   d.HTTPClient,
		logger:   d.Logger,
		now:      time.Now,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "ViajeIA API is running"}) })

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api.POST("/travel", h.ask)
	api.POST("/travel/stream", h.stream)
	api.POST("/travel/confirm-destination", h.confirm)
	api.GET("/destinations/popular", h.popular)
	api.POST("/destinations/search", h.search)
	api.POST("/realtime-info", h.realtimeInfo)

	api.POST("/conversation/create-session", h.createSession)
	api.POST("/conversation/history", h.history)
	api.POST("/conversation/clear", h.clearHistory)
	api.GET("/itinerary/pdf", h.itineraryPDF)

	api.GET("/weather/cache/stats", h.weatherStats)
	api.POST("/weather/cache/clear", h.weatherClear)
	api.GET("/weather/country-codes/stats", h.countryCodeStats)
	api.POST("/weather/country-codes/clear", h.countryCodeClear)
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

// fail maps planner errors to a status and a message the client can show.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	status, msg := errorStatus(err)
	if msg == "" {
		h.logger.Error(fallback, zap.String("path", c.Request.URL.Path), zap.Error(err))
		msg = fallback
	}
	detail(c, status, msg)
}

func errorStatus(err error) (int, string) {
	var (
		ve *security.ValidationError
		ce *ai.ConfigError
		me *ai.ModelError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &me):
		return http.StatusBadRequest, me.Error()
	case errors.As(err, &ce):
		return http.StatusInternalServerError, ce.Error()
	case errors.Is(err, quota.ErrExhausted):
		return http.StatusTooManyRequests, quota.ErrExhausted.Error()
	case errors.Is(err, conversation.ErrSessionNotFound):
		return http.StatusNotFound, conversation.ErrSessionNotFound.Error()
	case errors.Is(err, ai.ErrEmptyResponse):
		return http.StatusInternalServerError, ai.ErrEmptyResponse.Error()
	}
	return http.StatusInternalServerError, ""
}

// consume charges one consultation to the session and reports the remaining
// count in X-Quota-Remaining. It writes the 429 itself.
func (h *Handler) consume(c *gin.Context, sessionID, flow string) bool {
	if h.quota == nil {
		return true
	}
	remaining, err := h.quota.Consume(sessionID, flow)
	if err != nil {
		h.logger.Info("quota exhausted", zap.String("session_id", sessionID), zap.String("flow", flow))
		detail(c, http.StatusTooManyRequests, err.Error())
		return false
	}
	if remaining != quota.Unlimited {
		c.Header("X-Quota-Remaining", strconv.Itoa(remaining))
	}
	return true
}

type travelRequest struct {
	Question      string `json:"question"`
	Destination   string `json:"destination"`
	SessionID     string `json:"session_id"`
	TripType      string `json:"trip_type"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date"`
	Travelers     int    `json:"travelers"`
}

// query turns the request into a Query. Trip fields, when any is set, are
// validated as a whole form.
func (r travelRequest) query(now time.Time) (Query, error) {
	q := Query{Question: r.Question, Destination: r.Destination, SessionID: r.SessionID}
	if r.TripType == "" && r.DepartureDate == "" && r.ReturnDate == "" && r.Travelers == 0 {
		return q, nil
	}
	t, err := trip.FromForm(r.Destination, r.TripType, r.DepartureDate, r.ReturnDate, r.Travelers)
	if err != nil {
		return q, err
	}
	if err := t.Validate(now); err != nil {
		return q, err
	}
	q.Destination = t.Destination
	q.Trip = &t
	return q, nil
}

// bindQuery validates the request and charges one consultation to its session.
// Nothing is charged when validation fails.
func (h *Handler) bindQuery(c *gin.Context) (Query, bool) {
	var req travelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return Query{}, false
	}
	q, err := req.query(h.now())
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return Query{}, false
	}
	if err := q.normalize(); err != nil {
		h.fail(c, err, "Error al procesar la solicitud")
		return Query{}, false
	}
	if !h.consume(c, q.SessionID, quota.FlowTravelQuestion) {
		return Query{}, false
	}
	return q, true
}

func (h *Handler) refund(sessionID, flow string) {
	if h.quota != nil {
		h.quota.Refund(sessionID, flow)
	}
}

// settle moves the consultation charged to the requested id onto the session
// the planner used. They differ when the planner had to create a session.
func (h *Handler) settle(c *gin.Context, charged, used string) {
	if h.quota == nil || charged == used {
		return
	}
	h.quota.Refund(charged, quota.FlowTravelQuestion)
	remaining, err := h.quota.Consume(used, quota.FlowTravelQuestion)
	if err == nil && remaining != quota.Unlimited {
		c.Header("X-Quota-Remaining", strconv.Itoa(remaining))
	}
}

// prepare plans q, giving the consultation back when preparation fails.
func (h *Handler) prepare(c *gin.Context, q Query) (*plan, bool) {
	pl, err := h.planner.prepare(c.Request.Context(), q)
	if err != nil {
		h.refund(q.SessionID, quota.FlowTravelQuestion)
		h.fail(c, err, "Error al procesar la solicitud")
		return nil, false
	}
	h.settle(c, q.SessionID, pl.sessionID)
	return pl, true
}

func (h *Handler) ask(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	pl, ok := h.prepare(c, q)
	if !ok {
		return
	}
	ans := pl.reply
	if ans == nil {
		var err error
		if ans, err = h.planner.answer(c.Request.Context(), pl); err != nil {
			h.refund(pl.sessionID, quota.FlowTravelQuestion)
			h.fail(c, err, "Error al procesar la solicitud")
			return
		}
	}
	c.JSON(http.StatusOK, ans)
}

// stream sends the session id first, then the answer tokens, then a "result"
// event carrying the complete Answer (weather, photos, sections). A reply cut
// short ends with an "error" event instead and is not kept in the history.
func (h *Handler) stream(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	pl, ok := h.prepare(c, q)
	if !ok {
		return
	}

	if pl.reply != nil {
		ch := make(chan string, 1)
		ch <- pl.reply.Answer
		close(ch)
		sse.Event(c, "session", pl.sessionID)
		sse.StreamThen(c, ch, func() (string, string) { return resultEvent(pl.reply) })
		return
	}

	ctx := c.Request.Context()
	chunks, err := h.planner.gen.Stream(ctx, pl.prompt)
	if err != nil {
		h.refund(pl.sessionID, quota.FlowTravelQuestion)
		h.fail(c, fmt.Errorf("generate answer: %w", err), "Error al procesar la solicitud")
		return
	}
	sse.Event(c, "session", pl.sessionID)

	var (
		full    strings.Builder
		failure error
	)
	out := make(chan string)
	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.Err != nil {
				failure = chunk.Err
				return
			}
			full.WriteString(chunk.Text)
			select {
			case out <- chunk.Text:
			case <-ctx.Done():
				failure = ctx.Err()
				return
			}
		}
	}()
	sse.StreamThen(c, out, func() (string, string) {
		if failure == nil {
			failure = ctx.Err()
		}
		if failure != nil {
			h.refund(pl.sessionID, quota.FlowTravelQuestion)
			return h.errorEvent(pl.sessionID, fmt.Errorf("generate answer: %w", failure))
		}
		ans, err := h.planner.finish(ctx, pl, full.String())
		if err != nil {
			h.refund(pl.sessionID, quota.FlowTravelQuestion)
			return h.errorEvent(pl.sessionID, err)
		}
		return resultEvent(ans)
	})
}

func (h *Handler) errorEvent(sessionID string, err error) (string, string) {
	status, msg := errorStatus(err)
	if msg == "" {
		h.logger.Error("stream failed", zap.String("session_id", sessionID), zap.Int("status", status), zap.Error(err))
		msg = "Error al procesar la solicitud"
	}
	b, _ := json.Marshal(gin.H{"detail": msg})
	return "error", string(b)
}

func resultEvent(ans *Answer) (string, string) {
	b, err := json.Marshal(ans)
	if err != nil {
		return "", ""
	}
	return "result", string(b)
}

func (h *Handler) confirm(c *gin.Context) {
	var req Confirmation
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return
	}
	charged := ""
	if req.Confirmed && strings.TrimSpace(req.OriginalQuestion) != "" {
		sid, err := security.RequireSessionID(req.SessionID)
		if err != nil {
			h.fail(c, err, "Error al procesar confirmación")
			return
		}
		if !h.consume(c, sid, quota.FlowTravelQuestion) {
			return
		}
		req.SessionID, charged = sid, sid
	}
	ans, res, err := h.planner.Confirm(c.Request.Context(), req)
	if err != nil {
		h.refund(charged, quota.FlowTravelQuestion)
		h.fail(c, err, "Error al procesar confirmación")
		return
	}
	if ans != nil {
		c.JSON(http.StatusOK, ans)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) popular(c *gin.Context) {
	list, err := h.planner.Popular(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Error al obtener destinos populares")
		return
	}
	c.JSON(http.StatusOK, gin.H{"destinations": list})
}

func (h *Handler) search(c *gin.Context) {
	var req struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusOK, gin.H{"destinations": []string{}})
		return
	}
	query, err := security.ValidateSearchQuery(req.Query)
	if err != nil {
		h.fail(c, err, "Error al buscar destinos")
		return
	}
	sid, err := security.ValidateSessionID(req.SessionID)
	if err != nil {
		h.fail(c, err, "Error al buscar destinos")
		return
	}
	if !h.consume(c, sid, quota.FlowDestinationSearch) {
		return
	}
	list, err := h.planner.Search(c.Request.Context(), query)
	if err != nil {
		h.refund(sid, quota.FlowDestinationSearch)
		h.fail(c, err, "Error al buscar destinos")
		return
	}
	c.JSON(http.StatusOK, gin.H{"destinations": list})
}
