package travel

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"viajeia-backend/conversation"
	"viajeia-backend/itinerary"
	"viajeia-backend/realtime"
	"viajeia-backend/security"
	"viajeia-backend/trip"
	"viajeia-backend/weather"
)

const (
	itineraryPhotos    = 6
	unknownDestination = "Destino no especificado"
)

func (h *Handler) realtimeInfo(c *gin.Context) {
	var req struct {
		Destination string `json:"destination"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "El destino es requerido")
		return
	}
	dest, err := security.RequireDestination(req.Destination)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	if h.realtime == nil {
		detail(c, http.StatusNotFound, realtime.ErrNoInfo.Error())
		return
	}
	info, err := h.realtime.Info(c.Request.Context(), dest)
	if errors.Is(err, realtime.ErrNoInfo) {
		detail(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.fail(c, err, "Error al obtener información en tiempo real")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) createSession(c *gin.Context) {
	sid, err := h.conv.CreateSession(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Error al crear la sesión")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sid, "message": "Sesión de conversación creada exitosamente"})
}

func (h *Handler) bindSession(c *gin.Context) (string, bool) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "El session ID es requerido")
		return "", false
	}
	sid, err := security.RequireSessionID(req.SessionID)
	if err != nil {
		h.fail(c, err, "")
		return "", false
	}
	return sid, true
}

func (h *Handler) history(c *gin.Context) {
	sid, ok := h.bindSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	msgs, err := h.conv.History(ctx, sid)
	if err != nil {
		h.fail(c, err, "Error al obtener el historial")
		return
	}
	stats, err := h.conv.Stats(ctx, sid)
	if err != nil {
		h.fail(c, err, "Error al obtener el historial")
		return
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sid, "messages": msgs, "stats": stats})
}

func (h *Handler) clearHistory(c *gin.Context) {
	sid, ok := h.bindSession(c)
	if !ok {
		return
	}
	if err := h.conv.Clear(c.Request.Context(), sid); err != nil {
		h.fail(c, err, "Error al limpiar el historial")
		return
	}
	h.logger.Info("history cleared", zap.String("session_id", sid))
	c.JSON(http.StatusOK, gin.H{"session_id": sid, "message": "Historial limpiado exitosamente"})
}

func displayDate(s string) (string, error) {
	d, err := trip.ParseDate(s)
	if err != nil || d == nil {
		return "", err
	}
	return trip.FormatDate(*d), nil
}

func (h *Handler) itineraryPDF(c *gin.Context) {
	sid, err := security.RequireSessionID(c.Query("session_id"))
	if err != nil {
		h.fail(c, err, "")
		return
	}
	departure, err := displayDate(c.Query("departure_date"))
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	ret, err := displayDate(c.Query("return_date"))
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	msgs, err := h.conv.Messages(ctx, sid, 0)
	if err != nil {
		h.fail(c, err, "Error al generar el PDF")
		return
	}
	if len(msgs) == 0 {
		detail(c, http.StatusNotFound, "No se encontró historial de conversación para esta sesión")
		return
	}

	dest, err := h.conv.CurrentDestination(ctx, sid)
	if err == nil && dest == "" {
		dest, err = h.conv.ExtractLastDestination(ctx, sid)
	}
	if err != nil {
		h.fail(c, err, "Error al generar el PDF")
		return
	}
	if dest == "" {
		dest = unknownDestination
	}

	doc := itinerary.Document{Destination: dest, Departure: departure, Return: ret, Messages: msgs}
	if h.photos != nil && h.photos.Available() && dest != unknownDestination {
		doc.Images = itinerary.FetchImages(ctx, h.client, h.photos.Search(ctx, dest, itineraryPhotos))
	}

	var buf bytes.Buffer
	if err := itinerary.Render(&buf, doc); err != nil {
		h.logger.Error("render itinerary", zap.String("session_id", sid), zap.Error(err))
		detail(c, http.StatusInternalServerError, "Error al generar el PDF")
		return
	}
	name := itinerary.Filename(dest)
	h.logger.Info("itinerary generated", zap.String("session_id", sid), zap.String("file", name),
		zap.Int("bytes", buf.Len()), zap.Int("images", len(doc.Images)))
	c.Header("Content-Disposition", itinerary.ContentDisposition(name))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *Handler) weatherStats(c *gin.Context) {
	if h.weather == nil || !h.weather.Available() {
		c.JSON(http.StatusOK, gin.H{"error": weather.ErrUnavailable.Error(), "cache_stats": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cache_stats": h.weather.CacheStats(), "api_available": h.weather.Reachable()})
}

func (h *Handler) weatherClear(c *gin.Context) {
	if h.weather == nil || !h.weather.Available() {
		c.JSON(http.StatusOK, gin.H{"error": weather.ErrUnavailable.Error(), "cleared": false})
		return
	}
	h.weather.ClearCache()
	c.JSON(http.StatusOK, gin.H{"message": "Cache limpiado exitosamente", "cleared": true})
}

func (h *Handler) countryCodeStats(c *gin.Context) {
	if h.codes == nil {
		c.JSON(http.StatusOK, gin.H{"cache_stats": weather.CountryCodeStats{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cache_stats": h.codes.Stats()})
}

func (h *Handler) countryCodeClear(c *gin.Context) {
	if h.codes != nil {
		h.codes.Clear()
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cache de códigos de países limpiado exitosamente", "cleared": true})
}
