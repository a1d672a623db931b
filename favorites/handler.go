package favorites

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"viajeia-backend/itinerary"
	"viajeia-backend/security"
	"viajeia-backend/trip"
)

type Handler struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(repo Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger, now: time.Now}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/api/favorites")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.GET("/:id/pdf", h.download)
	g.DELETE("/:id", h.delete)
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func (h *Handler) session(c *gin.Context) (string, bool) {
	id, err := security.RequireSessionID(c.Query("session_id"))
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

func (h *Handler) list(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	items, err := h.repo.List(c.Request.Context(), sid)
	if err != nil {
		h.logger.Error("list favorites", zap.String("session_id", sid), zap.Error(err))
		detail(c, http.StatusInternalServerError, "Error al obtener los favoritos")
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": items})
}

// maxBodyBytes fits a base64 PDF of MaxPDFBytes plus the other fields.
const maxBodyBytes = MaxPDFBytes/3*4 + 64<<10

type createRequest struct {
	SessionID     string `json:"session_id"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date"`
	PDFBase64     string `json:"pdf_base64"`
}

func decodePDF(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}

func (h *Handler) create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			detail(c, http.StatusRequestEntityTooLarge, "El PDF supera el tamaño máximo de 10 MB")
			return
		}
		detail(c, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	sid, err := security.RequireSessionID(req.SessionID)
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	dest, err := security.RequireDestination(req.Destination)
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	for _, d := range []string{req.DepartureDate, req.ReturnDate} {
		if _, err := trip.ParseDate(d); err != nil {
			detail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if base64.StdEncoding.DecodedLen(len(req.PDFBase64)) > MaxPDFBytes+3 {
		detail(c, http.StatusRequestEntityTooLarge, "El PDF supera el tamaño máximo de 10 MB")
		return
	}
	data, err := decodePDF(req.PDFBase64)
	if err != nil || len(data) == 0 {
		detail(c, http.StatusBadRequest, "El PDF no está codificado en base64 válido")
		return
	}
	if len(data) > MaxPDFBytes {
		detail(c, http.StatusRequestEntityTooLarge, "El PDF supera el tamaño máximo de 10 MB")
		return
	}
	pages, err := itinerary.Inspect(data)
	if err != nil {
		detail(c, http.StatusBadRequest, itinerary.ErrNotPDF.Error())
		return
	}

	f := &Favorite{
		ID:            uuid.NewString(),
		SessionID:     sid,
		Destination:   dest,
		DepartureDate: strings.TrimSpace(req.DepartureDate),
		ReturnDate:    strings.TrimSpace(req.ReturnDate),
		Pages:         pages,
		CreatedAt:     h.now().UTC(),
		PDF:           data,
	}
	if err := h.repo.Create(c.Request.Context(), f); err != nil {
		h.logger.Error("create favorite", zap.String("session_id", sid), zap.Error(err))
		detail(c, http.StatusInternalServerError, "Error al guardar el favorito")
		return
	}
	h.logger.Info("favorite saved", zap.String("session_id", sid), zap.String("favorite_id", f.ID), zap.Int("pages", pages))
	c.JSON(http.StatusCreated, f)
}

func (h *Handler) find(c *gin.Context) (*Favorite, bool) {
	sid, ok := h.session(c)
	if !ok {
		return nil, false
	}
	f, err := h.repo.Get(c.Request.Context(), sid, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		detail(c, http.StatusNotFound, ErrNotFound.Error())
		return nil, false
	}
	if err != nil {
		h.logger.Error("get favorite", zap.String("favorite_id", c.Param("id")), zap.Error(err))
		detail(c, http.StatusInternalServerError, "Error al obtener el favorito")
		return nil, false
	}
	return f, true
}

func (h *Handler) get(c *gin.Context) {
	f, ok := h.find(c)
	if !ok {
		return
	}
	f.PDFBase64 = base64.StdEncoding.EncodeToString(f.PDF)
	c.JSON(http.StatusOK, f)
}

func (h *Handler) download(c *gin.Context) {
	f, ok := h.find(c)
	if !ok {
		return
	}
	name := itinerary.Filename(f.Destination)
	c.Header("Content-Disposition", itinerary.ContentDisposition(name))
	c.Data(http.StatusOK, "application/pdf", f.PDF)
}

func (h *Handler) delete(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	err := h.repo.Delete(c.Request.Context(), sid, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		detail(c, http.StatusNotFound, ErrNotFound.Error())
		return
	}
	if err != nil {
		h.logger.Error("delete favorite", zap.String("favorite_id", c.Param("id")), zap.Error(err))
		detail(c, http.StatusInternalServerError, "Error al eliminar el favorito")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Favorito eliminado", "id": c.Param("id")})
}
