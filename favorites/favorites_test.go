package favorites

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viajeia-backend/conn"
	"viajeia-backend/conversation"
	"viajeia-backend/itinerary"
	"viajeia-backend/migrations"
)

func newSQLRepository(t *testing.T) Repository {
	t.Helper()
	db, err := conn.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Migrate(context.Background(), db, conn.SQLite))
	return NewSQLRepository(db)
}

func repositories(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sql":    newSQLRepository(t),
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			sid := uuid.NewString()
			older := &Favorite{ID: "a", SessionID: sid, Destination: "Roma, Italia", PDF: []byte("%PDF-a"), Pages: 1, CreatedAt: base}
			newer := &Favorite{ID: "b", SessionID: sid, Destination: "Lima, Perú", DepartureDate: "2026-05-01", PDF: []byte("%PDF-b"), Pages: 2, CreatedAt: base.Add(time.Hour)}
			other := &Favorite{ID: "c", SessionID: uuid.NewString(), Destination: "Cusco, Perú", PDF: []byte("%PDF-c"), CreatedAt: base}
			for _, f := range []*Favorite{older, newer, other} {
				require.NoError(t, repo.Create(ctx, f))
			}

			list, err := repo.List(ctx, sid)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "b", list[0].ID)
			assert.Equal(t, "a", list[1].ID)
			assert.Nil(t, list[0].PDF)
			assert.Equal(t, "2026-05-01", list[0].DepartureDate)
			assert.True(t, base.Add(time.Hour).Equal(list[0].CreatedAt))

			got, err := repo.Get(ctx, sid, "b")
			require.NoError(t, err)
			assert.Equal(t, []byte("%PDF-b"), got.PDF)
			assert.Equal(t, 2, got.Pages)

			_, err = repo.Get(ctx, sid, "c")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, repo.Delete(ctx, sid, "a"))
			assert.ErrorIs(t, repo.Delete(ctx, sid, "a"), ErrNotFound)
			list, err = repo.List(ctx, sid)
			require.NoError(t, err)
			assert.Len(t, list, 1)

			empty, err := repo.List(ctx, uuid.NewString())
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)
		})
	}
}

func samplePDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, itinerary.Render(&buf, itinerary.Document{
		Destination: "Roma, Italia",
		Messages:    []conversation.Message{{Role: conversation.RoleAssistant, Content: "Visita el Coliseo"}},
	}))
	return buf.Bytes()
}

func setupRouter(repo Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(repo, nil).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerLifecycle(t *testing.T) {
	r := setupRouter(NewMemoryRepository())
	sid := uuid.NewString()
	pdf := samplePDF(t)

	w := do(r, http.MethodPost, "/api/favorites", map[string]string{
		"session_id":     sid,
		"destination":    "Roma, Italia",
		"departure_date": "2026-06-01",
		"return_date":    "2026-06-08",
		"pdf_base64":     "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created Favorite
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Roma, Italia", created.Destination)
	assert.GreaterOrEqual(t, created.Pages, 1)
	assert.Empty(t, created.PDFBase64)

	w = do(r, http.MethodGet, "/api/favorites?session_id="+sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Favorites []Favorite `json:"favorites"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Favorites, 1)
	assert.Empty(t, listResp.Favorites[0].PDFBase64)

	w = do(r, http.MethodGet, "/api/favorites/"+created.ID+"?session_id="+sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var full Favorite
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &full))
	assert.Equal(t, base64.StdEncoding.EncodeToString(pdf), full.PDFBase64)

	w = do(r, http.MethodGet, "/api/favorites/"+created.ID+"/pdf?session_id="+sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "itinerario_Roma_Italia.pdf")
	assert.Equal(t, pdf, w.Body.Bytes())

	w = do(r, http.MethodGet, "/api/favorites/"+created.ID+"?session_id="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodDelete, "/api/favorites/"+created.ID+"?session_id="+sid, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodDelete, "/api/favorites/"+created.ID+"?session_id="+sid, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerValidation(t *testing.T) {
	r := setupRouter(NewMemoryRepository())
	sid := uuid.NewString()
	valid := base64.StdEncoding.EncodeToString(samplePDF(t))

	cases := []struct {
		name   string
		body   map[string]string
		status int
		detail string
	}{
		{"bad session", map[string]string{"session_id": "nope", "destination": "Roma, Italia", "pdf_base64": valid}, http.StatusBadRequest, "UUID"},
		{"bad destination", map[string]string{"session_id": sid, "destination": "<script>", "pdf_base64": valid}, http.StatusBadRequest, ""},
		{"bad date", map[string]string{"session_id": sid, "destination": "Roma, Italia", "departure_date": "01/06/2026", "pdf_base64": valid}, http.StatusBadRequest, "AAAA-MM-DD"},
		{"not base64", map[string]string{"session_id": sid, "destination": "Roma, Italia", "pdf_base64": "%%%"}, http.StatusBadRequest, "base64"},
		{"not a pdf", map[string]string{"session_id": sid, "destination": "Roma, Italia", "pdf_base64": base64.StdEncoding.EncodeToString([]byte("hola"))}, http.StatusBadRequest, "PDF"},
		{"too large", map[string]string{"session_id": sid, "destination": "Roma, Italia", "pdf_base64": strings.Repeat("A", (MaxPDFBytes/3+10)*4)}, http.StatusRequestEntityTooLarge, "10 MB"},
		{"body over limit", map[string]string{"session_id": sid, "destination": "Roma, Italia", "pdf_base64": strings.Repeat("A", maxBodyBytes+1)}, http.StatusRequestEntityTooLarge, "10 MB"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/favorites", tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["detail"])
			assert.Contains(t, resp["detail"], tc.detail)
		})
	}

	w := do(r, http.MethodGet, "/api/favorites", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
