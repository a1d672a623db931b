package sse

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/s", func(c *gin.Context) {
		ch := make(chan string, 3)
		ch <- "Hola"
		ch <- " viajero\nlínea dos"
		close(ch)
		Event(c, "session", "abc")
		Stream(c, ch)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	want := "event: session\ndata: abc\n\n" +
		"data: Hola\n\n" +
		"data:  viajero\n\ndata: línea dos\n\n" +
		"data: [DONE]\n\n"
	assert.Equal(t, want, w.Body.String())
}

func TestStreamThen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/s", func(c *gin.Context) {
		ch := make(chan string, 1)
		ch <- "Hola"
		close(ch)
		StreamThen(c, ch, func() (string, string) { return "result", `{"ok":true}` })
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))

	want := "data: Hola\n\n" +
		"event: result\ndata: {\"ok\":true}\n\n" +
		"data: [DONE]\n\n"
	assert.Equal(t, want, w.Body.String())
}
