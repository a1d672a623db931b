package photos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{"results": [
  {"id": "a", "description": null, "alt_description": "torre eiffel", "width": 4000, "height": 3000,
   "urls": {"regular": "https://img/a-r", "small": "https://img/a-s", "full": "https://img/a-f"},
   "user": {"name": "Ana", "links": {"html": "https://unsplash.com/@ana"}}},
  {"id": "b", "description": "Sena", "width": 10, "height": 5, "urls": {"regular": "https://img/b-r"}, "user": {}},
  {"id": "c", "description": "extra", "urls": {}, "user": {"name": "C"}}
]}`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Client-ID key", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "París, Francia", q.Get("query"))
		assert.Equal(t, "2", q.Get("per_page"))
		assert.Equal(t, "landscape", q.Get("orientation"))
		assert.Equal(t, "relevance", q.Get("order_by"))
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	s := NewService("key", srv.URL, nil)
	got := s.Search(context.Background(), " París, Francia ", 2)
	require.Len(t, got, 2)
	assert.Equal(t, Photo{
		ID: "a", URL: "https://img/a-r", URLSmall: "https://img/a-s", URLFull: "https://img/a-f",
		Description: "torre eiffel", Photographer: "Ana", PhotographerURL: "https://unsplash.com/@ana",
		Width: 4000, Height: 3000,
	}, got[0])
	assert.Equal(t, "Unknown", got[1].Photographer)
}

func TestSearchPerPageCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	assert.Empty(t, NewService("key", srv.URL, nil).Search(context.Background(), "Roma", 25))
}

func TestSearchLatchesOnForbidden(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewService("key", srv.URL, nil)
	assert.Nil(t, s.Search(context.Background(), "Roma", 3))
	assert.Nil(t, s.Search(context.Background(), "Roma", 3))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSearchServerErrorDoesNotLatch(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewService("key", srv.URL, nil)
	assert.Nil(t, s.Search(context.Background(), "Roma", 3))
	assert.Nil(t, s.Search(context.Background(), "Roma", 3))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestSearchWithoutKey(t *testing.T) {
	s := NewService("  ", "", nil)
	assert.False(t, s.Available())
	assert.Nil(t, s.Search(context.Background(), "Roma", 3))
}
