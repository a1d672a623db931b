// Package photos searches destination pictures on Unsplash.
package photos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.unsplash.com/search/photos"

type Photo struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	URLSmall        string `json:"url_small"`
	URLFull         string `json:"url_full"`
	Description     string `json:"description"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

type Service struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	logger      *zap.Logger
	unavailable atomic.Bool
}

func NewService(apiKey, baseURL string, logger *zap.Logger) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (s *Service) Available() bool { return s.apiKey != "" }

type searchResponse struct {
	Results []struct {
		ID             string `json:"id"`
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		URLs           struct {
			Regular string `json:"regular"`
			Small   string `json:"small"`
			Full    string `json:"full"`
		} `json:"urls"`
		User struct {
			Name  string `json:"name"`
			Links struct {
				HTML string `json:"html"`
			} `json:"links"`
		} `json:"user"`
	} `json:"results"`
}

// Search returns up to count landscape photos for query. Any failure yields
// nil; a rejected key disables the service for the life of the process.
func (s *Service) Search(ctx context.Context, query string, count int) []Photo {
	query = strings.TrimSpace(query)
	if !s.Available() || s.unavailable.Load() || query == "" || count <= 0 {
		return nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(min(count, 10)))
	params.Set("orientation", "landscape")
	params.Set("order_by", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Client-ID "+s.apiKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("unsplash request failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		s.logger.Error("unsplash rejected the API key, disabling", zap.Int("status", resp.StatusCode))
		s.unavailable.Store(true)
		return nil
	default:
		s.logger.Warn("unsplash unexpected status", zap.Int("status", resp.StatusCode))
		return nil
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		s.logger.Warn("unsplash decode failed", zap.Error(fmt.Errorf("decode: %w", err)))
		return nil
	}

	var out []Photo
	for _, r := range data.Results {
		if len(out) == count {
			break
		}
		p := Photo{
			ID:              r.ID,
			URL:             r.URLs.Regular,
			URLSmall:        r.URLs.Small,
			URLFull:         r.URLs.Full,
			Description:     r.Description,
			Photographer:    r.User.Name,
			PhotographerURL: r.User.Links.HTML,
			Width:           r.Width,
			Height:          r.Height,
		}
		if p.Description == "" {
			p.Description = r.AltDescription
		}
		if p.Photographer == "" {
			p.Photographer = "Unknown"
		}
		out = append(out, p)
	}
	return out
}
