package itinerary

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"viajeia-backend/photos"
)

const (
	maxImageBytes = 5 << 20
	// Photos print at about 5 cm wide; anything larger only bloats the PDF.
	maxImageW, maxImageH = 800, 600
)

// FetchImages downloads up to six photos concurrently and re-encodes them as
// JPEG. Failed or undecodable downloads are skipped; the result keeps the
// photos' order.
func FetchImages(ctx context.Context, client *http.Client, list []photos.Photo) []Image {
	if client == nil {
		client = http.DefaultClient
	}
	if len(list) > maxPhotos {
		list = list[:maxPhotos]
	}
	slots := make([]*Image, len(list))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range list {
		u := p.URL
		if u == "" {
			u = p.URLSmall
		}
		if u == "" {
			u = p.URLFull
		}
		if u == "" {
			continue
		}
		g.Go(func() error {
			slots[i] = download(gctx, client, u)
			return nil
		})
	}
	_ = g.Wait()

	var out []Image
	for _, img := range slots {
		if img != nil {
			out = append(out, *img)
		}
	}
	return out
}

func download(ctx context.Context, client *http.Client, url string) *Image {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fit(img, maxImageW, maxImageH), &jpeg.Options{Quality: 85}); err != nil {
		return nil
	}
	return &Image{Data: buf.Bytes(), Type: "JPG"}
}

// fit scales img down, keeping its aspect ratio, so it fits in maxW x maxH.
func fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
