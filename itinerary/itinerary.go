// Package itinerary renders a conversation into a downloadable PDF.
package itinerary

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"viajeia-backend/conversation"
	"viajeia-backend/sections"
)

const (
	maxPhotos        = 6
	photosPerRow     = 3
	photoW, photoH   = 50.8, 38.1
	photoGap         = 5.0
	margin           = 12.7
	transcriptLength = 500
)

type rgb struct{ r, g, b int }

var (
	blue      = rgb{37, 99, 235}
	darkBlue  = rgb{30, 64, 175}
	gray      = rgb{107, 114, 128}
	textGray  = rgb{55, 65, 81}
	itemGray  = rgb{75, 85, 99}
	lightGray = rgb{156, 163, 175}
)

// Image is a downloaded photo ready to embed. Type is "JPG" or "PNG".
type Image struct {
	Data []byte
	Type string
}

// Document is everything a PDF itinerary shows.
type Document struct {
	Destination string
	Departure   string
	Return      string
	Messages    []conversation.Message
	Images      []Image
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *writer) color(c rgb) { w.pdf.SetTextColor(c.r, c.g, c.b) }

// text keeps what the core fonts can draw (cp1252) and drops the rest, emoji included.
func (w *writer) text(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r < 0x100 && (r >= 0x20 || r == '\n' || r == '\t') || strings.ContainsRune("€‚ƒ„…†‡ˆ‰Š‹ŒŽ‘’“”•–—˜™š›œžŸ", r) {
			sb.WriteRune(r)
		}
	}
	return w.tr(sb.String())
}

func (w *writer) width() float64 {
	pw, _ := w.pdf.GetPageSize()
	return pw - 2*margin
}

// Render writes the PDF for doc to out.
func Render(out io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle("Itinerario "+doc.Destination, true)
	pdf.SetCreator("ViajeIA", true)
	pdf.AddPage()

	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	full := w.width()

	pdf.SetFont("Helvetica", "B", 28)
	w.color(blue)
	pdf.CellFormat(full, 12, "ViajeIA", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	w.color(gray)
	pdf.CellFormat(full, 7, w.text("Tu Asistente Personal de Viajes"), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 18)
	w.color(darkBlue)
	pdf.MultiCell(full, 9, w.text("Destino: "+doc.Destination), "", "L", false)

	if dates := datesLine(doc.Departure, doc.Return); dates != "" {
		pdf.SetFont("Helvetica", "", 11)
		w.color(textGray)
		pdf.MultiCell(full, 6, w.text(dates), "", "L", false)
		pdf.Ln(4)
	}
	pdf.Ln(6)

	w.photos(doc.Images)

	var replies []string
	for _, m := range doc.Messages {
		if m.Role == conversation.RoleAssistant {
			replies = append(replies, m.Content)
		}
	}
	merged := sections.Merge(replies)
	if len(merged) > 0 {
		for _, s := range sections.Titles() {
			items := merged[s.Key]
			if len(items) == 0 {
				continue
			}
			w.heading(s.Title)
			pdf.SetFont("Helvetica", "", 10)
			w.color(itemGray)
			for _, item := range items {
				pdf.SetX(margin + 5)
				pdf.MultiCell(full-5, 5, w.text("• "+item), "", "L", false)
				pdf.Ln(1.5)
			}
			pdf.Ln(4)
		}
	} else {
		w.transcript(doc.Messages)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
	w.color(lightGray)
	pdf.CellFormat(full, 5, "Generado por ViajeIA - Tu Asistente Personal de Viajes", "", 1, "C", false, 0, "")

	if err := pdf.Output(out); err != nil {
		return fmt.Errorf("render itinerary pdf: %w", err)
	}
	return nil
}

func datesLine(departure, ret string) string {
	var parts []string
	if departure != "" {
		parts = append(parts, "Salida: "+departure)
	}
	if ret != "" {
		parts = append(parts, "Regreso: "+ret)
	}
	return strings.Join(parts, " | ")
}

func (w *writer) heading(title string) {
	w.pdf.Ln(3)
	w.pdf.SetFont("Helvetica", "B", 14)
	w.color(darkBlue)
	w.pdf.CellFormat(w.width(), 8, w.text(title), "", 1, "L", false, 0, "")
	w.pdf.Ln(2)
}

func (w *writer) photos(images []Image) {
	var usable []Image
	for _, img := range images {
		if len(usable) == maxPhotos {
			break
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(img.Data)); err == nil {
			usable = append(usable, img)
		}
	}
	if len(usable) == 0 {
		return
	}

	w.heading("Fotos del Destino")
	pw, _ := w.pdf.GetPageSize()
	rowWidth := photosPerRow*photoW + (photosPerRow-1)*photoGap
	left := (pw - rowWidth) / 2

	for i, img := range usable {
		col := i % photosPerRow
		if col == 0 {
			_, ph := w.pdf.GetPageSize()
			if w.pdf.GetY()+photoH > ph-margin {
				w.pdf.AddPage()
			}
		}
		name := fmt.Sprintf("photo-%d", i)
		opts := fpdf.ImageOptions{ImageType: img.Type}
		w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
		x := left + float64(col)*(photoW+photoGap)
		w.pdf.ImageOptions(name, x, w.pdf.GetY(), photoW, photoH, false, opts, 0, "")
		if col == photosPerRow-1 || i == len(usable)-1 {
			w.pdf.SetY(w.pdf.GetY() + photoH + photoGap)
		}
	}
	w.pdf.Ln(6)
}

func (w *writer) transcript(messages []conversation.Message) {
	w.heading("Historial de Conversación")
	full := w.width()
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		who := "Alex"
		if m.Role == conversation.RoleUser {
			who = "Usuario"
		}
		content := m.Content
		if utf8.RuneCountInString(content) > transcriptLength {
			content = string([]rune(content)[:transcriptLength]) + "..."
		}
		w.pdf.SetFont("Helvetica", "B", 11)
		w.color(textGray)
		w.pdf.CellFormat(full, 6, who+":", "", 1, "L", false, 0, "")
		w.pdf.SetFont("Helvetica", "", 11)
		w.pdf.MultiCell(full, 5.5, w.text(content), "", "J", false)
		w.pdf.Ln(3)
	}
}
