package itinerary

import (
	"bytes"
	"errors"
	"fmt"

	pdf "rsc.io/pdf"
)

var ErrNotPDF = errors.New("el archivo no es un PDF válido")

func open(data []byte) (r *pdf.Reader, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("%w: %v", ErrNotPDF, p)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return r, nil
}

// Inspect opens a PDF held in memory and returns its page count.
func Inspect(data []byte) (pages int, err error) {
	r, err := open(data)
	if err != nil {
		return 0, err
	}
	defer func() {
		if p := recover(); p != nil {
			pages, err = 0, fmt.Errorf("%w: %v", ErrNotPDF, p)
		}
	}()
	pages = r.NumPage()
	if pages == 0 {
		return 0, ErrNotPDF
	}
	return pages, nil
}
