// Package trip models the trip form: destination, trip type, dates and travelers.
package trip

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"viajeia-backend/security"
)

type Type string

const (
	Closed Type = "closed"
	Open   Type = "open"
)

const (
	DateLayout   = "2006-01-02"
	MaxNights    = 365
	MinTravelers = 1
	MaxTravelers = 20
)

var (
	ErrDepartureRequired = errors.New("La fecha de salida es requerida")
	ErrDepartureInPast   = errors.New("La fecha de salida no puede ser anterior a hoy")
	ErrReturnRequired    = errors.New("La fecha de regreso es requerida para un viaje cerrado")
	ErrReturnBeforeStart = errors.New("La fecha de regreso debe ser posterior a la fecha de salida")
	ErrTripTooLong       = fmt.Errorf("El viaje no puede durar más de %d noches", MaxNights)
	ErrOpenWithReturn    = errors.New("Un viaje abierto no lleva fecha de regreso")
	ErrTravelers         = fmt.Errorf("El número de viajeros debe estar entre %d y %d", MinTravelers, MaxTravelers)
	ErrType              = errors.New("Tipo de viaje inválido")
)

// Request is the trip form as submitted by the client. Dates are calendar days.
type Request struct {
	Destination string     `json:"destination"`
	Type        Type       `json:"trip_type"`
	Departure   *time.Time `json:"-"`
	Return      *time.Time `json:"-"`
	Travelers   int        `json:"travelers"`
}

// ParseDate parses a YYYY-MM-DD date. Empty input returns nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("Fecha inválida %q, formato esperado AAAA-MM-DD", s)
	}
	return &d, nil
}

// FromForm builds a Request from the string form fields. travelers 0 means 1.
func FromForm(destination, tripType, departure, ret string, travelers int) (Request, error) {
	r := Request{Destination: destination, Type: Type(strings.ToLower(strings.TrimSpace(tripType))), Travelers: travelers}
	if r.Type == "" {
		r.Type = Closed
		if strings.TrimSpace(ret) == "" {
			r.Type = Open
		}
	}
	if r.Travelers == 0 {
		r.Travelers = 1
	}
	var err error
	if r.Departure, err = ParseDate(departure); err != nil {
		return r, err
	}
	if r.Return, err = ParseDate(ret); err != nil {
		return r, err
	}
	return r, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Validate checks the form against today's date taken from now.
// The destination is normalized in place.
func (r *Request) Validate(now time.Time) error {
	dest, err := security.RequireDestination(r.Destination)
	if err != nil {
		return err
	}
	r.Destination = dest

	if r.Type != Closed && r.Type != Open {
		return ErrType
	}
	if r.Departure == nil {
		return ErrDepartureRequired
	}
	if day(*r.Departure).Before(day(now)) {
		return ErrDepartureInPast
	}
	switch r.Type {
	case Closed:
		if r.Return == nil {
			return ErrReturnRequired
		}
		if !day(*r.Return).After(day(*r.Departure)) {
			return ErrReturnBeforeStart
		}
		if r.Nights() > MaxNights {
			return ErrTripTooLong
		}
	case Open:
		if r.Return != nil {
			return ErrOpenWithReturn
		}
	}
	if r.Travelers < MinTravelers || r.Travelers > MaxTravelers {
		return ErrTravelers
	}
	return nil
}

// Nights is the number of nights of a closed trip, 0 otherwise.
func (r Request) Nights() int {
	if r.Departure == nil || r.Return == nil {
		return 0
	}
	return int(day(*r.Return).Sub(day(*r.Departure)).Hours() / 24)
}

var monthsES = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}

// FormatDate renders a date as "5 de marzo de 2026".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), monthsES[t.Month()-1], t.Year())
}

// Question renders the form as the Spanish question sent to the planner.
func (r Request) Question() string {
	return "Quiero viajar a " + r.Destination + r.details() + ". Ayúdame a planificar el viaje."
}

// Summary describes the form as context for a question the user typed.
func (r Request) Summary() string {
	return "Datos del viaje: " + r.Destination + r.details() + "."
}

func (r Request) details() string {
	var b strings.Builder
	switch {
	case r.Departure != nil && r.Return != nil:
		fmt.Fprintf(&b, " del %s al %s (%d noches)", FormatDate(*r.Departure), FormatDate(*r.Return), r.Nights())
	case r.Departure != nil:
		fmt.Fprintf(&b, " a partir del %s, sin fecha de regreso definida", FormatDate(*r.Departure))
	}
	if r.Travelers == 1 {
		b.WriteString(", viajo solo")
	} else if r.Travelers > 1 {
		fmt.Fprintf(&b, ", somos %d viajeros", r.Travelers)
	}
	return b.String()
}

// DateString formats an optional date for responses, "" when unset.
func DateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
