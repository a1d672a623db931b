// Package travel answers travel questions: it keeps track of the destination a
// session is about, asks the user before switching it, calls the LLM and
// enriches the answer with weather and photos.
package travel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"viajeia-backend/ai"
	"viajeia-backend/conversation"
	"viajeia-backend/destinations"
	"viajeia-backend/logging"
	"viajeia-backend/photos"
	"viajeia-backend/prompts"
	"viajeia-backend/sections"
	"viajeia-backend/security"
	"viajeia-backend/trip"
	"viajeia-backend/weather"
)

const (
	FormatStructured   = "structured"
	FormatContextual   = "contextual"
	FormatConfirmation = "confirmation"

	contextMessages = 10
	answerPhotos    = 3
)

type WeatherSource interface {
	Available() bool
	Current(ctx context.Context, city, countryCode string) (*weather.Report, error)
}

type DestinationParser interface {
	ParseDestination(ctx context.Context, destination string) (city, code string, ok bool)
}

type PhotoSource interface {
	Available() bool
	Search(ctx context.Context, query string, count int) []photos.Photo
}

// Query is one question. Destination is set by the trip form; Trip, when
// present, supplies the question if none was typed.
type Query struct {
	Question    string
	Destination string
	SessionID   string
	Trip        *trip.Request
}

type Answer struct {
	Answer               string                    `json:"answer"`
	Weather              *string                   `json:"weather"`
	Photos               []photos.Photo            `json:"photos"`
	SessionID            string                    `json:"session_id"`
	RequiresConfirmation bool                      `json:"requires_confirmation"`
	DetectedDestination  *string                   `json:"detected_destination"`
	CurrentDestination   *string                   `json:"current_destination"`
	ResponseFormat       string                    `json:"response_format"`
	Sections             map[sections.Key][]string `json:"sections,omitempty"`
	SectionsFormat       sections.Format           `json:"sections_format,omitempty"`
}

type Planner struct {
	conv     *conversation.Service
	detector *destinations.Detector
	gen      ai.Generator
	weather  WeatherSource
	places   DestinationParser
	photos   PhotoSource
	logger   *zap.Logger
}

// NewPlanner wires the planner. weather, places and photos may be nil.
func NewPlanner(conv *conversation.Service, detector *destinations.Detector, gen ai.Generator,
	ws WeatherSource, places DestinationParser, ps PhotoSource, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{conv: conv, detector: detector, gen: gen, weather: ws, places: places, photos: ps, logger: logger}
}

// plan is a question after session and destination bookkeeping, ready for the
// model. When reply is set no model call is needed.
type plan struct {
	sessionID  string
	question   string
	current    string
	enrichWith string
	structured bool
	form       bool
	prompt     string
	reply      *Answer
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// normalize validates q. A filled trip form either becomes the question or,
// when the user also typed one, is appended to it as context.
func (q *Query) normalize() error {
	question, typed := q.Question, strings.TrimSpace(q.Question) != ""
	if !typed && q.Trip != nil {
		question = q.Trip.Question()
	}
	var err error
	if q.Question, err = security.ValidateQuestion(question); err != nil {
		return err
	}
	if typed && q.Trip != nil {
		q.Question += "\n\n" + q.Trip.Summary()
	}
	q.Trip = nil
	if q.Destination, err = security.ValidateDestination(q.Destination); err != nil {
		return err
	}
	if q.SessionID, err = security.ValidateSessionID(q.SessionID); err != nil {
		return err
	}
	return nil
}

// Ask answers q. Validation errors are *security.ValidationError, a missing
// or paid model surfaces ai.ErrNotConfigured or ai.ErrModelNotAllowed.
func (p *Planner) Ask(ctx context.Context, q Query) (*Answer, error) {
	pl, err := p.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	if pl.reply != nil {
		return pl.reply, nil
	}
	return p.answer(ctx, pl)
}

// answer asks the model for a prepared plan and completes the reply.
func (p *Planner) answer(ctx context.Context, pl *plan) (*Answer, error) {
	text, err := p.gen.Generate(ctx, pl.prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return p.finish(ctx, pl, text)
}

func (p *Planner) prepare(ctx context.Context, q Query) (*plan, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}
	if err := ai.Ready(p.gen); err != nil {
		return nil, err
	}

	sid, created, err := p.conv.Resolve(ctx, q.SessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	log := p.logger.With(zap.String("session_id", sid))
	if created {
		log.Debug("session created")
	}

	pl := &plan{sessionID: sid, question: q.Question, form: q.Destination != ""}
	log.Debug("travel question", zap.Bool("form", pl.form), zap.String("question", logging.Preview(q.Question, 120)))

	replied, skipDetection, haveCurrent := false, false, false
	pending, err := p.conv.Pending(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("load pending confirmation: %w", err)
	}
	if pending != nil {
		isReply, decision := destinations.InterpretConfirmation(q.Question, pending.DetectedDestination, pending.CurrentDestination)
		if !isReply {
			log.Debug("pending confirmation dropped")
			if err := p.conv.ClearPending(ctx, sid); err != nil {
				return nil, err
			}
		} else {
			replied = true
			if err := p.conv.AddMessage(ctx, sid, conversation.RoleUser, q.Question); err != nil {
				return nil, err
			}
			log.Info("confirmation reply", zap.Stringer("decision", decision))
			switch decision {
			case destinations.Confirmed:
				if err := p.conv.SetCurrentDestination(ctx, sid, pending.DetectedDestination); err != nil {
					return nil, err
				}
				if err := p.conv.ClearPending(ctx, sid); err != nil {
					return nil, err
				}
				pl.question = pending.OriginalQuestion
				pl.current = pending.DetectedDestination
				pl.enrichWith = pending.DetectedDestination
				pl.structured = true
				skipDetection, haveCurrent = true, true
			case destinations.Rejected:
				if err := p.conv.ClearPending(ctx, sid); err != nil {
					return nil, err
				}
				pl.current = pending.CurrentDestination
				haveCurrent = true
			default:
				msg := fmt.Sprintf("No estoy seguro de tu respuesta. ¿Quieres cambiar el destino a '%s' o prefieres continuar con '%s'? "+
					"Por favor responde 'sí' o 'no', o menciona el destino que prefieres.",
					pending.DetectedDestination, pending.CurrentDestination)
				if err := p.conv.AddMessage(ctx, sid, conversation.RoleAssistant, msg); err != nil {
					return nil, err
				}
				pl.reply = &Answer{
					Answer:             msg,
					SessionID:          sid,
					CurrentDestination: optional(pending.CurrentDestination),
					ResponseFormat:     FormatConfirmation,
				}
				return pl, nil
			}
		}
	}

	if !haveCurrent {
		if pl.current, err = p.conv.CurrentDestination(ctx, sid); err != nil {
			return nil, err
		}
	}

	switch {
	case pl.form:
		if err := p.conv.SetCurrentDestination(ctx, sid, q.Destination); err != nil {
			return nil, err
		}
		pl.current, pl.enrichWith, pl.structured = q.Destination, q.Destination, true

	case !skipDetection:
		if !replied {
			if err := p.conv.AddMessage(ctx, sid, conversation.RoleUser, q.Question); err != nil {
				return nil, err
			}
		}
		change := p.detector.DetectChange(pl.current, q.Question)
		switch {
		case change.IsChange && !change.Explicit:
			msg := fmt.Sprintf("Veo que mencionaste '%s' en tu pregunta. Actualmente estamos hablando sobre '%s'. "+
				"¿Te gustaría cambiar el destino a '%s' o prefieres continuar con '%s'?",
				change.Detected, pl.current, change.Detected, pl.current)
			if err := p.conv.SetPending(ctx, sid, conversation.Pending{
				DetectedDestination: change.Detected,
				CurrentDestination:  pl.current,
				OriginalQuestion:    q.Question,
			}); err != nil {
				return nil, err
			}
			if err := p.conv.AddMessage(ctx, sid, conversation.RoleAssistant, msg); err != nil {
				return nil, err
			}
			log.Info("destination change needs confirmation", zap.String("detected", change.Detected), zap.String("current", pl.current))
			pl.reply = &Answer{
				Answer:              msg,
				SessionID:           sid,
				DetectedDestination: optional(change.Detected),
				CurrentDestination:  optional(pl.current),
				ResponseFormat:      FormatConfirmation,
			}
			return pl, nil

		case change.IsChange && change.Explicit:
			if err := p.conv.SetCurrentDestination(ctx, sid, change.Detected); err != nil {
				return nil, err
			}
			pl.current, pl.enrichWith, pl.structured = change.Detected, change.Detected, true

		case pl.current == "":
			pl.structured = true
			if change.Detected != "" {
				if err := p.conv.SetCurrentDestination(ctx, sid, change.Detected); err != nil {
					return nil, err
				}
				pl.current, pl.enrichWith = change.Detected, change.Detected
			}

		default:
			pl.enrichWith = pl.current
		}
	}

	if pl.prompt, err = p.buildPrompt(ctx, pl); err != nil {
		return nil, err
	}
	return pl, nil
}

func (p *Planner) buildPrompt(ctx context.Context, pl *plan) (string, error) {
	if pl.structured {
		return prompts.Structured(prompts.Travel{Question: pl.question, Destination: pl.current})
	}
	history, err := p.conv.Context(ctx, pl.sessionID, contextMessages)
	if err != nil {
		return "", err
	}
	if pl.current == "" {
		if pl.current, err = p.conv.ExtractLastDestination(ctx, pl.sessionID); err != nil {
			return "", err
		}
	}
	return prompts.Contextual(prompts.Travel{Question: pl.question, Destination: pl.current, History: history})
}

// finish records the model reply and builds the answer.
func (p *Planner) finish(ctx context.Context, pl *plan, text string) (*Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ai.ErrEmptyResponse
	}
	if pl.form {
		if err := p.conv.AddMessage(ctx, pl.sessionID, conversation.RoleUser, pl.question); err != nil {
			return nil, err
		}
	}

	ans := &Answer{
		Answer:             text,
		SessionID:          pl.sessionID,
		CurrentDestination: optional(pl.current),
		ResponseFormat:     FormatContextual,
	}
	if pl.structured {
		ans.ResponseFormat = FormatStructured
	}
	if pl.enrichWith != "" {
		ans.Weather, ans.Photos = p.enrich(ctx, pl.enrichWith)
	}

	if err := p.conv.AddMessage(ctx, pl.sessionID, conversation.RoleAssistant, text); err != nil {
		return nil, err
	}
	parsed := sections.Parse(text)
	p.logger.Debug("answer ready", zap.String("session_id", pl.sessionID),
		zap.String("format", string(parsed.Format)), zap.String("answer", logging.Preview(text, 120)))
	ans.SectionsFormat = parsed.Format
	if !parsed.Empty() {
		ans.Sections = parsed.Sections
	}
	return ans, nil
}

// enrich looks up weather and photos for destination at the same time.
// Failures only leave the field empty.
func (p *Planner) enrich(ctx context.Context, destination string) (*string, []photos.Photo) {
	var (
		msg  *string
		pics []photos.Photo
	)
	g, gctx := errgroup.WithContext(ctx)
	if p.weather != nil && p.weather.Available() && p.places != nil {
		g.Go(func() error {
			city, code, ok := p.places.ParseDestination(gctx, destination)
			if !ok || city == "" || code == "" {
				return nil
			}
			r, err := p.weather.Current(gctx, city, code)
			if err != nil {
				p.logger.Debug("weather skipped", zap.String("destination", destination), zap.Error(err))
				return nil
			}
			m := weather.FormatMessage(r)
			msg = &m
			return nil
		})
	}
	if p.photos != nil && p.photos.Available() {
		g.Go(func() error {
			if list := p.photos.Search(gctx, destination, answerPhotos); len(list) > 0 {
				pics = list
			}
			return nil
		})
	}
	_ = g.Wait()
	return msg, pics
}

type Confirmation struct {
	SessionID        string `json:"session_id"`
	NewDestination   string `json:"new_destination"`
	Confirmed        bool   `json:"confirmed"`
	OriginalQuestion string `json:"original_question"`
}

type ConfirmResult struct {
	Status             string `json:"status"`
	NewDestination     string `json:"new_destination,omitempty"`
	CurrentDestination string `json:"current_destination,omitempty"`
	Message            string `json:"message"`
}

// Confirm settles a destination change the client asked about. A confirmed
// change with an original question is answered right away as a form
// submission for the new destination.
func (p *Planner) Confirm(ctx context.Context, c Confirmation) (*Answer, *ConfirmResult, error) {
	var err error
	if c.SessionID, err = security.RequireSessionID(c.SessionID); err != nil {
		return nil, nil, err
	}
	if c.NewDestination, err = security.RequireDestination(c.NewDestination); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(c.OriginalQuestion) != "" {
		if c.OriginalQuestion, err = security.ValidateQuestion(c.OriginalQuestion); err != nil {
			return nil, nil, err
		}
	}
	if err := p.conv.ClearPending(ctx, c.SessionID); err != nil {
		return nil, nil, err
	}

	if !c.Confirmed {
		current, err := p.conv.CurrentDestination(ctx, c.SessionID)
		if err != nil {
			return nil, nil, err
		}
		return nil, &ConfirmResult{
			Status:             "rejected",
			CurrentDestination: current,
			Message:            fmt.Sprintf("Se mantiene el destino actual: %s. Puedes continuar con tu pregunta.", current),
		}, nil
	}

	if err := p.conv.SetCurrentDestination(ctx, c.SessionID, c.NewDestination); err != nil {
		return nil, nil, err
	}
	p.logger.Info("destination confirmed", zap.String("session_id", c.SessionID), zap.String("destination", c.NewDestination))
	if c.OriginalQuestion == "" {
		return nil, &ConfirmResult{
			Status:         "confirmed",
			NewDestination: c.NewDestination,
			Message:        fmt.Sprintf("Destino cambiado a %s. Puedes hacer tu pregunta ahora.", c.NewDestination),
		}, nil
	}
	ans, err := p.Ask(ctx, Query{Question: c.OriginalQuestion, Destination: c.NewDestination, SessionID: c.SessionID})
	return ans, nil, err
}

// isConfigError reports errors that must reach the client instead of falling
// back to defaults.
func isConfigError(err error) bool {
	return errors.Is(err, ai.ErrNotConfigured) || errors.Is(err, ai.ErrModelNotAllowed)
}
