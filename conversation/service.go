package conversation

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"viajeia-backend/security"
)

const (
	maxContextMessageLen = 1000
	maxContextTotalLen   = 5000
)

// Service adds the history-level operations the planner and handlers need.
type Service struct {
	Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, logger: logger}
}

// Resolve returns id when the session exists, otherwise a freshly created session.
func (s *Service) Resolve(ctx context.Context, id string) (string, bool, error) {
	if id != "" {
		ok, err := s.SessionExists(ctx, id)
		if err != nil {
			return "", false, err
		}
		if ok {
			return id, false, nil
		}
		s.logger.Info("unknown session, creating a new one", zap.String("session_id", id))
	}
	nid, err := s.CreateSession(ctx)
	return nid, true, err
}

// History returns every message of an existing session.
func (s *Service) History(ctx context.Context, id string) ([]Message, error) {
	if err := s.mustExist(ctx, id); err != nil {
		return nil, err
	}
	return s.Messages(ctx, id, 0)
}

// Clear empties the history of an existing session. The current destination stays.
func (s *Service) Clear(ctx context.Context, id string) error {
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}
	return s.ClearMessages(ctx, id)
}

func (s *Service) mustExist(ctx context.Context, id string) error {
	ok, err := s.SessionExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Context renders the last limit messages as "Usuario: ...\nAlex: ..." for a
// prompt. Messages that look like injection attempts are left out.
func (s *Service) Context(ctx context.Context, id string, limit int) (string, error) {
	msgs, err := s.Messages(ctx, id, limit)
	if err != nil {
		return "", err
	}
	hist := make([]security.HistoryMessage, len(msgs))
	for i, m := range msgs {
		hist[i] = security.HistoryMessage{Role: m.Role, Content: m.Content}
	}
	return security.SanitizeHistory(hist, maxContextMessageLen, maxContextTotalLen, s.logger), nil
}

const placeName = `\p{Lu}[\p{L}'\-]*(?:\s+(?:(?:de|del|la|las|los|el|y)\s+)?\p{Lu}[\p{L}'\-]*)*`

var destinationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:viajar|viaje|viajo|ir)\s+a\s+(` + placeName + `,\s*` + placeName + `)`),
	regexp.MustCompile(`(?i:destino)[:\s]+(` + placeName + `,\s*` + placeName + `)`),
	regexp.MustCompile(`["']?(` + placeName + `,\s*` + placeName + `)["']?`),
}

// ExtractLastDestination scans the session newest message first for a
// "Ciudad, País" mention. It returns "" when none is found.
func (s *Service) ExtractLastDestination(ctx context.Context, id string) (string, error) {
	msgs, err := s.Messages(ctx, id, 0)
	if err != nil {
		return "", err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if d := FindDestination(msgs[i].Content); d != "" {
			return d, nil
		}
	}
	return "", nil
}

// FindDestination returns the first "Ciudad, País" mention in text.
func FindDestination(text string) string {
	for _, re := range destinationPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if d := strings.TrimSpace(m[1]); strings.Contains(d, ",") {
				return d
			}
		}
	}
	return ""
}

type Stats struct {
	Exists            bool       `json:"exists"`
	MessageCount      int        `json:"message_count"`
	UserMessages      int        `json:"user_messages"`
	AssistantMessages int        `json:"assistant_messages"`
	LastMessage       *time.Time `json:"last_message"`
}

func (s *Service) Stats(ctx context.Context, id string) (Stats, error) {
	ok, err := s.SessionExists(ctx, id)
	if err != nil || !ok {
		return Stats{}, err
	}
	msgs, err := s.Messages(ctx, id, 0)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Exists: true, MessageCount: len(msgs)}
	for _, m := range msgs {
		if m.Role == RoleUser {
			st.UserMessages++
		} else {
			st.AssistantMessages++
		}
	}
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1].Timestamp
		st.LastMessage = &last
	}
	return st, nil
}
