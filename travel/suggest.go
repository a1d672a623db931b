package travel

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"viajeia-backend/destinations"
	"viajeia-backend/prompts"
)

const maxSuggestions = 5

// Popular asks the model for popular destinations. Anything but a
// configuration error falls back to destinations.Defaults.
func (p *Planner) Popular(ctx context.Context) ([]string, error) {
	list, err := p.suggest(ctx, func() (string, error) { return prompts.PopularDestinations(maxSuggestions) })
	if err != nil {
		if isConfigError(err) {
			return nil, err
		}
		p.logger.Warn("popular destinations fallback", zap.Error(err))
	}
	if len(list) == 0 {
		list = destinations.Defaults()
	}
	p.warmCountryCodes(ctx, list)
	return list, nil
}

// Search suggests destinations matching a partial query. Empty queries and
// model failures yield an empty list.
func (p *Planner) Search(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}
	list, err := p.suggest(ctx, func() (string, error) { return prompts.SearchDestinations(query, maxSuggestions) })
	if err != nil {
		if isConfigError(err) {
			return nil, err
		}
		p.logger.Warn("destination search failed", zap.String("query", query), zap.Error(err))
		return []string{}, nil
	}
	if list == nil {
		return []string{}, nil
	}
	p.warmCountryCodes(ctx, list)
	return list, nil
}

func (p *Planner) suggest(ctx context.Context, build func() (string, error)) ([]string, error) {
	prompt, err := build()
	if err != nil {
		return nil, err
	}
	text, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	list := destinations.ParseList(text)
	if len(list) > maxSuggestions {
		list = list[:maxSuggestions]
	}
	return list, nil
}

// warmCountryCodes resolves the country of every suggestion so a later
// weather lookup for it hits the cache.
func (p *Planner) warmCountryCodes(ctx context.Context, list []string) {
	if p.places == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSuggestions)
	for _, d := range list {
		g.Go(func() error {
			if _, code, ok := p.places.ParseDestination(gctx, d); ok {
				p.logger.Debug("country code resolved", zap.String("destination", d), zap.String("code", code))
			}
			return nil
		})
	}
	_ = g.Wait()
}
