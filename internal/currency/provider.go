package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"resty.dev/v3"
)

// ErrRateUnavailable wraps every failed refresh: network, HTTP status, parse
// or non-positive quote.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// quotePaths are the response fields a quote may come in, in order of preference.
var quotePaths = []string{"$.average", "$.price"}

// Origin tells where the current rate came from.
type Origin string

const (
	OriginFallback Origin = "fallback"
	OriginStored   Origin = "stored"
	OriginFetched  Origin = "fetched"
	OriginManual   Origin = "manual"
)

// Quote is a point-in-time view of the provider.
type Quote struct {
	Rate      decimal.Decimal `json:"rate"`
	Origin    Origin          `json:"origin"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Provider holds the current exchange rate. The rate is never replaced by an
// invalid value: failed refreshes and rejected manual values leave it as is.
type Provider struct {
	mu        sync.RWMutex
	quote     Quote
	sourceURL string
	client    *resty.Client
	logger    *zap.Logger
}

// NewProvider creates a provider seeded with fallback. sourceURL may be empty,
// in which case Refresh always fails and the rate can only be set manually.
func NewProvider(fallback decimal.Decimal, sourceURL string, logger *zap.Logger) (*Provider, error) {
	if err := ValidRate(fallback); err != nil {
		return nil, fmt.Errorf("invalid fallback rate: %w", err)
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Provider{
		quote:     Quote{Rate: fallback, Origin: OriginFallback, UpdatedAt: time.Now()},
		sourceURL: sourceURL,
		client:    resty.New(),
		logger:    logger,
	}, nil
}

// Rate returns the current rate.
func (p *Provider) Rate() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.quote.Rate
}

// Quote returns the current rate along with its origin.
func (p *Provider) Quote() Quote {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.quote
}

// SetManual overrides the rate. Non-positive values are rejected.
func (p *Provider) SetManual(rate decimal.Decimal) error {
	if err := ValidRate(rate); err != nil {
		return err
	}
	p.set(rate, OriginManual)
	p.logger.Info("exchange rate set manually", zap.Stringer("rate", rate))
	return nil
}

// Restore reinstates a rate loaded from local storage. Invalid values are
// ignored and the current rate kept.
func (p *Provider) Restore(rate decimal.Decimal) bool {
	if ValidRate(rate) != nil {
		return false
	}
	p.set(rate, OriginStored)
	return true
}

// Refresh queries the quote source and stores the rate it returns. On any
// failure the previous rate is kept and an error wrapping ErrRateUnavailable
// is returned.
func (p *Provider) Refresh(ctx context.Context) (decimal.Decimal, error) {
	if p.sourceURL == "" {
		return decimal.Zero, fmt.Errorf("%w: no quote source configured", ErrRateUnavailable)
	}

	resp, err := p.client.R().SetContext(ctx).Get(p.sourceURL)
	if err != nil {
		p.logger.Warn("exchange rate request failed", zap.String("url", p.sourceURL), zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	if resp.IsError() {
		p.logger.Warn("exchange rate source returned an error", zap.String("url", p.sourceURL), zap.Int("status", resp.StatusCode()))
		return decimal.Zero, fmt.Errorf("%w: quote source returned status %d", ErrRateUnavailable, resp.StatusCode())
	}

	rate, err := parseQuote([]byte(resp.String()))
	if err != nil {
		p.logger.Warn("invalid exchange rate quote", zap.String("url", p.sourceURL), zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	p.set(rate, OriginFetched)
	p.logger.Info("exchange rate refreshed", zap.Stringer("rate", rate))
	return rate, nil
}

func (p *Provider) set(rate decimal.Decimal, origin Origin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quote = Quote{Rate: rate, Origin: origin, UpdatedAt: time.Now()}
}

// parseQuote extracts the first strictly positive rate found under quotePaths.
func parseQuote(body []byte) (decimal.Decimal, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return decimal.Zero, fmt.Errorf("cannot decode quote: %w", err)
	}

	var errs error
	for _, path := range quotePaths {
		v, err := jsonpath.Get(path, doc)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		rate, err := toDecimal(v)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if err := ValidRate(rate); err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("no usable rate in quote: %w", errs)
}

// toDecimal coerces a decoded JSON value to a number.
func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		return decimal.NewFromString(x)
	default:
		return decimal.Zero, fmt.Errorf("unexpected quote type %T", v)
	}
}
