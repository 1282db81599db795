package bars

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/orb/internal/core"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// validRoot matches futures roots like MGC, MES, 6E.
var validRoot = regexp.MustCompile(`^[A-Z0-9]{1,6}$`)

// YahooSource reads continuous-contract futures bars from the Yahoo Finance
// chart API. Yahoo only serves a few weeks of one-minute history, so it is
// meant for recent sessions and spot checks rather than long backtests.
type YahooSource struct {
	client  *http.Client
	baseURL string
	loc     *time.Location
}

// YahooOption configures a YahooSource.
type YahooOption func(*YahooSource)

// WithYahooBaseURL points the source at another chart endpoint.
func WithYahooBaseURL(u string) YahooOption {
	return func(y *YahooSource) { y.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the default client with a 10s timeout.
func WithHTTPClient(c *http.Client) YahooOption {
	return func(y *YahooSource) { y.client = c }
}

// NewYahooSource returns bars converted to loc.
func NewYahooSource(loc *time.Location, opts ...YahooOption) *YahooSource {
	if loc == nil {
		loc = time.UTC
	}
	y := &YahooSource{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: yahooBaseURL,
		loc:     loc,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// yahooSymbol converts a canonical root to Yahoo's continuous contract
// ticker: MGC -> MGC=F.
func yahooSymbol(symbol string) (string, error) {
	root := strings.ToUpper(strings.TrimSuffix(symbol, "=F"))
	if !validRoot.MatchString(root) {
		return "", fmt.Errorf("invalid futures root: %q", symbol)
	}
	return root + "=F", nil
}

// Bars implements Source.
func (y *YahooSource) Bars(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Bar, error) {
	ticker, err := yahooSymbol(symbol)
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidParams, err)
	}
	if g.Duration() == 0 {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("unsupported granularity %q", g))
	}
	if !end.After(start) {
		return nil, nil
	}

	url := fmt.Sprintf("%s/%s?interval=%s&period1=%d&period2=%d",
		y.baseURL, ticker, g, start.Unix(), end.Unix())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("fetching %s: %w", ticker, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("fetching %s: unexpected status %d", ticker, resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("decoding response: %w", err))
	}
	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	r := result.Chart.Result[0]
	q := r.Indicators.Quote[0]
	out := make([]core.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) || i >= len(q.Close) {
			break
		}
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue // Skip missing data
		}
		t := time.Unix(ts, 0).In(y.loc)
		if t.Before(start) || !t.Before(end) {
			continue
		}
		b := core.Bar{
			Time:  t,
			Open:  *q.Open[i],
			High:  *q.High[i],
			Low:   *q.Low[i],
			Close: *q.Close[i],
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			b.Volume = *q.Volume[i]
		}
		out = append(out, b)
	}
	return out, nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
