package quote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"WaveScan/internal/domain/models"
	drepo "WaveScan/internal/domain/repository"
	xhttp "WaveScan/pkg/http"
)

// ErrNoData is returned when the quote API reports an empty candle range.
var ErrNoData = errors.New("quote: no data for range")

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 3
)

// Client fetches historical candles from the quote REST API. It implements
// repository.CandleSource.
type Client struct {
	baseURL    string
	apiKey     string
	http       *xhttp.Client
	pacer      *pacer
	maxRetries int
}

type Options struct {
	BaseURL       string
	APIKey        string
	RatePerMinute int
	Timeout       time.Duration
	MaxRetries    int
}

// NewClient builds a candle client with its own request pacing.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultRetries
	}
	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		http:       xhttp.NewClient(xhttp.WithTimeout(timeout)),
		pacer:      newPacer(opts.RatePerMinute),
		maxRetries: retries,
	}
}

// GetDailyCandles returns up to days calendar days of daily candles ending
// now.
func (c *Client) GetDailyCandles(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	return c.GetCandles(ctx, symbol, from.Unix(), to.Unix(), drepo.TF1d)
}

// GetCandles fetches candles for a unix-second range at the given timeframe.
func (c *Client) GetCandles(ctx context.Context, symbol string, from, to int64, tf drepo.Timeframe) ([]models.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("quote: empty symbol")
	}
	body, err := c.fetch(ctx, symbol, drepo.Resolution(tf), from, to)
	if err != nil {
		return nil, err
	}
	candles, err := parseCandles(body)
	if err != nil {
		return nil, fmt.Errorf("quote: parse %s: %w", symbol, err)
	}
	return candles, nil
}

// fetch performs the paced, retried GET against /stock/candle.
func (c *Client) fetch(ctx context.Context, symbol, resolution string, from, to int64) ([]byte, error) {
	opts := &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + "/stock/candle",
		Headers: map[string]string{"Accept": "application/json"},
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"resolution": {resolution},
			"from":       {strconv.FormatInt(from, 10)},
			"to":         {strconv.FormatInt(to, 10)},
			"token":      {c.apiKey},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.http.SendRequest(ctx, opts)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("read body: %w", readErr)
			case resp.StatusCode == http.StatusTooManyRequests:
				c.pacer.SignalRateLimited()
				lastErr = fmt.Errorf("quote: rate limited")
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				lastErr = fmt.Errorf("quote: status %d: %s", resp.StatusCode, body)
			default:
				c.pacer.ResetBackoff()
				return body, nil
			}
		}

		select {
		case <-time.After(c.pacer.Backoff() * time.Duration(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("quote: fetch %s: %w", symbol, lastErr)
}

// parseCandles decodes the parallel-array candle payload. The API reports
// s=ok with arrays c,h,l,o,t,v, or s=no_data.
func parseCandles(body []byte) ([]models.Candle, error) {
	switch gjson.GetBytes(body, "s").String() {
	case "ok":
	case "no_data":
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("unexpected status %q", gjson.GetBytes(body, "s").String())
	}

	ts := gjson.GetBytes(body, "t")
	if !ts.Exists() || !ts.IsArray() {
		return nil, fmt.Errorf("missing timestamp array")
	}
	times := ts.Array()
	opens := gjson.GetBytes(body, "o").Array()
	highs := gjson.GetBytes(body, "h").Array()
	lows := gjson.GetBytes(body, "l").Array()
	closes := gjson.GetBytes(body, "c").Array()
	vols := gjson.GetBytes(body, "v").Array()

	n := len(times)
	if len(opens) != n || len(highs) != n || len(lows) != n || len(closes) != n {
		return nil, fmt.Errorf("ragged arrays: t=%d o=%d h=%d l=%d c=%d",
			n, len(opens), len(highs), len(lows), len(closes))
	}

	candles := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		candle := models.Candle{
			Date:  time.Unix(times[i].Int(), 0).UTC(),
			Open:  opens[i].Float(),
			High:  highs[i].Float(),
			Low:   lows[i].Float(),
			Close: closes[i].Float(),
		}
		if i < len(vols) {
			candle.Volume = vols[i].Float()
		}
		candles = append(candles, candle)
	}
	return candles, nil
}
