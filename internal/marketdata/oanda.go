package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var oandaLog = logging.New("oanda")

const (
	DefaultOandaURL      = "https://api-fxpractice.oanda.com"
	MaxCandlesPerRequest = 4000 // Limit is 5000 but we maintain a buffer

	M1  Granularity = "M1"
	M5  Granularity = "M5"
	M15 Granularity = "M15"
	M30 Granularity = "M30"
	H1  Granularity = "H1"
	H4  Granularity = "H4"
	D   Granularity = "D"
)

type Granularity string

var granularityToDuration = map[Granularity]time.Duration{
	M1:  1 * time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  1 * time.Hour,
	H4:  4 * time.Hour,
	D:   24 * time.Hour,
}

func (g Granularity) ToDuration() (time.Duration, error) {
	duration, ok := granularityToDuration[g]
	if !ok {
		return 0, fmt.Errorf("invalid granularity: %s", g)
	}
	return duration, nil
}

// https://developer.oanda.com/rest-live-v20/instrument-ep/

type candlestick struct {
	Time     string          `json:"time"`
	Mid      candlestickData `json:"mid"`
	Volume   int             `json:"volume"`
	Complete bool            `json:"complete"`
}

type candlestickData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type candlestickResponse struct {
	Candles     []candlestick `json:"candles"`
	Instrument  string        `json:"instrument"`
	Granularity Granularity   `json:"granularity"`
}

type OandaConfig struct {
	AccountID   string      `yaml:"account_id"`
	APIKey      string      `yaml:"api_key"`
	URL         string      `yaml:"url" default:"https://api-fxpractice.oanda.com"`
	Granularity Granularity `yaml:"granularity" default:"M15" validate:"oneof=M1 M5 M15 M30 H1 H4 D"`
}

// OandaSource fetches historical mid-price candles. Symbols are OANDA
// instrument names such as NAS100_USD.
type OandaSource struct {
	cfg    OandaConfig
	client *http.Client
	now    func() time.Time
}

func NewOandaSource(cfg OandaConfig, client *http.Client) *OandaSource {
	if cfg.URL == "" {
		cfg.URL = DefaultOandaURL
	}
	if cfg.Granularity == "" {
		cfg.Granularity = M15
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OandaSource{cfg: cfg, client: client, now: time.Now}
}

// Bars fetches every candle between from and to in batches.
//
// Note: the result is not capped, so very long windows at fine granularity
// hold everything in memory.
func (s *OandaSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]types.Bar, error) {
	period, err := s.cfg.Granularity.ToDuration()
	if err != nil {
		return nil, err
	}
	if now := s.now(); to.IsZero() || to.After(now) {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-period * MaxCandlesPerRequest)
	}

	oandaLog.Info("Initiating batched Oanda fetch", "instrument", symbol, "from", from, "to", to, "granularity", s.cfg.Granularity)

	var allBars []types.Bar
	currentFrom := from
	for currentFrom.Before(to) {
		batchTo := currentFrom.Add(period * time.Duration(MaxCandlesPerRequest))
		if batchTo.After(to) {
			batchTo = to
		}

		resp, err := s.fetchCandles(ctx, symbol, currentFrom, batchTo)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch candles between %s and %s: %w", currentFrom, batchTo, err)
		}
		if len(resp.Candles) == 0 {
			break
		}

		bars, err := candlesToBars(resp.Candles)
		if err != nil {
			return nil, fmt.Errorf("failed to convert candles to bars: %w", err)
		}
		allBars = append(allBars, bars...)

		oandaLog.Debug("Fetched candle batch", "count", len(bars), "from", currentFrom, "to", batchTo)
		// includeFirst=false skips the candle at from, so resume at the last one seen.
		next := bars[len(bars)-1].Timestamp
		if !next.After(currentFrom) {
			break
		}
		currentFrom = next
	}

	oandaLog.Info("Completed fetching oanda bars", "instrument", symbol, "total_bars", len(allBars))
	return FilterWindow(allBars, from, to), nil
}

func candlesToBars(candles []candlestick) ([]types.Bar, error) {
	bars := make([]types.Bar, 0, len(candles))
	for _, candle := range candles {
		if !candle.Complete {
			continue
		}
		timestamp, err := time.Parse(time.RFC3339, candle.Time)
		if err != nil {
			return nil, fmt.Errorf("failed to parse candle time %s: %w", candle.Time, err)
		}

		var prices [4]float64
		for i, raw := range []string{candle.Mid.O, candle.Mid.H, candle.Mid.L, candle.Mid.C} {
			prices[i], err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse candle price %q at %s: %w", raw, candle.Time, err)
			}
		}

		bars = append(bars, types.Bar{
			Timestamp: timestamp.UTC(),
			Open:      prices[0],
			High:      prices[1],
			Low:       prices[2],
			Close:     prices[3],
			Volume:    float64(candle.Volume),
		})
	}
	if len(bars) == 0 && len(candles) > 0 {
		return nil, fmt.Errorf("no complete candles in batch of %d", len(candles))
	}
	return bars, nil
}

func (s *OandaSource) fetchCandles(ctx context.Context, instrument string, from, to time.Time) (*candlestickResponse, error) {
	endpoint := s.cfg.URL + "/v3/accounts/" + url.PathEscape(s.cfg.AccountID) + "/instruments/" + url.PathEscape(instrument) + "/candles"

	params := url.Values{}
	params.Add("granularity", string(s.cfg.Granularity))
	params.Add("price", "M")
	params.Add("from", strconv.FormatInt(from.Unix(), 10))
	params.Add("to", strconv.FormatInt(to.Unix(), 10))
	params.Add("includeFirst", "false")

	fullURL := endpoint + "?" + params.Encode()
	oandaLog.Debug("Request URL", "url", fullURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch candles: status code %d, could not read error body: %w", resp.StatusCode, err)
		}
		oandaLog.Error("Oanda returned an error status", "status_code", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("failed to fetch candles: status code %d, API Response: %s", resp.StatusCode, body)
	}

	var candleResp candlestickResponse
	if err := json.NewDecoder(resp.Body).Decode(&candleResp); err != nil {
		return nil, fmt.Errorf("failed to decode candle response: %w", err)
	}
	return &candleResp, nil
}
