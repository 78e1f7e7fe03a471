// README: Forecasting oracle contract and its HTTP client (POST /forecast, POST /train).
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"fareflow/internal/modules/history"
)

const (
	MetricRides     = "rides"
	MetricUnitPrice = "unit_price"
)

type OracleRequest struct {
	Segment  string        `json:"segment"`
	Metric   string        `json:"metric"`
	Horizons []int         `json:"horizons"`
	Baseline float64       `json:"baseline"`
	History  []SeriesPoint `json:"history"`
}

type OraclePoint struct {
	HorizonDays int     `json:"horizon_days"`
	Value       float64 `json:"value"`
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
}

type OracleResponse struct {
	Points []OraclePoint `json:"points"`
}

// Point returns the estimate for a horizon.
func (r OracleResponse) Point(horizon int) (OraclePoint, bool) {
	for _, p := range r.Points {
		if p.HorizonDays == horizon {
			return p, true
		}
	}
	return OraclePoint{}, false
}

type TrainResult struct {
	ModelVersion string    `json:"model_version"`
	Records      int       `json:"records"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Oracle is the external time-series model. Point estimates are per 30-day period.
type Oracle interface {
	Forecast(ctx context.Context, req OracleRequest) (OracleResponse, error)
	Train(ctx context.Context, records []history.Record) (TrainResult, error)
}

type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *HTTPOracle) Forecast(ctx context.Context, req OracleRequest) (OracleResponse, error) {
	var resp OracleResponse
	if err := o.post(ctx, "/forecast", req, &resp); err != nil {
		return OracleResponse{}, err
	}
	for _, h := range req.Horizons {
		p, ok := resp.Point(h)
		if !ok {
			return OracleResponse{}, eris.Errorf("forecast: oracle omitted horizon %d for %s", h, req.Segment)
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) || p.Value < 0 {
			return OracleResponse{}, eris.Errorf("forecast: oracle returned invalid %s value %v for %s", req.Metric, p.Value, req.Segment)
		}
	}
	return resp, nil
}

func (o *HTTPOracle) Train(ctx context.Context, records []history.Record) (TrainResult, error) {
	var res TrainResult
	body := struct {
		Records []history.Record `json:"records"`
	}{Records: records}
	if err := o.post(ctx, "/train", body, &res); err != nil {
		return TrainResult{}, err
	}
	if res.TrainedAt.IsZero() {
		res.TrainedAt = time.Now().UTC()
	}
	if res.Records == 0 {
		res.Records = len(records)
	}
	return res, nil
}

func (o *HTTPOracle) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "forecast: encode oracle request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "forecast: build oracle request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "forecast: oracle %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Errorf("forecast: oracle %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "forecast: decode oracle %s response", path)
	}
	return nil
}
