package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fareflow/internal/modules/history"
)

func TestHTTPOracle_Forecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forecast", r.URL.Path)
		var req OracleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := OracleResponse{}
		for _, h := range req.Horizons {
			resp.Points = append(resp.Points, OraclePoint{HorizonDays: h, Value: req.Baseline + float64(h)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL+"/", time.Second)
	resp, err := o.Forecast(context.Background(), OracleRequest{Segment: "s", Metric: MetricRides, Horizons: []int{30, 60}, Baseline: 10})
	require.NoError(t, err)
	p, ok := resp.Point(60)
	require.True(t, ok)
	assert.Equal(t, 70.0, p.Value)
}

func TestHTTPOracle_MissingHorizonIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"points":[{"horizon_days":30,"value":1}]}`))
	}))
	defer srv.Close()

	_, err := NewHTTPOracle(srv.URL, time.Second).Forecast(context.Background(), OracleRequest{Horizons: []int{30, 60}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "omitted horizon 60")
}

func TestHTTPOracle_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not trained", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPOracle(srv.URL, time.Second).Forecast(context.Background(), OracleRequest{Horizons: []int{30}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPOracle_Train(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/train", r.URL.Path)
		var body struct {
			Records []history.Record `json:"records"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"model_version":"m-7"}`))
	}))
	defer srv.Close()

	res, err := NewHTTPOracle(srv.URL, time.Second).Train(context.Background(), make([]history.Record, 3))
	require.NoError(t, err)
	assert.Equal(t, "m-7", res.ModelVersion)
	assert.Equal(t, 3, res.Records)
	assert.False(t, res.TrainedAt.IsZero())
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(in.Body)
	f.body = buf.String()
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archiver_Key(t *testing.T) {
	client := &fakeS3{}
	a := NewS3Archiver(client, "fareflow-archive", "forecasts")
	out := &Output{GeneratedAt: time.Date(2026, 10, 18, 6, 30, 0, 0, time.UTC), HorizonDays: 90}

	key, err := a.Archive(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "forecasts/2026/10/18/forecast-20261018T063000Z.json", key)
	assert.Equal(t, "fareflow-archive", aws.ToString(client.input.Bucket))
	assert.Contains(t, client.body, `"horizon_days":90`)
}
