package maps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

type fakeDirections struct {
	routes []maps.Route
	err    error
	req    *maps.DirectionsRequest
}

func (f *fakeDirections) Directions(_ context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error) {
	f.req = r
	return f.routes, nil, f.err
}

func TestEstimate_ConvertsUnits(t *testing.T) {
	fake := &fakeDirections{routes: []maps.Route{{
		Legs: []*maps.Leg{{
			Distance: maps.Distance{Meters: 16093},
			Duration: 25*time.Minute + 30*time.Second,
		}},
	}}}
	svc := &RouteService{client: fake}

	miles, minutes, err := svc.Estimate(context.Background(), "Union Square", "SFO")
	require.NoError(t, err)
	assert.Equal(t, 10.0, miles)
	assert.Equal(t, 25.5, minutes)
	assert.Equal(t, maps.TravelModeDriving, fake.req.Mode)
	assert.Equal(t, "SFO", fake.req.Destination)
}

func TestEstimate_NoRoute(t *testing.T) {
	svc := &RouteService{client: &fakeDirections{}}
	_, _, err := svc.Estimate(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestEstimate_APIError(t *testing.T) {
	svc := &RouteService{client: &fakeDirections{err: errors.New("OVER_QUERY_LIMIT")}}
	_, _, err := svc.Estimate(context.Background(), "a", "b")
	assert.ErrorContains(t, err, "OVER_QUERY_LIMIT")
}
