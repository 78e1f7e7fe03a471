package maps

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"googlemaps.github.io/maps"
)

const metersPerMile = 1609.344

// ErrNoRoute is returned when the directions API finds no drivable route.
var ErrNoRoute = eris.New("maps: no route found")

type directionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// RouteService turns address pairs into trip distance and duration for pricing.
type RouteService struct {
	client directionsClient
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "maps: create client")
	}
	return &RouteService{client: client}, nil
}

// Estimate returns driving distance in miles and duration in minutes for the first route leg.
func (s *RouteService) Estimate(ctx context.Context, origin, destination string) (float64, float64, error) {
	r := &maps.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Mode:        maps.TravelModeDriving,
		Units:       maps.UnitsImperial,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, 0, eris.Wrap(err, "maps: directions")
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, 0, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	miles := math.Round(float64(leg.Distance.Meters)/metersPerMile*100) / 100
	minutes := math.Round(leg.Duration.Minutes()*100) / 100
	return miles, minutes, nil
}
