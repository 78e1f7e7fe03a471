// README: Historical ride records (platform + competitor) used by forecasting and analysis.
package history

import (
	"time"

	"fareflow/internal/modules/pricing"
	"fareflow/internal/types"
)

type Source string

const (
	SourcePlatform   Source = "platform"
	SourceCompetitor Source = "competitor"
)

const (
	LocationUrban    = "Urban"
	LocationSuburban = "Suburban"
	LocationRural    = "Rural"

	LoyaltyGold    = "Gold"
	LoyaltySilver  = "Silver"
	LoyaltyRegular = "Regular"

	VehiclePremium = "Premium"
	VehicleEconomy = "Economy"
)

var (
	Locations = []string{LocationUrban, LocationSuburban, LocationRural}
	Loyalties = []string{LoyaltyGold, LoyaltySilver, LoyaltyRegular}
	Vehicles  = []string{VehiclePremium, VehicleEconomy}
)

// Record is one completed ride. Demand profile is derived from Riders/Drivers and never stored.
type Record struct {
	ID               types.ID      `json:"id"`
	Source           Source        `json:"source"`
	RecordedAt       time.Time     `json:"recorded_at"`
	Riders           float64       `json:"number_of_riders"`
	Drivers          float64       `json:"number_of_drivers"`
	Location         string        `json:"location_category"`
	Loyalty          string        `json:"customer_loyalty_status"`
	Vehicle          string        `json:"vehicle_type"`
	PricingModel     pricing.Model `json:"pricing_model"`
	TimeOfBooking    string        `json:"time_of_booking"`
	PastRides        int           `json:"number_of_past_rides"`
	AverageRating    float64       `json:"average_ratings"`
	ExpectedDuration float64       `json:"expected_ride_duration"`
	HistoricalCost   float64       `json:"historical_cost_of_ride"`
}

// UnitPrice is cost per minute of ride.
func (r Record) UnitPrice() float64 {
	if r.ExpectedDuration <= 0 {
		return 0
	}
	return r.HistoricalCost / r.ExpectedDuration
}

// Usable reports whether the record can feed forecasting or training.
func (r Record) Usable() bool {
	return validLocation(r.Location) && r.ExpectedDuration > 0 && r.HistoricalCost > 0 && r.PricingModel != pricing.ModelUnknown
}

// RawRecord is a competitor row as received, with whatever field names the provider used.
type RawRecord struct {
	ID         types.ID       `json:"id"`
	RecordedAt time.Time      `json:"recorded_at"`
	Fields     map[string]any `json:"fields"`
}

type Filter struct {
	Source   Source
	Since    *time.Time
	Location string
	Vehicle  string
	Limit    int
}

func validLocation(l string) bool {
	for _, v := range Locations {
		if v == l {
			return true
		}
	}
	return false
}
