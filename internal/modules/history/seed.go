// README: Synthetic history seeder (faker) for local runs and demos.
package history

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jaswdr/faker"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"fareflow/internal/modules/pricing"
	"fareflow/internal/types"
)

const seedBatchSize = 500

var bookingTimes = []string{"Morning", "Afternoon", "Evening", "Night"}

type Seeder struct {
	store *Store
	fake  faker.Faker
}

func NewSeeder(store *Store, seed int64) *Seeder {
	return &Seeder{store: store, fake: faker.NewWithSeed(rand.NewSource(seed))}
}

type SeedResult struct {
	Platform   int64 `json:"platform"`
	Competitor int64 `json:"competitor"`
}

// Generate builds n platform records spread across [from, to).
func (s *Seeder) Generate(n int, from, to time.Time) []Record {
	out := make([]Record, n)
	for i := range out {
		vehicle := s.fake.RandomStringElement(Vehicles)
		duration := float64(s.fake.IntBetween(5, 180))
		perMinute := s.fake.Float64(2, 2, 5)
		if vehicle == VehiclePremium {
			perMinute *= 1.4
		}
		out[i] = Record{
			ID:               types.NewID(),
			Source:           SourcePlatform,
			RecordedAt:       s.fake.Time().TimeBetween(from, to).UTC(),
			Riders:           float64(s.fake.IntBetween(20, 100)),
			Drivers:          float64(s.fake.IntBetween(5, 90)),
			Location:         s.fake.RandomStringElement(Locations),
			Loyalty:          s.fake.RandomStringElement(Loyalties),
			Vehicle:          vehicle,
			PricingModel:     pricing.Models[s.fake.IntBetween(0, len(pricing.Models)-1)],
			TimeOfBooking:    s.fake.RandomStringElement(bookingTimes),
			PastRides:        s.fake.IntBetween(0, 100),
			AverageRating:    s.fake.Float64(2, 3, 5),
			ExpectedDuration: duration,
			HistoricalCost:   math.Round(duration*perMinute*100) / 100,
		}
	}
	return out
}

// GenerateCompetitor builds n competitor rows using the provider's own field names and value spellings.
func (s *Seeder) GenerateCompetitor(n int, from, to time.Time) []RawRecord {
	tiers := []string{"Standard", "Custom", "Fixed", "Surge", "Subscription"}
	vehicles := []string{"Premium", "Economy", "Luxury", "Pool", "Bike"}
	loyalty := []string{"Gold", "Silver", "Regular", "Platinum", "Unknown"}
	out := make([]RawRecord, n)
	for i := range out {
		duration := s.fake.IntBetween(5, 180)
		out[i] = RawRecord{
			ID:         types.NewID(),
			RecordedAt: s.fake.Time().TimeBetween(from, to).UTC(),
			Fields: map[string]any{
				"Number_Of_Riders":        s.fake.IntBetween(20, 100),
				"Number_Of_Drivers":       s.fake.IntBetween(5, 90),
				"Location_Category":       s.fake.RandomStringElement(Locations),
				"Customer_Loyalty_Status": s.fake.RandomStringElement(loyalty),
				"Vehicle_Type":            s.fake.RandomStringElement(vehicles),
				"Pricing_Tier":            s.fake.RandomStringElement(tiers),
				"Time_of_Booking":         s.fake.RandomStringElement(bookingTimes),
				"Average_Ratings":         s.fake.Float64(2, 3, 5),
				"Expected_Ride_Duration":  duration,
				"Historical_Cost_of_Ride": math.Round(float64(duration)*s.fake.Float64(2, 2, 6)*100) / 100,
			},
		}
	}
	return out
}

// Seed writes platform and competitor rows in batches, showing progress on stderr when asked.
func (s *Seeder) Seed(ctx context.Context, platform, competitor int, days int, progress bool) (SeedResult, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.Default(int64(platform+competitor), "seeding history")
	}
	tick := func(n int) {
		if bar != nil {
			_ = bar.Add(n)
		}
	}

	var res SeedResult
	for done := 0; done < platform; done += seedBatchSize {
		n := min(seedBatchSize, platform-done)
		written, err := s.store.Insert(ctx, s.Generate(n, from, to))
		if err != nil {
			return res, eris.Wrap(err, "history: seed platform")
		}
		res.Platform += written
		tick(n)
	}
	for done := 0; done < competitor; done += seedBatchSize {
		n := min(seedBatchSize, competitor-done)
		written, err := s.store.InsertCompetitor(ctx, s.GenerateCompetitor(n, from, to))
		if err != nil {
			return res, eris.Wrap(err, "history: seed competitor")
		}
		res.Competitor += written
		tick(n)
	}
	zap.L().Info("history: seeded",
		zap.Int64("platform", res.Platform),
		zap.Int64("competitor", res.Competitor),
	)
	return res, nil
}
