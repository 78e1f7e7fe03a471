// README: Service wiring shared by all subcommands.
package main

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"fareflow/internal/ai"
	"fareflow/internal/infra"
	"fareflow/internal/maps"
	"fareflow/internal/modules/analysis"
	"fareflow/internal/modules/dispatch"
	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/history"
	"fareflow/internal/modules/impact"
	"fareflow/internal/modules/pipeline"
	"fareflow/internal/modules/pricing"
	"fareflow/internal/modules/recommend"
)

// appEnv holds initialised clients and services. Optional integrations stay nil when unconfigured.
type appEnv struct {
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Producer sarama.SyncProducer
	Gemini   *ai.GeminiProvider

	History   *history.Store
	Pricing   *pricing.Service
	Dispatch  *dispatch.Service
	Forecast  *forecast.Service
	Analysis  *analysis.Service
	Recommend *recommend.Service
	Impact    *impact.Service
	Pipeline  *pipeline.Service
}

func (e *appEnv) Close() {
	if e.Gemini != nil {
		e.Gemini.Close()
	}
	if e.Producer != nil {
		_ = e.Producer.Close()
	}
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if e.DB != nil {
		e.DB.Close()
	}
}

type envOptions struct {
	redis bool
}

// initEnv connects Postgres (migrating it) and builds every module. Callers should defer env.Close().
func initEnv(ctx context.Context, opts envOptions) (*appEnv, error) {
	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	env := &appEnv{DB: db}
	if err := infra.Migrate(ctx, db); err != nil {
		env.Close()
		return nil, err
	}

	var queue pricing.Enqueuer
	if opts.redis {
		env.Redis = infra.NewRedis(cfg.Redis.Addr)
		env.Dispatch = dispatch.NewService(dispatch.NewStore(env.Redis, cfg.Redis.KeyPrefix))
		queue = env.Dispatch
	}

	var router pricing.RouteEstimator
	if cfg.Maps.APIKey != "" {
		rs, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			env.Close()
			return nil, err
		}
		router = rs
	}
	env.Pricing = pricing.NewService(pricing.NewStore(db), router, queue)
	if err := env.Pricing.ReloadRates(ctx); err != nil {
		zap.L().Warn("pricing: using default rates", zap.Error(err))
	}

	env.History = history.NewStore(db)

	oracle := forecast.NewHTTPOracle(cfg.Forecast.OracleURL, time.Duration(cfg.Forecast.OracleTimeout)*time.Second)
	var archiver forecast.Archiver
	if cfg.Forecast.ArchiveBucket != "" {
		client, err := infra.NewS3(ctx, cfg.Forecast.ArchiveRegion)
		if err != nil {
			env.Close()
			return nil, err
		}
		archiver = forecast.NewS3Archiver(client, cfg.Forecast.ArchiveBucket, cfg.Forecast.ArchivePrefix)
	}
	computer := forecast.NewComputer(oracle, forecast.Options{
		Concurrency:   cfg.Forecast.Concurrency,
		RatePerSecond: cfg.Forecast.RatePerSecond,
	})
	env.Forecast = forecast.NewService(env.History, computer, oracle, archiver, cfg.Forecast.HorizonDays)
	env.Analysis = analysis.NewService(env.History)

	var narrator recommend.Narrator
	if cfg.AI.GeminiKey != "" {
		g, err := ai.NewGeminiProvider(ctx, cfg.AI.GeminiKey)
		if err != nil {
			zap.L().Warn("ai: narrator disabled", zap.Error(err))
		} else {
			env.Gemini = g
			narrator = g
		}
	}
	env.Recommend = recommend.NewService(env.Pricing, recommend.Catalogue(), cfg.Pipeline.RecommendTopN, narrator)
	env.Impact = impact.NewService()

	var events pipeline.EventPublisher
	if cfg.Kafka.Brokers != "" {
		producer, err := infra.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			zap.L().Warn("pipeline: run events disabled", zap.Error(err))
		} else {
			env.Producer = producer
			events = pipeline.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		}
	}

	env.Pipeline = pipeline.NewService(pipeline.Deps{
		Runs:      pipeline.NewStore(db),
		Leases:    pipeline.NewLeaseStore(db),
		History:   env.History,
		Forecast:  env.Forecast,
		Analysis:  env.Analysis,
		Recommend: env.Recommend,
		Impact:    env.Impact,
		Events:    events,
	}, pipeline.Config{
		LeaseTTL:           cfg.Pipeline.LeaseTTL(),
		Interval:           cfg.Pipeline.Interval(),
		MinTrainingRecords: cfg.Forecast.MinTrainingSet,
	})
	return env, nil
}

func requireDispatch(env *appEnv) error {
	if env.Dispatch == nil {
		return eris.New("dispatch queue not initialised")
	}
	return nil
}
