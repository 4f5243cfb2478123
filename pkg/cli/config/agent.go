package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/service/worker"
	"github.com/secmon-lab/kokoro/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Agent holds the tunables of the turn pipeline and the affinity worker
type Agent struct {
	recentWindow        int
	retrieveLimit       int
	generateTimeout     time.Duration
	maxGenerateRetries  int
	affectScale         float64
	affinityScale       float64
	aggregationInterval time.Duration
}

func (x *Agent) Flags() []cli.Flag {
	def := usecase.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "recent-window",
			Usage:       "Number of latest messages placed in every prompt",
			Category:    "Agent",
			Value:       def.RecentWindow,
			Sources:     cli.EnvVars("KOKORO_RECENT_WINDOW"),
			Destination: &x.recentWindow,
		},
		&cli.IntFlag{
			Name:        "retrieve-limit",
			Usage:       "Maximum number of similar past messages placed in every prompt",
			Category:    "Agent",
			Value:       def.RetrieveLimit,
			Sources:     cli.EnvVars("KOKORO_RETRIEVE_LIMIT"),
			Destination: &x.retrieveLimit,
		},
		&cli.DurationFlag{
			Name:        "generate-timeout",
			Usage:       "Timeout of one generation attempt",
			Category:    "Agent",
			Value:       def.GenerateTimeout,
			Sources:     cli.EnvVars("KOKORO_GENERATE_TIMEOUT"),
			Destination: &x.generateTimeout,
		},
		&cli.IntFlag{
			Name:        "max-generate-retries",
			Usage:       "Maximum retries of a timed out generation (0 retries forever)",
			Category:    "Agent",
			Value:       def.MaxGenerateRetries,
			Sources:     cli.EnvVars("KOKORO_MAX_GENERATE_RETRIES"),
			Destination: &x.maxGenerateRetries,
		},
		&cli.FloatFlag{
			Name:        "affect-scale",
			Usage:       "Factor applied to affect scores before they move the emotion",
			Category:    "Agent",
			Value:       def.AffectScale,
			Sources:     cli.EnvVars("KOKORO_AFFECT_SCALE"),
			Destination: &x.affectScale,
		},
		&cli.FloatFlag{
			Name:        "affinity-scale",
			Usage:       "Divisor of accumulated emotion deltas when aggregating affinity",
			Category:    "Agent",
			Value:       def.AffinityScale,
			Sources:     cli.EnvVars("KOKORO_AFFINITY_SCALE"),
			Destination: &x.affinityScale,
		},
		&cli.DurationFlag{
			Name:        "aggregation-interval",
			Usage:       "Interval of the affinity aggregation job",
			Category:    "Agent",
			Value:       worker.DefaultAggregationInterval,
			Sources:     cli.EnvVars("KOKORO_AGGREGATION_INTERVAL"),
			Destination: &x.aggregationInterval,
		},
	}
}

func (x *Agent) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("recent_window", x.recentWindow),
		slog.Int("retrieve_limit", x.retrieveLimit),
		slog.Duration("generate_timeout", x.generateTimeout),
		slog.Int("max_generate_retries", x.maxGenerateRetries),
		slog.Float64("affect_scale", x.affectScale),
		slog.Float64("affinity_scale", x.affinityScale),
		slog.Duration("aggregation_interval", x.aggregationInterval),
	}
}

// AggregationInterval returns the affinity worker interval
func (x *Agent) AggregationInterval() time.Duration {
	return x.aggregationInterval
}

// Configure validates the flags and returns the use case configuration
func (x *Agent) Configure() (usecase.Config, error) {
	switch {
	case x.recentWindow < 1:
		return usecase.Config{}, goerr.Wrap(ErrInvalidConfig, "recent-window must be positive", goerr.V("recent_window", x.recentWindow))
	case x.retrieveLimit < 0:
		return usecase.Config{}, goerr.Wrap(ErrInvalidConfig, "retrieve-limit must not be negative", goerr.V("retrieve_limit", x.retrieveLimit))
	case x.generateTimeout <= 0:
		return usecase.Config{}, goerr.Wrap(ErrInvalidConfig, "generate-timeout must be positive", goerr.V("generate_timeout", x.generateTimeout))
	case x.maxGenerateRetries < 0:
		return usecase.Config{}, goerr.Wrap(ErrInvalidConfig, "max-generate-retries must not be negative", goerr.V("max_generate_retries", x.maxGenerateRetries))
	case x.affinityScale <= 0:
		return usecase.Config{}, goerr.Wrap(ErrInvalidConfig, "affinity-scale must be positive", goerr.V("affinity_scale", x.affinityScale))
	case x.aggregationInterval <= 0:
		return usecase.Config{}, goerr.Wrap(ErrInvalidConfig, "aggregation-interval must be positive", goerr.V("aggregation_interval", x.aggregationInterval))
	}

	return usecase.Config{
		RecentWindow:       x.recentWindow,
		RetrieveLimit:      x.retrieveLimit,
		GenerateTimeout:    x.generateTimeout,
		MaxGenerateRetries: x.maxGenerateRetries,
		AffectScale:        x.affectScale,
		AffinityScale:      x.affinityScale,
	}, nil
}
