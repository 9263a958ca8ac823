// Package bootstrap opens the backing services selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/api"
	"github.com/healthline/booking/internal/appointment"
	"github.com/healthline/booking/internal/config"
	"github.com/healthline/booking/internal/db"
	"github.com/healthline/booking/internal/media"
	"github.com/healthline/booking/internal/notify"
	"github.com/healthline/booking/internal/payment"
	redisclient "github.com/healthline/booking/internal/redis"
)

// Store bundles the repository, the slot locker and their readiness checks.
type Store struct {
	Repo         appointment.Repository
	Locker       redisclient.Locker
	Dependencies []api.Dependency

	closers []func()
}

// Close releases connections in reverse order of opening.
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type openOptions struct {
	withoutLocker bool
}

// Option adjusts what Open connects to.
type Option func(*openOptions)

// WithoutLocker skips the slot locker and its Redis connection, for processes
// that never book slots.
func WithoutLocker() Option {
	return func(o *openOptions) { o.withoutLocker = true }
}

func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts ...Option) (*Store, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		if err := db.EnsureSchema(ctx, pool); err != nil {
			s.Close()
			return nil, err
		}
		s.Repo = appointment.NewPgRepository(pool)
		logger.Info().Msg("connected to Postgres")

	case config.StoreMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		s.closers = append(s.closers, func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				logger.Warn().Err(err).Msg("error closing mongo")
			}
		})

		repo := appointment.NewMongoRepository(client, cfg.MongoDB)
		if err := repo.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Repo = repo
		logger.Info().Str("database", cfg.MongoDB).Msg("connected to MongoDB")

	case config.StoreMemory:
		s.Repo = appointment.NewMemoryRepository()
		if !o.withoutLocker {
			s.Locker = redisclient.NewLocalSlotLocker()
		}
		logger.Warn().Msg("using in-memory store, data is lost on restart")

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	s.Dependencies = append(s.Dependencies, api.Dependency{
		Name:     cfg.StoreDriver,
		Ping:     s.Repo.Ping,
		Critical: true,
	})

	if s.Locker == nil && !o.withoutLocker {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.ClientOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			TLS:      cfg.RedisTLS,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		})
		s.Locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		s.Dependencies = append(s.Dependencies, api.Dependency{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info().Msg("connected to Redis")
	}

	return s, nil
}

func NewProcessor(cfg config.Config) (payment.Processor, error) {
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		return payment.NewStripeProcessor(cfg.StripeSecretKey, cfg.FrontendURL, cfg.PaymentTimeout), nil
	case config.ProviderRazorpay:
		return payment.NewRazorpayProcessor(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.FrontendURL, cfg.PaymentTimeout), nil
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
}

// NewMailer returns an SMTP mailer, or a logging one when no SMTP account is set.
func NewMailer(cfg config.Config, logger zerolog.Logger) notify.Mailer {
	if cfg.SMTPUsername != "" {
		m, err := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
		if err == nil {
			return m
		}
		logger.Warn().Err(err).Msg("smtp mailer disabled")
	}
	return notify.NewLogMailer(func(msg notify.Message) {
		logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email not sent, smtp not configured")
	})
}

func NewUploader(cfg config.Config, logger zerolog.Logger) media.Uploader {
	u, err := media.NewCloudinaryUploader(cfg.CloudinaryURL, "healthline")
	if err != nil {
		logger.Warn().Err(err).Msg("image uploads disabled")
		return media.DisabledUploader{}
	}
	return u
}
