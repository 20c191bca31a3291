package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
	"github.com/tendant/portfolio-admin/pkg/portfolio/api"
	"github.com/tendant/portfolio-admin/pkg/portfolio/auth"
	"github.com/tendant/portfolio-admin/pkg/portfolio/notify"
	amqpnotify "github.com/tendant/portfolio-admin/pkg/portfolio/notify/amqp"
	redisnotify "github.com/tendant/portfolio-admin/pkg/portfolio/notify/redis"
	"github.com/tendant/portfolio-admin/pkg/portfolio/reconcile"
	"github.com/tendant/portfolio-admin/pkg/portfolio/repo/memory"
	repopg "github.com/tendant/portfolio-admin/pkg/portfolio/repo/postgres"
	fsstorage "github.com/tendant/portfolio-admin/pkg/portfolio/storage/fs"
	memorystorage "github.com/tendant/portfolio-admin/pkg/portfolio/storage/memory"
	s3storage "github.com/tendant/portfolio-admin/pkg/portfolio/storage/s3"
)

// sweepTimeout bounds one scheduled reconciliation run.
const sweepTimeout = 5 * time.Minute

// Runtime is everything Build wired. Close releases it.
type Runtime struct {
	Services api.Services
	Router   api.RouterConfig

	cron    *cron.Cron
	closers []func() error
}

// Close stops the reconciliation schedule and closes every connection, in
// reverse order of creation.
func (r *Runtime) Close() error {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type tables struct {
	profiles       portfolio.Table[portfolio.Profile]
	projects       portfolio.Table[portfolio.Project]
	experiences    portfolio.Table[portfolio.Experience]
	technologies   portfolio.Table[portfolio.Technology]
	socialNetworks portfolio.Table[portfolio.SocialNetwork]
	images         portfolio.Table[portfolio.Image]
}

// Build connects every configured backend and returns the wired services.
// On failure everything opened so far is closed again.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (_ *Runtime, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	t, users, err := c.buildStore(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("failed to build store: %w", err)
	}

	blobs, err := c.buildBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	var redisClient *goredis.Client
	if c.RedisURL != "" {
		opts, err := goredis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = goredis.NewClient(opts)
		rt.closers = append(rt.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	notifier, feed, err := c.buildNotifier(rt, logger, redisClient)
	if err != nil {
		return nil, fmt.Errorf("failed to build notifier: %w", err)
	}

	var sessions auth.SessionStore = auth.NewMemorySessionStore()
	if redisClient != nil {
		sessions = auth.NewRedisSessionStore(redisClient)
	}
	authService, err := auth.New([]byte(c.StoreKey), users, sessions,
		auth.WithTTL(c.SessionTTL),
		auth.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build auth: %w", err)
	}

	opts := []portfolio.Option{portfolio.WithNotifier(notifier), portfolio.WithLogger(logger)}
	sweeper := reconcile.New(t.images, blobs,
		reconcile.WithGrace(c.ReconcileGrace),
		reconcile.WithNotifier(notifier),
		reconcile.WithLogger(logger),
	)
	rt.Services = api.Services{
		Profiles:       portfolio.NewProfileService(t.profiles, opts...),
		Projects:       portfolio.NewProjectService(t.projects, t.technologies, opts...),
		Experiences:    portfolio.NewExperienceService(t.experiences, opts...),
		Technologies:   portfolio.NewTechnologyService(t.technologies, opts...),
		SocialNetworks: portfolio.NewSocialNetworkService(t.socialNetworks, opts...),
		Images:         portfolio.NewImageService(t.images, blobs, opts...),
		Sweeper:        sweeper,
		Auth:           authService,
		Notifier:       notifier,
		Feed:           feed,
	}
	rt.Router = api.RouterConfig{
		SecureCookie: c.Environment == "production",
		AllowSignUp:  c.AllowSignUp,
	}
	if c.PublicAPIKeySHA256 != "" {
		rt.Router.PublicAPIKeys = map[string]string{"public": c.PublicAPIKeySHA256}
	}

	if c.ReconcileSchedule != "" {
		scheduled, err := sweeper.Schedule(c.ReconcileSchedule, sweepTimeout)
		if err != nil {
			return nil, err
		}
		rt.cron = scheduled
	}
	return rt, nil
}

func (c *ServerConfig) buildStore(ctx context.Context, rt *Runtime) (tables, auth.UserStore, error) {
	kind, err := c.storeType()
	if err != nil {
		return tables{}, nil, err
	}
	switch kind {
	case "postgres":
		pool, err := pgxpool.New(ctx, c.StoreURL)
		if err != nil {
			return tables{}, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		if err := pool.Ping(ctx); err != nil {
			return tables{}, nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := repopg.Migrate(ctx, pool); err != nil {
			return tables{}, nil, err
		}
		s := repopg.NewWithPool(pool)
		return tables{
			profiles:       s.Profiles,
			projects:       s.Projects,
			experiences:    s.Experiences,
			technologies:   s.Technologies,
			socialNetworks: s.SocialNetworks,
			images:         s.Images,
		}, auth.NewPostgresUserStore(pool), nil
	default:
		s := memory.New()
		return tables{
			profiles:       s.Profiles,
			projects:       s.Projects,
			experiences:    s.Experiences,
			technologies:   s.Technologies,
			socialNetworks: s.SocialNetworks,
			images:         s.Images,
		}, auth.NewMemoryUserStore(), nil
	}
}

func (c *ServerConfig) buildBlobStore(ctx context.Context) (portfolio.BlobStore, error) {
	target, err := c.storage()
	if err != nil {
		return nil, err
	}
	switch target.Type {
	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   target.Dir,
			Bucket:    target.Bucket,
			URLPrefix: c.publicBase(),
		})
	case "s3":
		region := c.S3.Region
		if target.Region != "" {
			region = target.Region
		}
		return s3storage.New(ctx, s3storage.Config{
			Region:                 region,
			Bucket:                 target.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PublicBaseURL:          c.StoragePublicURL,
			PresignDuration:        c.S3.PresignSeconds,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
	default:
		return memorystorage.New(target.Bucket, c.publicBase()), nil
	}
}

// buildNotifier fans out to the log, the recent-notifications feed (Redis
// when configured, in memory otherwise) and RabbitMQ when configured.
func (c *ServerConfig) buildNotifier(rt *Runtime, logger *slog.Logger, redisClient *goredis.Client) (portfolio.Notifier, notify.Reader, error) {
	sinks := notify.Multi{notify.NewLog(logger)}

	var feed notify.Reader
	if redisClient != nil {
		sink := redisnotify.New(redisClient, redisnotify.WithMaxLen(c.FeedSize))
		sinks = append(sinks, sink)
		feed = sink
	} else {
		f := notify.NewFeed(c.FeedSize)
		sinks = append(sinks, f)
		feed = f
	}

	if c.AMQPURL != "" {
		publisher, err := amqpnotify.Dial(c.AMQPURL, c.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, publisher.Close)
		sinks = append(sinks, publisher)
	}
	return sinks, feed, nil
}
