package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pawmatch/backend/internal/config"
	"github.com/pawmatch/backend/internal/domain/enums"
	s3infra "github.com/pawmatch/backend/internal/infra/s3"
	pgrepo "github.com/pawmatch/backend/internal/repo/postgres"
	redrepo "github.com/pawmatch/backend/internal/repo/redis"
	authsvc "github.com/pawmatch/backend/internal/services/auth"
	candidatesvc "github.com/pawmatch/backend/internal/services/candidates"
	cardsvc "github.com/pawmatch/backend/internal/services/cards"
	discoverysvc "github.com/pawmatch/backend/internal/services/discovery"
	gesturesvc "github.com/pawmatch/backend/internal/services/gestures"
	matchersvc "github.com/pawmatch/backend/internal/services/matcher"
	quotasvc "github.com/pawmatch/backend/internal/services/quotas"
	sessionsvc "github.com/pawmatch/backend/internal/services/sessions"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	sessions   *sessionsvc.Manager
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	blobRepo := redrepo.NewBlobRepo(redisClient)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}
	photoStore := s3infra.NewPhotoStore(s3Client, cfg.S3.Bucket)

	candidateRepo := pgrepo.NewCandidateRepo(pool)
	likeRepo := pgrepo.NewLikeRepo(pool)
	matchRepo := pgrepo.NewMatchRepo(pool)
	subscriptionRepo := pgrepo.NewSubscriptionRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	loader := candidatesvc.NewLoader(candidatesvc.Dependencies{
		CandidateStore: candidateRepo,
		MatchStore:     matchRepo,
		PhotoSigner:    photoStore,
	}, candidatesvc.Config{
		AgeMin:             cfg.Discovery.Filters.AgeMin,
		AgeMax:             cfg.Discovery.Filters.AgeMax,
		RadiusDefaultMiles: cfg.Discovery.Filters.RadiusDefaultMiles,
		RadiusMaxMiles:     cfg.Discovery.Filters.RadiusMaxMiles,
	})

	matcherService := matchersvc.NewService(matchersvc.Dependencies{
		Pool:        pool,
		MatchStore:  matchRepo,
		PhotoSigner: photoStore,
	})

	quotaLocation := time.UTC
	if loc, err := time.LoadLocation(cfg.Discovery.DefaultTimezone); err != nil {
		log.Warn("invalid default timezone, falling back to UTC",
			zap.String("timezone", cfg.Discovery.DefaultTimezone))
	} else {
		quotaLocation = loc
	}

	engineCfg := discoverysvc.Config{
		Gesture: gesturesvc.Config{
			TriggerDistance: cfg.Discovery.Gesture.TriggerDistance,
			TriggerVelocity: cfg.Discovery.Gesture.TriggerVelocity,
			TapSlop:         cfg.Discovery.Gesture.TapSlop,
			TapMaxDuration:  cfg.Discovery.Gesture.TapMaxDuration,
		},
		Animation: cardsvc.Config{
			StageWidth:            cfg.Discovery.Animation.StageWidth,
			StageHeight:           cfg.Discovery.Animation.StageHeight,
			RotationDivisor:       cfg.Discovery.Animation.RotationDivisor,
			DragScale:             cfg.Discovery.Animation.DragScale,
			ExitDuration:          cfg.Discovery.Animation.ExitDuration,
			SuperLikeExitDuration: cfg.Discovery.Animation.SuperLikeExitDuration,
			SpringBackDuration:    cfg.Discovery.Animation.SpringBackDuration,
			ExitLift:              cfg.Discovery.Animation.ExitLift,
			ExitRotation:          cfg.Discovery.Animation.ExitRotation,
			ExitScale:             cfg.Discovery.Animation.ExitScale,
			SuperLikeExitScale:    cfg.Discovery.Animation.SuperLikeExitScale,
			NextCardRestScale:     cfg.Discovery.Animation.NextCardRestScale,
			NextCardDragScale:     cfg.Discovery.Animation.NextCardDragScale,
			NextCardNudgeRatio:    cfg.Discovery.Animation.NextCardNudgeRatio,
			NextCardNudgeAfter:    cfg.Discovery.Animation.NextCardNudgeAfter,
		},
	}

	engineFactory := func(ctx context.Context, userID int64) (*discoverysvc.Engine, error) {
		tier, err := subscriptionRepo.GetTier(ctx, userID)
		if err != nil {
			log.Warn("subscription lookup failed, assuming free tier",
				zap.Int64("user_id", userID), zap.Error(err))
			tier = enums.TierFree
		}

		ledger := quotasvc.NewLedger(blobRepo, userID, tier, quotaLocation)

		return discoverysvc.NewEngine(userID, discoverysvc.Dependencies{
			Logger:       log,
			Loader:       loader,
			LikeStore:    likeRepo,
			MatchService: matcherService,
			Ledger:       ledger,
		}, engineCfg), nil
	}

	sessionManager := sessionsvc.NewManager(log, engineFactory)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		Sessions:       sessionManager,
		MatcherService: matcherService,
		JWTManager:     jwtManager,
		Logger:         log,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		sessions:   sessionManager,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.sessions != nil {
		a.sessions.Shutdown()
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
