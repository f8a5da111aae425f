package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/everycheese/everycheese/handlers"
	"github.com/everycheese/everycheese/internal/cheese/handler"
	"github.com/everycheese/everycheese/internal/cheese/service"
	"github.com/everycheese/everycheese/internal/config"
	"github.com/everycheese/everycheese/internal/database"
	"github.com/everycheese/everycheese/internal/oidc"
	"github.com/everycheese/everycheese/internal/sessions"
	"github.com/everycheese/everycheese/internal/storage"
	"github.com/everycheese/everycheese/internal/tokens"
	"github.com/everycheese/everycheese/internal/users"
	"github.com/everycheese/everycheese/internal/web"
	"github.com/everycheese/everycheese/pkg/logger"
	"github.com/everycheese/everycheese/pkg/metrics"
	"github.com/everycheese/everycheese/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const loginURL = "/accounts/login/"

var startTime = time.Now()

// services are the backends the router is wired to. Each falls back to an
// in-memory implementation when its store is not configured or unreachable.
type services struct {
	cheeses  service.Service
	users    *users.Service
	sessions *sessions.Service
	auth     handlers.Authenticator
	photos   handler.PhotoStore

	redis *redis.Client
	mongo *mongo.Client
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = randomSecret()
		logger.Warn("using a random JWT secret; access tokens will not survive a restart")
	}
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcs, cleanup := connectServices(ctx, cfg)
	defer cleanup()

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r := newRouter(cfg, svcs, promhttp.Handler())

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Infof("Config summary: keycloak=%v mongo=%v redis=%v minio=%v", svcs.auth != nil, svcs.mongo != nil, svcs.redis != nil, svcs.photos != nil)
	logger.Infof("Starting everycheese on %s", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.Fatalf("generate secret: %v", err)
	}
	return hex.EncodeToString(b)
}

// connectServices dials the configured backends. The returned func releases
// them.
func connectServices(ctx context.Context, cfg *config.Config) (*services, func()) {
	s := &services{}
	var closers []func()

	if cfg.Redis.Host != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
			_ = rc.Close()
		} else {
			s.redis = rc
			closers = append(closers, func() { _ = rc.Close() })
			sessions.SetBlacklistClient(rc)
			s.sessions = sessions.NewService(sessions.NewRedisStore(rc, ""))
			logger.Infof("Using Redis for session storage: %s", cfg.Redis.Addr())
		}
	}

	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v", err)
		} else {
			s.mongo = client
			closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
			db := client.Database(cfg.MongoDB.Database)
			if cs, err := service.NewMongoService(ctx, db.Collection("cheeses")); err != nil {
				logger.Errorf("cheese storage: %v", err)
			} else {
				s.cheeses = cs
			}
			if us, err := users.NewMongoStore(ctx, db.Collection("users")); err != nil {
				logger.Errorf("user storage: %v", err)
			} else {
				s.users = users.NewService(us)
			}
			if s.sessions == nil {
				if st, err := sessions.NewMongoStore(ctx, db.Collection("sessions")); err != nil {
					logger.Errorf("session storage: %v", err)
				} else {
					s.sessions = sessions.NewService(st)
				}
			}
		}
	}

	if s.cheeses == nil {
		logger.Warn("using in-memory cheese storage; data is lost on restart")
		s.cheeses = service.NewMemoryService()
	}
	if s.users == nil {
		s.users = users.NewService(users.NewMemoryStore())
	}
	if s.sessions == nil {
		s.sessions = sessions.NewService(sessions.NewMemoryStore())
	}

	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		s.auth = oidc.NewKeycloakClient(cfg.Keycloak)
	} else {
		logger.Warn("Keycloak is not configured; sign-in is disabled")
	}

	if cfg.MinIO.Endpoint != "" {
		ps, err := storage.OpenPhotoBucket(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("photo storage disabled: %v", err)
		} else {
			s.photos = ps
		}
	}

	return s, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func newRouter(cfg *config.Config, s *services, metricsHandler http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORS())

	r.SetHTMLTemplate(web.MustTemplates())
	// the limiter keys on the signed-in user, so sessions resolve first
	r.Use(middleware.SessionMiddleware(cfg.Session.CookieName, s.sessions, s.users))

	// per-user when signed in, otherwise per-IP
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && s.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(s.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", readyHandler(s))
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/cheeses/")
	})

	opts := []handler.Option{handler.WithUsers(s.users)}
	if s.photos != nil {
		opts = append(opts, handler.WithPhotos(s.photos))
	}
	handler.RegisterCheeseRoutes(r, s.cheeses, middleware.LoginRequired(loginURL), opts...)

	auth := handlers.NewAuthHandler(cfg, s.auth, s.users, s.sessions)
	auth.Register(r.Group("/"))
	auth.RegisterWeb(r)
	handlers.RegisterSwagger(r)

	api := r.Group("/api/v1")
	handler.RegisterCheeseAPIRoutes(api, s.cheeses)
	api.GET("/me", middleware.AuthMiddleware(tokens.NewVerifier(cfg.JWT.Secret)), meHandler(s.users))

	r.GET("/metrics", gin.WrapH(metricsHandler))

	r.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "not_found.html", web.NotFound(middleware.CurrentUser(c), ""))
	})
	return r
}

// readyHandler reports 200 only when every configured backend answers.
func readyHandler(s *services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{"storage": true, "auth": s.auth != nil, "photos": s.photos != nil}
		if s.mongo != nil {
			deps["mongo"] = s.mongo.Ping(ctx, nil) == nil
			ready = ready && deps["mongo"]
		}
		if s.redis != nil {
			deps["redis"] = s.redis.Ping(ctx).Err() == nil
			ready = ready && deps["redis"]
		}
		if pb, ok := s.photos.(interface{ Ready(context.Context) error }); ok {
			deps["photos"] = pb.Ready(ctx) == nil
			ready = ready && deps["photos"]
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	}
}

func meHandler(us *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := middleware.Claims(c)
		sub, _ := claims["sub"].(string)
		u, err := us.GetBySub(c.Request.Context(), sub)
		if err != nil {
			logger.Errorf("me: user lookup: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
			return
		}
		if u == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": u})
	}
}
