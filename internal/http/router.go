// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/config"
	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/http/handlers"
	"github.com/monjodav/prudency-backend/internal/http/middleware"
	"github.com/monjodav/prudency-backend/internal/observability"
	"github.com/monjodav/prudency-backend/internal/ratelimit"
	"github.com/monjodav/prudency-backend/internal/repo"
	"github.com/monjodav/prudency-backend/internal/services"
	"github.com/monjodav/prudency-backend/internal/sms"
	"github.com/monjodav/prudency-backend/internal/sweep"
)

// tripRepoShim adapts the repository free functions to the services.TripRepo
// interface expected by the TripService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type tripRepoShim struct{}

func (tripRepoShim) CreateTrip(ctx context.Context, db *gorm.DB, t *domain.Trip) error {
	return repo.CreateTrip(ctx, db, t)
}

func (tripRepoShim) GetTrip(ctx context.Context, db *gorm.DB, id string) (*domain.Trip, error) {
	return repo.GetTrip(ctx, db, id)
}

func (tripRepoShim) GetOwnedTrip(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Trip, error) {
	return repo.GetOwnedTrip(ctx, db, id, ownerID)
}

func (tripRepoShim) CountTripsInStatuses(ctx context.Context, db *gorm.DB, ownerID string, statuses []string) (int64, error) {
	return repo.CountTripsInStatuses(ctx, db, ownerID, statuses)
}

func (tripRepoShim) UpdateTripStatus(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) (bool, error) {
	return repo.UpdateTripStatus(ctx, db, id, from, to, extra)
}

func (tripRepoShim) ExtendTripArrival(ctx context.Context, db *gorm.DB, id, ownerID string, prevArrival, newArrival time.Time, addMinutes int) error {
	return repo.ExtendTripArrival(ctx, db, id, ownerID, prevArrival, newArrival, addMinutes)
}

func (tripRepoShim) ListOverdueActive(ctx context.Context, db *gorm.DB, now time.Time, buffer time.Duration, limit int) ([]string, error) {
	return repo.ListOverdueActive(ctx, db, now, buffer, limit)
}

func (tripRepoShim) ListTripsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Trip, error) {
	return repo.ListTripsPage(ctx, db, ownerID, offset, limit)
}

func (tripRepoShim) CountTrips(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	return repo.CountTrips(ctx, db, ownerID)
}

// locationRepoShim adapts the location-sample free functions to
// services.LocationRepo.
type locationRepoShim struct{}

func (locationRepoShim) CreateLocationSample(ctx context.Context, db *gorm.DB, s *domain.LocationSample) error {
	return repo.CreateLocationSample(ctx, db, s)
}

func (locationRepoShim) LatestLocationSample(ctx context.Context, db *gorm.DB, tripID string) (*domain.LocationSample, error) {
	return repo.LatestLocationSample(ctx, db, tripID)
}

func (locationRepoShim) PruneLocationSamples(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	return repo.PruneLocationSamples(ctx, db, before)
}

// alertRepoShim adapts the alert free functions to services.AlertRepo.
type alertRepoShim struct{}

func (alertRepoShim) CreateAlert(ctx context.Context, db *gorm.DB, a *domain.Alert) error {
	return repo.CreateAlert(ctx, db, a)
}

func (alertRepoShim) GetAlert(ctx context.Context, db *gorm.DB, id string) (*domain.Alert, error) {
	return repo.GetAlert(ctx, db, id)
}

func (alertRepoShim) CountAlertsSince(ctx context.Context, db *gorm.DB, ownerID string, since time.Time) (int64, error) {
	return repo.CountAlertsSince(ctx, db, ownerID, since)
}

func (alertRepoShim) FindTimeoutAlertForTrip(ctx context.Context, db *gorm.DB, tripID string) (*domain.Alert, error) {
	return repo.FindTimeoutAlertForTrip(ctx, db, tripID)
}

func (alertRepoShim) DeleteAlert(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteAlert(ctx, db, id)
}

func (alertRepoShim) UpdateAlertStatus(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) (bool, error) {
	return repo.UpdateAlertStatus(ctx, db, id, from, to, extra)
}

func (alertRepoShim) ListAlertsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Alert, error) {
	return repo.ListAlertsPage(ctx, db, ownerID, offset, limit)
}

func (alertRepoShim) CountAlerts(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	return repo.CountAlerts(ctx, db, ownerID)
}

// contactRepoShim adapts the trusted-contact free functions to
// services.ContactRepo.
type contactRepoShim struct{}

func (contactRepoShim) CreateContact(ctx context.Context, db *gorm.DB, c *domain.TrustedContact) error {
	return repo.CreateContact(ctx, db, c)
}

func (contactRepoShim) GetContact(ctx context.Context, db *gorm.DB, id string) (*domain.TrustedContact, error) {
	return repo.GetContact(ctx, db, id)
}

func (contactRepoShim) GetContactByToken(ctx context.Context, db *gorm.DB, token string) (*domain.TrustedContact, error) {
	return repo.GetContactByToken(ctx, db, token)
}

func (contactRepoShim) ListContacts(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.TrustedContact, error) {
	return repo.ListContacts(ctx, db, ownerID)
}

func (contactRepoShim) RecordInvitationSend(ctx context.Context, db *gorm.DB, id, token string, count int, sentAt time.Time) error {
	return repo.RecordInvitationSend(ctx, db, id, token, count, sentAt)
}

func (contactRepoShim) MarkInvitationAccepted(ctx context.Context, db *gorm.DB, id, token string) error {
	return repo.MarkInvitationAccepted(ctx, db, id, token)
}

// codeRepoShim adapts the verification-code free functions to
// services.CodeRepo.
type codeRepoShim struct{}

func (codeRepoShim) CreateVerificationCode(ctx context.Context, db *gorm.DB, vc *domain.VerificationCode) error {
	return repo.CreateVerificationCode(ctx, db, vc)
}

func (codeRepoShim) LatestUsableCode(ctx context.Context, db *gorm.DB, ownerID, phone string, now time.Time) (*domain.VerificationCode, error) {
	return repo.LatestUsableCode(ctx, db, ownerID, phone, now)
}

func (codeRepoShim) CountCodesIssuedSince(ctx context.Context, db *gorm.DB, ownerID, phone string, since time.Time) (int64, error) {
	return repo.CountCodesIssuedSince(ctx, db, ownerID, phone, since)
}

func (codeRepoShim) OldestCodeIssuedSince(ctx context.Context, db *gorm.DB, ownerID, phone string, since time.Time) (time.Time, error) {
	return repo.OldestCodeIssuedSince(ctx, db, ownerID, phone, since)
}

func (codeRepoShim) IncrementCodeAttempts(ctx context.Context, db *gorm.DB, id string) (int, error) {
	return repo.IncrementCodeAttempts(ctx, db, id)
}

func (codeRepoShim) MarkCodeVerified(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return repo.MarkCodeVerified(ctx, db, id, at)
}

// jwtIdentity confirms trip-completion proofs. The proof is a short-lived
// step-up token minted by the auth provider with the same HMAC secret as the
// session token; it must name the owner as its subject. The services only see
// the boolean.
type jwtIdentity struct {
	secret []byte
}

func (j jwtIdentity) Confirm(ctx context.Context, ownerID, proof string) (bool, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if _, err := parser.ParseWithClaims(proof, &claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	}); err != nil {
		return false, nil
	}
	return claims.Subject == ownerID, nil
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine, builds the service graph over db, and returns the configured (but
// not yet started) sweeper so the caller owns its lifecycle.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, gw sms.Gateway, lim ratelimit.Limiter, counts ratelimit.CountLimiter, cfg config.Config) *sweep.Sweeper {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. Phone numbers are first-class
	// data in this API, so the pattern scrubbing is not optional.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (optional)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/gateway/limiters
	trips := services.NewTripService(db, tripRepoShim{}, locationRepoShim{}, alertRepoShim{})
	trips.Limiter = lim
	trips.TimeoutBuffer = cfg.TimeoutBuffer
	trips.Log = log.With().Str("component", "trips").Logger()
	if len(cfg.JWTSecret) > 0 {
		trips.Identity = jwtIdentity{secret: []byte(cfg.JWTSecret)}
	}

	alerts := services.NewAlertService(db, alertRepoShim{}, tripRepoShim{})
	alerts.Limiter = counts
	alerts.Log = log.With().Str("component", "alerts").Logger()

	dispatch := services.NewDispatchService(db, alertRepoShim{}, contactRepoShim{}, gw, lim)
	dispatch.Log = log.With().Str("component", "dispatch").Logger()
	trips.Notifier = dispatch
	trips.Cancellation = dispatch
	alerts.Notifier = dispatch

	codes := services.NewCodeService(db, codeRepoShim{}, gw)
	codes.Log = log.With().Str("component", "verification").Logger()
	contacts := services.NewContactService(db, contactRepoShim{})
	invites := services.NewInviteService(db, contactRepoShim{}, gw, cfg.InviteBaseURL)
	invites.Log = log.With().Str("component", "invitations").Logger()

	sweeper := sweep.New(trips, trips, log.Logger)
	sweeper.Schedule = cfg.Sweep.Schedule
	sweeper.PruneSchedule = cfg.Sweep.PruneSchedule
	sweeper.BatchSize = cfg.Sweep.BatchSize
	sweeper.Retention = cfg.Sweep.Retention
	sweeper.OnRun = func(res *sweep.Result, err error) {
		if err != nil {
			observability.SweepRan(0, true)
			return
		}
		observability.SweepRan(res.Triggered, false)
	}

	h := handlers.New(trips, alerts, codes, contacts, invites, sweeper)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"

	// Invitation acceptance is unauthenticated: the recipient is not a user
	// and the single-use token is the credential.
	pub := groupWithPrefix(r, apiBase)
	pub.POST("/invitations/:token/accept", h.AcceptInvitation)

	api := groupWithPrefix(r, apiBase)
	if len(cfg.JWTSecret) > 0 {
		api.Use(middleware.Auth(middleware.AuthOptions{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
		}))
	}
	{
		// Trips
		api.POST("/trips", h.StartTrip)
		api.GET("/trips", h.ListTrips)
		api.GET("/trips/:id", h.GetTrip)
		api.POST("/trips/:id/extend", h.ExtendTrip)
		api.POST("/trips/:id/complete", h.CompleteTrip)
		api.POST("/trips/:id/cancel", h.CancelTrip)
		api.POST("/trips/:id/locations", h.RecordLocation)

		// Alerts
		api.POST("/alerts", h.CreateAlert)
		api.GET("/alerts", h.ListAlerts)
		api.GET("/alerts/:id", h.GetAlert)
		api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
		api.POST("/alerts/:id/resolve", h.ResolveAlert)

		// Phone verification
		api.POST("/verification/codes", h.IssueCode)
		api.POST("/verification/verify", h.VerifyCode)

		// Trusted contacts
		api.POST("/contacts", h.CreateContact)
		api.GET("/contacts", h.ListContacts)
		api.GET("/contacts/:id", h.GetContact)
		api.POST("/contacts/:id/invitations", h.SendInvitation)
	}

	// Internal operations, guarded by the shared secret.
	internal := r.Group("/internal")
	internal.Use(middleware.RequireInternalSecret(cfg.InternalSecret))
	internal.POST("/sweep", h.RunSweep)

	return sweeper
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
