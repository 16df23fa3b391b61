// Command registry boots the education registry: it connects storage,
// applies the schema migrations that carry the uniqueness invariants,
// wires the four entity managers over their repositories, and serves
// health, readiness and metrics endpoints. The managers are exposed to
// the external API layer as a library; the binary's own surface uses
// them for its readiness deep check.
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-registry/internal/models"
	"github.com/noah-isme/edu-registry/internal/repository"
	"github.com/noah-isme/edu-registry/internal/service"
	"github.com/noah-isme/edu-registry/pkg/cache"
	"github.com/noah-isme/edu-registry/pkg/config"
	"github.com/noah-isme/edu-registry/pkg/database"
	"github.com/noah-isme/edu-registry/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-registry/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-registry/pkg/middleware/requestid"
	"github.com/noah-isme/edu-registry/pkg/validation"
)

// managers bundles the four entity managers the registry exposes.
type managers struct {
	institutions *service.InstitutionService
	users        *service.UserService
	programs     *service.ProgramService
	enrollments  *service.EnrollmentService
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validation.New()

	institutionRepo := repository.NewInstitutionRepository(db)
	userRepo := repository.NewUserRepository(db)
	programRepo := repository.NewProgramRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	catalogCache := repository.NewCacheRepository(redisClient, logr)

	opTimeout := cfg.Registry.OperationTimeout
	reg := &managers{
		institutions: service.NewInstitutionService(institutionRepo, userRepo, validate, logr, opTimeout),
		users:        service.NewUserService(userRepo, institutionRepo, validate, logr, opTimeout),
		programs: service.NewProgramService(programRepo, institutionRepo, userRepo, catalogCache,
			cfg.Registry.CatalogCacheTTL, metrics, validate, logr, opTimeout),
		enrollments: service.NewEnrollmentService(enrollmentRepo, programRepo, userRepo, metrics, validate, logr, opTimeout),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness goes through the managers, not the raw connection, so
	// the check exercises the operation timeout and the catalog cache
	// path the way real traffic does.
	r.GET("/ready", func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, _, err := reg.institutions.List(ctx, models.InstitutionFilter{PageSize: 1}); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "check": "institutions"})
			return
		}
		if _, _, err := reg.programs.ListByInstitution(ctx, database.PlatformInstitutionID, models.ProgramFilter{PageSize: 1}); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "check": "catalog"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("registry starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("registry failed", "error", err)
	}
}
