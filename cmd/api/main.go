package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hms-api/internal/config"
	"github.com/jwalitptl/hms-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/hms-api/internal/handler/appointment"
	billingHandler "github.com/jwalitptl/hms-api/internal/handler/billing"
	consultationHandler "github.com/jwalitptl/hms-api/internal/handler/consultation"
	labHandler "github.com/jwalitptl/hms-api/internal/handler/lab"
	pharmacyHandler "github.com/jwalitptl/hms-api/internal/handler/pharmacy"
	"github.com/jwalitptl/hms-api/internal/middleware"
	"github.com/jwalitptl/hms-api/internal/repository/postgres"
	"github.com/jwalitptl/hms-api/internal/router"
	appointmentService "github.com/jwalitptl/hms-api/internal/service/appointment"
	billingService "github.com/jwalitptl/hms-api/internal/service/billing"
	consultationService "github.com/jwalitptl/hms-api/internal/service/consultation"
	dispensingService "github.com/jwalitptl/hms-api/internal/service/dispensing"
	labService "github.com/jwalitptl/hms-api/internal/service/lab"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	txManager := postgres.NewTxManager(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	prescriptionRepo := postgres.NewPrescriptionRepository(db)
	dispensingRepo := postgres.NewDispensingRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	medicineRepo := postgres.NewMedicineRepository(db)
	labRepo := postgres.NewLabRepository(db)
	invoiceRepo := postgres.NewInvoiceRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.NewMetrics("hms")
	estimator := appointmentService.NewQueueEstimator(
		cfg.Clinic.OpeningHour,
		cfg.Clinic.OpeningMinute,
		cfg.Clinic.SlotMinutes,
	)

	// Services
	appointmentSvc := appointmentService.NewService(appointmentRepo, doctorRepo, outboxRepo, txManager, estimator, m)
	consultationSvc := consultationService.NewService(appointmentRepo, prescriptionRepo, labRepo, outboxRepo, txManager, m)
	dispensingSvc := dispensingService.NewService(appointmentRepo, prescriptionRepo, dispensingRepo, inventoryRepo, medicineRepo, outboxRepo, txManager, m)
	billingSvc := billingService.NewService(appointmentRepo, doctorRepo, prescriptionRepo, dispensingRepo, labRepo, invoiceRepo, outboxRepo, txManager, m)
	labSvc := labService.NewService(labRepo, outboxRepo, txManager)

	// Handlers
	h := handler.NewHandler(db)
	appointmentH := appointmentHandler.NewHandler(appointmentSvc)
	consultationH := consultationHandler.NewHandler(consultationSvc)
	pharmacyH := pharmacyHandler.NewHandler(dispensingSvc, appointmentSvc)
	billingH := billingHandler.NewHandler(billingSvc)
	labH := labHandler.NewHandler(labSvc)

	r := router.NewRouter(
		appointmentH,
		consultationH,
		pharmacyH,
		billingH,
		labH,
		h,
		router.RouterConfig{
			JWTSecret:     cfg.JWT.Secret,
			RateLimit:     rate.Limit(100),
			RateBurst:     200,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "hms_http",
			Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
