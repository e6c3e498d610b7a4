package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mkrivosheev/kp-builder/internal/builder"
	"github.com/mkrivosheev/kp-builder/internal/config"
	"github.com/mkrivosheev/kp-builder/internal/draft"
	"github.com/mkrivosheev/kp-builder/internal/handlers"
	"github.com/mkrivosheev/kp-builder/internal/middleware"
	"github.com/mkrivosheev/kp-builder/internal/repository"
	"github.com/mkrivosheev/kp-builder/internal/service"
	"github.com/mkrivosheev/kp-builder/pkg/logger"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting proposal builder api server",
		"port", cfg.Server.Port,
		"host", cfg.Server.Host,
		"log_level", cfg.LogLevel,
	)

	// Open the draft snapshot store
	store, err := draft.Open(cfg.Draft.DBPath, time.Duration(cfg.Draft.DebounceMs)*time.Millisecond, log)
	if err != nil {
		log.Error("failed to open draft store", "path", cfg.Draft.DBPath, "error", err)
		os.Exit(1)
	}

	retention := time.Duration(cfg.Draft.RetentionDays) * 24 * time.Hour
	janitor, err := draft.StartJanitor(store, cfg.Draft.JanitorSpec, retention, log)
	if err != nil {
		log.Error("failed to start draft janitor", "spec", cfg.Draft.JanitorSpec, "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	catalogRepo := repository.NewInMemoryCatalogRepository()
	benefitRepo := repository.NewInMemoryBenefitRepository()
	clientRepo := repository.NewInMemoryClientRepository()
	checklistRepo := repository.NewInMemoryEventDetailsRepository(repository.SeedChecklists())
	questionnaireRepo := repository.NewInMemoryEventDetailsRepository(repository.SeedQuestionnaires())
	templateRepo := repository.NewInMemoryTemplateRepository()
	proposalRepo := repository.NewInMemoryProposalRepository()

	// Initialize services
	catalogService := service.NewCatalogService(catalogRepo)
	renderService := service.NewRenderService(proposalRepo, templateRepo)
	manager := builder.NewManager(store, benefitRepo, clientRepo, catalogRepo, log)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(log)
	dishHandler := handlers.NewDishHandler(catalogService, log)
	benefitHandler := handlers.NewBenefitHandler(benefitRepo, log)
	clientHandler := handlers.NewClientHandler(clientRepo, checklistRepo, questionnaireRepo, log)
	templateHandler := handlers.NewTemplateHandler(templateRepo, log)
	proposalHandler := handlers.NewProposalHandler(proposalRepo, renderService, log)
	draftHandler := handlers.NewDraftHandler(manager, catalogRepo, checklistRepo, questionnaireRepo, proposalRepo, log)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "api_key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Register health check endpoint
	r.Get("/health", healthHandler.ServeHTTP)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Reference data endpoints
		r.Get("/dish", dishHandler.ListDishes)
		r.Get("/dish/{dishId}", dishHandler.GetDish)
		r.Get("/benefit", benefitHandler.ListBenefits)
		r.Get("/client", clientHandler.ListClients)
		r.Get("/client/{clientId}", clientHandler.GetClient)
		r.Get("/client/{clientId}/event-details", clientHandler.GetClientEventDetails)
		r.Get("/template", templateHandler.ListTemplates)

		// Proposal endpoints
		r.Get("/proposal", proposalHandler.ListProposals)
		r.Get("/proposal/{proposalId}", proposalHandler.GetProposal)

		// Draft builder endpoints require an API key
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(cfg.Auth))

			r.Post("/proposal/{proposalId}/render", proposalHandler.RenderProposal)

			r.Post("/draft", draftHandler.OpenDraft)
			r.Route("/draft/{draftId}", func(r chi.Router) {
				r.Get("/", draftHandler.GetDraft)
				r.Delete("/", draftHandler.DiscardDraft)

				r.Put("/client", draftHandler.SetClient)
				r.Put("/event", draftHandler.SetEvent)
				r.Put("/guests", draftHandler.SetGuests)
				r.Put("/transport", draftHandler.SetTransport)
				r.Put("/group", draftHandler.SetGroup)

				r.Post("/dish/catalog/{dishId}", draftHandler.ToggleCatalogDish)
				r.Post("/dish/custom", draftHandler.AddCustomDish)
				r.Put("/dish/custom/{dishId}", draftHandler.UpdateCustomDish)
				r.Delete("/dish/{kind}/{dishId}", draftHandler.RemoveDish)
				r.Put("/dish/{kind}/{dishId}/quantity", draftHandler.SetDishQuantity)
				r.Put("/dish/{kind}/{dishId}/price", draftHandler.SetDishPrice)
				r.Put("/dish/{kind}/{dishId}/measure", draftHandler.SetDishMeasure)

				r.Post("/equipment", draftHandler.AddEquipment)
				r.Put("/equipment/{itemId}", draftHandler.UpdateEquipment)
				r.Delete("/equipment/{itemId}", draftHandler.RemoveEquipment)
				r.Put("/loss-charge", draftHandler.SetLossCharge)

				r.Post("/service", draftHandler.AddService)
				r.Put("/service/{itemId}", draftHandler.UpdateService)
				r.Delete("/service/{itemId}", draftHandler.RemoveService)

				r.Post("/format", draftHandler.CreateFormat)
				r.Put("/format/{formatId}", draftHandler.UpdateFormat)
				r.Put("/format/{formatId}/group", draftHandler.SetFormatGroup)
				r.Delete("/format/{formatId}", draftHandler.DeleteFormat)
				r.Post("/format/{formatId}/dish/{kind}/{dishId}", draftHandler.AddFormatDish)
				r.Delete("/format/{formatId}/dish/{kind}/{dishId}", draftHandler.RemoveFormatDish)

				r.Put("/discount", draftHandler.SetDiscount)
				r.Put("/cashback", draftHandler.SetCashback)
				r.Put("/template", draftHandler.SetTemplate)
				r.Put("/delivery", draftHandler.SetDelivery)

				r.Get("/totals", draftHandler.GetTotals)
				r.Post("/step", draftHandler.GoToStep)
				r.Post("/submit", draftHandler.Submit)
			})
		})
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	janitor.Stop()
	if err := store.Close(); err != nil {
		log.Error("failed to close draft store", "error", err)
	}

	log.Info("server stopped gracefully")
}
