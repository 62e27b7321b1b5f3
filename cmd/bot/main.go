package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brandguard/brandguard-bot/internal/activebrand"
	"github.com/brandguard/brandguard-bot/internal/config"
	"github.com/brandguard/brandguard-bot/internal/dispatch"
	"github.com/brandguard/brandguard-bot/internal/fallback"
	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/brandguard/brandguard-bot/internal/monitoring"
	"github.com/brandguard/brandguard-bot/internal/notifications"
	"github.com/brandguard/brandguard-bot/internal/scheduler"
	"github.com/brandguard/brandguard-bot/internal/storage"
	"github.com/brandguard/brandguard-bot/internal/store"
	"github.com/brandguard/brandguard-bot/internal/syncclient"
	"github.com/brandguard/brandguard-bot/internal/views"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting BrandGuard Bot")

	// Initialize storage
	storageClient, err := newStorage(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize the active brand selector, the backend client, and the
	// shared entity store.
	brands := activebrand.New(storageClient, cfg.DefaultBrandID)
	client := syncclient.New(cfg.APIBaseURL, cfg.RequestTimeout)
	entityStore := store.New()

	resolver := fallback.NewResolver()
	engine := views.NewEngine(views.ClientFetcher{Client: client}, entityStore, resolver, brands, cfg.OfflineMode)
	dispatcher := dispatch.New(entityStore, client)

	// Initialize background services
	notificationService := notifications.NewService(cfg)
	monitoringService := monitoring.NewService(cfg, client, entityStore, brands, storageClient, notificationService)
	schedulerService := scheduler.NewService(cfg, monitoringService)

	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server
	router := mux.NewRouter()
	router.Use(recoveryMiddleware)

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(monitoringService)).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(monitoringService)).Methods("POST")

	// Read path: one parameterized engine serves every view.
	router.HandleFunc("/views/alerts", collectionHandler(engine, models.KindAlert)).Methods("GET")
	router.HandleFunc("/views/scouts", collectionHandler(engine, models.KindScout)).Methods("GET")
	router.HandleFunc("/views/corrections", collectionHandler(engine, models.KindCorrection)).Methods("GET")
	for _, name := range []string{"health", "trend", "network", "sources"} {
		router.HandleFunc("/views/"+name, documentHandler(engine, name)).Methods("GET")
	}

	// Brand selection
	router.HandleFunc("/brand", getBrandHandler(brands)).Methods("GET")
	router.HandleFunc("/brand", setBrandHandler(brands)).Methods("PUT")

	// Actions
	router.HandleFunc("/alerts/{id}/investigate", alertActionHandler(brands, dispatcher.Investigate)).Methods("POST")
	router.HandleFunc("/alerts/{id}/autocorrect", alertActionHandler(brands, dispatcher.AutoCorrect)).Methods("POST")
	router.HandleFunc("/corrections/{id}/publish", publishCorrectionHandler(brands, dispatcher)).Methods("POST")
	router.HandleFunc("/scouts", createScoutHandler(brands, dispatcher)).Methods("POST")
	router.HandleFunc("/scouts/{id}/pause", scoutActionHandler(brands, dispatcher.PauseScout)).Methods("POST")
	router.HandleFunc("/scouts/{id}/resume", scoutActionHandler(brands, dispatcher.ResumeScout)).Methods("POST")
	router.HandleFunc("/scouts/{id}", deleteScoutHandler(brands, dispatcher)).Methods("DELETE")
	router.HandleFunc("/onboard", onboardHandler(dispatcher)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func newStorage(cfg *config.Config) (storage.Interface, error) {
	if cfg.StorageBackend == "azure" {
		return storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
	}
	return storage.NewLocalStorage(cfg.DataDir)
}

// recoveryMiddleware converts a handler panic into a recoverable error
// response instead of tearing the process down.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.Errorf("Panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "internal error, please retry")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeActionError maps action failures onto HTTP statuses: rejected
// preconditions are conflicts, backend failures are bad gateways.
func writeActionError(w http.ResponseWriter, err error) {
	var precondition *dispatch.PreconditionError
	if errors.As(err, &precondition) {
		writeError(w, http.StatusConflict, precondition.Error())
		return
	}
	if syncErr, ok := syncclient.AsSyncError(err); ok {
		writeError(w, http.StatusBadGateway, syncErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics := monitoringService.GetMetrics()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(metrics))
	}
}

func triggerHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := monitoringService.RunSweep(); err != nil {
				logrus.Errorf("Manual sweep trigger failed: %v", err)
			}
		}()

		writeJSON(w, http.StatusOK, map[string]string{"message": "Sweep triggered successfully"})
	}
}

func collectionHandler(engine *views.Engine, kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := engine.Collection(r.Context(), kind)
		if errors.Is(err, views.ErrSuperseded) {
			writeError(w, http.StatusConflict, "brand switched during fetch, retry")
			return
		}
		if err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func documentHandler(engine *views.Engine, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := engine.Document(r.Context(), name)
		if errors.Is(err, views.ErrSuperseded) {
			writeError(w, http.StatusConflict, "brand switched during fetch, retry")
			return
		}
		if err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func getBrandHandler(brands *activebrand.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"brand_id": brands.Get()})
	}
}

func setBrandHandler(brands *activebrand.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			BrandID string `json:"brand_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.BrandID == "" {
			writeError(w, http.StatusBadRequest, "brand_id is required")
			return
		}
		brands.Set(body.BrandID)
		writeJSON(w, http.StatusOK, map[string]string{"brand_id": brands.Get()})
	}
}

func alertActionHandler(brands *activebrand.Store, action func(ctx context.Context, brandID, alertID string) (models.Alert, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alert, err := action(r.Context(), brands.Get(), mux.Vars(r)["id"])
		if err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	}
}

func scoutActionHandler(brands *activebrand.Store, action func(ctx context.Context, brandID, scoutID string) (models.Scout, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scout, err := action(r.Context(), brands.Get(), mux.Vars(r)["id"])
		if err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, scout)
	}
}

func publishCorrectionHandler(brands *activebrand.Store, dispatcher *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correction, err := dispatcher.PublishCorrection(r.Context(), brands.Get(), mux.Vars(r)["id"])
		if err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, correction)
	}
}

func createScoutHandler(brands *activebrand.Store, dispatcher *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query          string `json:"query"`
			DisplayName    string `json:"display_name"`
			OutputInterval int    `json:"output_interval"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		scout, err := dispatcher.CreateScout(r.Context(), brands.Get(), dispatch.ScoutDraft{
			Query:          body.Query,
			DisplayName:    body.DisplayName,
			OutputInterval: body.OutputInterval,
		})
		if err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, scout)
	}
}

func deleteScoutHandler(brands *activebrand.Store, dispatcher *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := dispatcher.DeleteScout(r.Context(), brands.Get(), mux.Vars(r)["id"]); err != nil {
			writeActionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func onboardHandler(dispatcher *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var brand models.Brand
		if err := json.NewDecoder(r.Body).Decode(&brand); err != nil || brand.Name == "" {
			writeError(w, http.StatusBadRequest, "brand name is required")
			return
		}
		if err := dispatcher.OnboardBrand(r.Context(), brand); err != nil {
			writeActionError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Onboarding started"})
	}
}
