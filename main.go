package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pasindubuddhika1999/findmyphone/internal/api"
	"github.com/pasindubuddhika1999/findmyphone/internal/cache"
	"github.com/pasindubuddhika1999/findmyphone/internal/captcha"
	"github.com/pasindubuddhika1999/findmyphone/internal/config"
	"github.com/pasindubuddhika1999/findmyphone/internal/db"
	"github.com/pasindubuddhika1999/findmyphone/internal/email"
	"github.com/pasindubuddhika1999/findmyphone/internal/notify"
	"github.com/pasindubuddhika1999/findmyphone/internal/seed"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
	"github.com/pasindubuddhika1999/findmyphone/internal/storage"
	"github.com/pasindubuddhika1999/findmyphone/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all' (default), 'seed' (load metadata and exit)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIndex()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	metadataService := services.NewMetadataService(mongoDb, cache.NewRedisJSONCache(redisClient), cfg.MetadataCacheTTL)

	if cfg.RunMode == "seed" {
		runSeed(metadataService, cfg.SeedFile)
		return
	}

	// Initialize image storage. The S3 backend also serves the image worker.
	imageStore, err := storage.NewImageStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s image storage: %v", cfg.ImageStorage, err)
	}
	objectStore, _ := imageStore.(storage.IS3Storage)

	// Initialize Email Sender
	var primaryEmailSender email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg)
	} else {
		log.Println("MOCK_SERVICES disabled or not set: Using SMTP/Logging email sender.")
		primaryEmailSender = email.NewSMTPSender(cfg)
	}
	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)

	// Optionally add FileEmailSender if LOG_EMAILS is set
	if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(logEmailsPath)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", logEmailsPath, err)
		} else {
			compositeSender.AddSender(fileSender)
			log.Printf("LOG_EMAILS set to '%s', file email logger enabled.", logEmailsPath)
		}
	}

	// Task client and the dispatcher services use to queue side effects
	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	dispatcher := tasks.NewDispatcher(taskClient)

	// Initialize Services
	banList := cache.NewRedisBanList(redisClient)
	listingService := services.NewListingService(mongoDb, cfg, imageStore, dispatcher)
	userService := services.NewUserService(mongoDb, listingService, banList)
	shopService := services.NewShopService(mongoDb, dispatcher)
	bannerService := services.NewBannerService(mongoDb)
	adminService := services.NewAdminService(mongoDb, listingService, shopService)

	taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender, objectStore, notify.NewAdminNotifier(cfg))

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on :%s\n", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
		fmt.Println("Service API server stopped.")
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var taskServers []*asynq.Server

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		fmt.Println("Starting main API server...")
		router := api.SetupRouter(cfg, api.Services{
			Users:    userService,
			Shops:    shopService,
			Listings: listingService,
			Metadata: metadataService,
			Banners:  bannerService,
			Admin:    adminService,
		}, banList, captcha.NewTurnstileVerifier(cfg))
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	workerMode := func(name string, isImageWorker, isBgWorker bool) {
		srv, mux := tasks.SetupServer(redisClient, taskProcessor, isImageWorker, isBgWorker)
		if srv == nil {
			return
		}
		taskServers = append(taskServers, srv)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("%s task server starting...\n", name)
			if err := srv.Run(mux); err != nil {
				log.Fatalf("%s task server error: %v", name, err)
			}
			fmt.Printf("%s task server stopped.\n", name)
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		workerMode("Background", false, true)
	case "img":
		if objectStore == nil {
			log.Fatalf("Image worker requires IMAGE_STORAGE=%s", config.ImageStorageS3)
		}
		workerMode("Image processing", true, false)
	case "all":
		apiMode()
		workerMode("Background", false, true)
		if objectStore != nil {
			workerMode("Image processing", true, false)
		}
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	fmt.Println("Shutting down Service API server...")
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}

	for _, srv := range taskServers {
		srv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}

// runSeed loads the metadata catalog, embedded or from SEED_FILE, and exits.
func runSeed(metadataService services.IMetadataService, path string) {
	catalog, err := seed.Load(path)
	if err != nil {
		log.Fatalf("Failed to load seed catalog: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := metadataService.Seed(ctx, catalog)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seed complete: %d brands, %d models, %d colors, %d districts, %d towns inserted",
		result.Brands, result.Models, result.Colors, result.Districts, result.Towns)
}
