package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pasindubuddhika1999/findmyphone/internal/api/handlers"
	"github.com/pasindubuddhika1999/findmyphone/internal/api/middleware"
	"github.com/pasindubuddhika1999/findmyphone/internal/cache"
	"github.com/pasindubuddhika1999/findmyphone/internal/captcha"
	"github.com/pasindubuddhika1999/findmyphone/internal/config"
	"github.com/pasindubuddhika1999/findmyphone/internal/email"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
)

// Services bundles the domain services the public API is built on.
type Services struct {
	Users    services.IUserService
	Shops    services.IShopService
	Listings services.IListingService
	Metadata services.IMetadataService
	Banners  services.IBannerService
	Admin    services.IAdminService
}

// authLimits throttle login and registration harder than the rest of the API.
var authLimits = middleware.Limits{
	SoftRefillRate: 1,
	SoftBucketSize: 5,
	HardRefillRate: 1,
	HardBucketSize: 10,
}

// maxUploadMemory bounds multipart parsing; larger parts spill to temp files.
const maxUploadMemory = 32 << 20

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, svc Services, banList cache.IBanList, captchaVerifier captcha.ITurnstileVerifier) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = maxUploadMemory

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	authn := middleware.NewAuthenticator(cfg.JwtSecret, banList)

	// Order matters: the captcha middleware marks humans before the limiter runs.
	r.Use(middleware.CORSMiddleware(cfg.CorsOrigin))
	r.Use(middleware.Metrics())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewRestAuthHandler(cfg, svc.Users, svc.Shops)
	listingHandler := handlers.NewRestListingHandler(cfg, svc.Listings)
	metadataHandler := handlers.NewRestMetadataHandler(svc.Metadata)
	bannerHandler := handlers.NewRestBannerHandler(svc.Banners)
	adminHandler := handlers.NewRestAdminHandler(svc.Admin, svc.Users, svc.Shops, svc.Listings)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authGroup := v1.Group("/auth")
		{
			limited := authGroup.Group("/", rateLimiter.LimitWith("auth", authLimits))
			limited.POST("/register", authHandler.Register)
			limited.POST("/register-shop", authHandler.RegisterShop)
			limited.POST("/login", authHandler.Login)

			private := authGroup.Group("/", authn.Required())
			private.GET("/profile", authHandler.GetProfile)
			private.PUT("/profile", authHandler.UpdateProfile)
			private.PUT("/change-password", authHandler.ChangePassword)
			private.PUT("/shop-profile", authHandler.UpdateShopProfile)
		}

		posts := v1.Group("/posts")
		{
			posts.GET("", listingHandler.SearchListings)
			posts.GET("/statistics", listingHandler.Statistics)
			posts.GET("/search/imei/:imei", listingHandler.SearchByIMEI)
			posts.GET("/my", authn.Required(), listingHandler.ListOwnListings)
			posts.GET("/:id", listingHandler.GetListing)
			posts.POST("", authn.Required(), listingHandler.CreateListing)
			posts.PUT("/:id", authn.Required(), listingHandler.UpdateListing)
			posts.PATCH("/:id/resolve", authn.Required(), listingHandler.ResolveListing)
			posts.DELETE("/:id", authn.Required(), listingHandler.DeleteListing)
		}

		metadata := v1.Group("/metadata", authn.Optional())
		{
			metadata.GET("/brands", metadataHandler.ListBrands)
			metadata.GET("/models", metadataHandler.ListModels)
			metadata.GET("/colors", metadataHandler.ListColors)
			metadata.GET("/districts", metadataHandler.ListDistricts)
			metadata.GET("/towns", metadataHandler.ListTowns)
		}

		v1.GET("/banners", bannerHandler.ListActive)

		admin := v1.Group("/admin", authn.Required(), middleware.AdminMiddleware())
		{
			admin.GET("/dashboard", adminHandler.Dashboard)

			admin.GET("/shops", adminHandler.ListShops)
			admin.GET("/shops/:id", adminHandler.GetShop)
			admin.PATCH("/shops/:id/approve", adminHandler.ApproveShop)
			admin.PATCH("/shops/:id/reject", adminHandler.RejectShop)
			admin.PATCH("/shops/:id/revoke", adminHandler.RevokeShop)
			admin.DELETE("/shops/:id", adminHandler.DeleteShop)

			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.PATCH("/users/:id/ban", adminHandler.ToggleBan)
			admin.PATCH("/users/:id/role", adminHandler.ChangeRole)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.POST("/bulk-action", adminHandler.BulkAction)

			admin.GET("/posts", adminHandler.ListPosts)
			admin.PUT("/posts/:id", adminHandler.UpdatePost)
			admin.DELETE("/posts/:id", adminHandler.DeletePost)

			admin.POST("/metadata/brands", metadataHandler.CreateBrand)
			admin.PUT("/metadata/brands/:id", metadataHandler.UpdateBrand)
			admin.DELETE("/metadata/brands/:id", metadataHandler.DeleteBrand)
			admin.POST("/metadata/models", metadataHandler.CreateModel)
			admin.PUT("/metadata/models/:id", metadataHandler.UpdateModel)
			admin.DELETE("/metadata/models/:id", metadataHandler.DeleteModel)
			admin.POST("/metadata/colors", metadataHandler.CreateColor)
			admin.PUT("/metadata/colors/:id", metadataHandler.UpdateColor)
			admin.DELETE("/metadata/colors/:id", metadataHandler.DeleteColor)
			admin.POST("/metadata/districts", metadataHandler.CreateDistrict)
			admin.PUT("/metadata/districts/:id", metadataHandler.UpdateDistrict)
			admin.DELETE("/metadata/districts/:id", metadataHandler.DeleteDistrict)
			admin.POST("/metadata/towns", metadataHandler.CreateTown)
			admin.PUT("/metadata/towns/:id", metadataHandler.UpdateTown)
			admin.DELETE("/metadata/towns/:id", metadataHandler.DeleteTown)

			admin.GET("/banners", bannerHandler.ListAll)
			admin.GET("/banners/:id", bannerHandler.GetBanner)
			admin.POST("/banners", bannerHandler.CreateBanner)
			admin.PUT("/banners/:id", bannerHandler.UpdateBanner)
			admin.DELETE("/banners/:id", bannerHandler.DeleteBanner)
		}
	}

	return r
}

// SetupServiceRouter configures the internal service engine: shutdown,
// mock email retrieval for end-to-end tests, and Prometheus metrics.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // [kind, email]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			if rdb == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Redis is not configured"})
				return
			}
			kind, to := args[0], args[1]

			// Delivery runs on the background worker, so poll briefly.
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				msg, err := email.ReadMockEmail(ctx, rdb, to, kind)
				if err != nil {
					log.Printf("Service API: %v", err)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				if msg != nil {
					rdb.Del(ctx, email.MockEmailKey(to, kind))
					c.JSON(http.StatusOK, gin.H{"success": true, "data": msg})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found for key %s", email.MockEmailKey(to, kind))})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
