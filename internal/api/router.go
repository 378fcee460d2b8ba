package api

import (
	"log/slog"
	"net/http"

	"github.com/AimalShah/BarterDash-sub000/internal/api/handler"
	"github.com/AimalShah/BarterDash-sub000/internal/api/middleware"
	"github.com/AimalShah/BarterDash-sub000/internal/config"
	"github.com/AimalShah/BarterDash-sub000/internal/service"
	"github.com/AimalShah/BarterDash-sub000/internal/ws"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	BiddingSvc  *service.BiddingService
	EscrowSvc   *service.EscrowService
	CheckoutSvc *service.CheckoutService
	Hub         *ws.Hub
	Cfg         *config.Config
	Logger      *slog.Logger
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	auctionH := handler.NewAuctionHandler(deps.BiddingSvc)
	bidH := handler.NewBidHandler(deps.BiddingSvc)
	orderH := handler.NewOrderHandler(deps.CheckoutSvc)
	escrowH := handler.NewEscrowHandler(deps.EscrowSvc)
	webhookH := handler.NewWebhookHandler(deps.EscrowSvc, deps.Cfg.Payment.WebhookSecret, deps.Logger)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.Cfg.JWT.AccessSecret)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	writeRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for auction/payment writes
	bidRL := middleware.RateLimitMiddleware(30)   // 30 req/s per IP for bid endpoints

	api := r.Group("/api")
	{
		// ── Auctions (public reads) ──────────────────────────────────────────
		auctions := api.Group("/auctions")
		{
			auctions.GET("", auctionH.ListAuctions)
			auctions.GET("/:id", auctionH.GetAuction)
			auctions.GET("/:id/bids", auctionH.GetAuctionBids)
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			// Auction lifecycle (seller)
			sell := authed.Group("/auctions")
			sell.Use(writeRL)
			{
				sell.POST("", auctionH.CreateAuction)
				sell.POST("/:id/activate", auctionH.ActivateAuction)
			}

			// Bids
			bids := authed.Group("/auctions/:id")
			bids.Use(bidRL)
			{
				bids.POST("/bids", bidH.PlaceBid)
				bids.POST("/max-bid", bidH.RegisterMaxBid)
				bids.DELETE("/max-bid", bidH.CancelMaxBid)
			}
			authed.GET("/bids/my", bidH.GetMyBids)

			// Orders and escrow
			orders := authed.Group("/orders")
			{
				orders.GET("/my", orderH.GetMyOrders)
				orders.GET("/:id", orderH.GetOrder)
				orders.POST("/:id/pay", writeRL, escrowH.PayOrder)
				orders.GET("/:id/escrow", escrowH.GetOrderEscrow)
			}
			authed.GET("/escrows/:id", escrowH.GetEscrow)
		}
	}

	// ── Payment processor webhooks (signature-verified, no JWT) ──────────────
	r.POST("/webhooks/payments", webhookH.HandleProcessorEvent)

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In DEBUG mode all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			// Production: the storefront and its www alias only
			allowed := map[string]bool{
				"https://barterdash.live":     true,
				"https://www.barterdash.live": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
