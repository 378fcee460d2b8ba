package backoffice

import (
	"net/http"
	"strings"

	"github.com/AimalShah/BarterDash-sub000/internal/backoffice/handler"
	"github.com/AimalShah/BarterDash-sub000/internal/config"
	"github.com/AimalShah/BarterDash-sub000/internal/repository"
	"github.com/AimalShah/BarterDash-sub000/internal/service"
	"github.com/AimalShah/BarterDash-sub000/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	BiddingSvc  *service.BiddingService
	EscrowSvc   *service.EscrowService
	AuctionRepo *repository.AuctionRepository
	BidRepo     *repository.BidRepository
	EscrowRepo  *repository.EscrowRepository
	Hub         *ws.Hub
	Cfg         *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine on port 8081.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.AuctionRepo, deps.EscrowRepo, deps.Hub, deps.Cfg)
	auctionH := handler.NewAuctionAdminHandler(deps.BiddingSvc, deps.AuctionRepo, deps.BidRepo, deps.Cfg)
	escrowH := handler.NewEscrowAdminHandler(deps.EscrowSvc, deps.EscrowRepo, deps.Cfg)
	financeH := handler.NewFinanceHandler(deps.EscrowRepo, deps.Cfg)

	jwtMW := adminJWTMiddleware(deps.Cfg.JWT.AccessSecret)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Auctions
		a := admin.Group("/auctions")
		{
			a.GET("", auctionH.List)
			a.GET("/:id", auctionH.Detail)
			a.POST("/:id/close", auctionH.ForceClose)
			a.POST("/:id/cancel", auctionH.Cancel)
		}

		// Escrows
		e := admin.Group("/escrows")
		{
			e.GET("", escrowH.List)
			e.GET("/:id", escrowH.Detail)
			e.POST("/:id/release", escrowH.ForceRelease)
			e.POST("/:id/refund", escrowH.Refund)
			e.POST("/:id/cancel", escrowH.Cancel)
		}

		// Finance
		fin := admin.Group("/finance")
		{
			fin.GET("/report", financeH.Report)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !allowed[clientIP] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires the caller to have a
// backoffice-capable role (admin, support, finance, ops).
func adminJWTMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	backofficeRoles := map[string]bool{
		"admin":    true,
		"support":  true,
		"finance":  true,
		"ops":      true,
		"readonly": true,
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims := jwt.MapClaims{}
		tok, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			})
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		role, _ := claims["role"].(string)
		if !backofficeRoles[role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		sub, _ := claims.GetSubject()
		c.Set("userID", sub)
		c.Set("role", role)
		c.Next()
	}
}
