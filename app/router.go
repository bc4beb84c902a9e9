// Package app wires the contract API: HTTP routes, persistence, payment
// gateway, extraction, and the mail queue.
package app

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/samouzou/verza/auth"
)

// NewRouter builds the HTTP router. The webhook and health endpoints are
// public; everything else requires a verified bearer token.
func (s *Server) NewRouter() (*gin.Engine, error) {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", s.Health)
	router.POST("/api/stripe/webhook", s.StripeWebhook)

	verifier, err := auth.NewVerifierFromEnv()
	if err != nil && !auth.AuthDisabled() {
		return nil, err
	}

	protected := router.Group("/")
	protected.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		OnAuthenticated: func(ctx context.Context, claims *auth.Claims) error {
			return s.store.UpsertUserFromClaims(ctx, claims)
		},
	}))

	protected.GET("/me", s.Me)
	protected.GET("/api/dashboard", s.Dashboard)

	protected.GET("/api/contracts", s.ListContracts)
	protected.GET("/api/contracts/events", s.StreamContractEvents)
	protected.POST("/api/contracts", s.CreateContract)
	protected.POST("/api/contracts/extract", s.ExtractContract)
	protected.GET("/api/contracts/:id", s.GetContract)
	protected.PATCH("/api/contracts/:id/status", s.UpdateContractStatus)

	protected.POST("/api/contracts/:id/invoice", s.GenerateInvoice)
	protected.POST("/api/contracts/:id/invoice/send", s.SendInvoice)
	protected.PATCH("/api/contracts/:id/invoice/status", s.UpdateInvoiceStatus)
	protected.GET("/api/contracts/:id/invoice/history", s.InvoiceHistory)

	protected.POST("/api/contracts/:id/pay", s.CreateContractPayment)
	protected.POST("/api/billing/create-checkout-session", s.CreateCheckoutSession)
	protected.POST("/api/billing/portal-session", s.CreatePortalSession)
	protected.POST("/api/payouts/connect", s.ConnectPayoutAccount)

	return router, nil
}
