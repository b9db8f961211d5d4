package routes

import (
	co "velora_back_end/internal/handlers/checkout"
	"velora_back_end/internal/handlers/user"
	"velora_back_end/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api", middleware.APIRateLimit())

	// Checkout : ouvert aux invités, les claims JWT sont posés si présents
	ck := api.Group("/checkout", middleware.OptionalAuth())
	{
		ck.POST("/shipping", co.SubmitShipping)
		ck.GET("/shipping-options", co.GetShippingOptions)
		ck.GET("/promotions/validate", co.ValidatePromotion)
		ck.POST("/confirm", co.ConfirmOrder)
		ck.GET("/confirmation", co.GetConfirmation)
		ck.POST("/pay", middleware.PaymentRateLimit(), co.Pay)
		ck.POST("/pay/card/confirm", co.ConfirmCard)
		ck.POST("/pay/cod/confirm", co.ConfirmCOD)
	}

	// Callbacks providers : pas d'authentification utilisateur
	api.POST("/payments/wallet/callback", co.WalletCallback)
	api.POST("/payments/webhook", co.StripeWebhook)

	// Espace client
	me := api.Group("/me", middleware.AuthRequired())
	{
		me.GET("/orders", user.GetMyOrders)
		me.GET("/orders/:id", user.GetOrderByID)
	}
}
