package main

import (
	"log"
	"os"

	"velora_back_end/internal/checkout"
	"velora_back_end/internal/config"
	"velora_back_end/internal/database"
	co "velora_back_end/internal/handlers/checkout"
	"velora_back_end/internal/handlers/user"
	"velora_back_end/internal/payment"
	"velora_back_end/internal/promotion"
	"velora_back_end/internal/routes"
	"velora_back_end/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
)

func main() {
	config.Load()

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	log.Println("✅ Stripe initialisé")

	database.ConnectDatabases()
	defer database.CloseScylla()

	// Stores
	orders := store.NewScyllaOrderStore()
	promos := store.NewScyllaPromotionStore()
	carts := store.NewRedisCartStore()
	drafts := store.NewRedisDraftStore()
	refs := store.NewRedisReferenceCache()
	flags := store.NewRedisFlagStore()

	// Providers de paiement
	walletBaseURL := os.Getenv("WALLET_BASE_URL")
	if walletBaseURL == "" {
		walletBaseURL = "https://wallet.example.com/pay"
	}
	currency := os.Getenv("CHECKOUT_CURRENCY")
	if currency == "" {
		currency = "eur"
	}

	orch := checkout.NewOrchestrator(orders, carts, drafts, promos, refs, flags, currency,
		payment.NewWalletAdapter(walletBaseURL),
		payment.NewHostedCardAdapter(),
		payment.NewCODAdapter(),
	)

	resolver := promotion.NewResolver(promos)
	market := checkout.Market(config.Market())
	flow := checkout.NewFlowController(market, orch, drafts, carts, orders, promos, resolver)
	log.Printf("🛒 Checkout démarré en marché %q", market)

	co.Init(flow, orders, carts, promos, resolver)
	user.Orders = orders

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{os.Getenv("FRONTEND_URL")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Session-ID", "Stripe-Signature"},
		AllowCredentials: true,
	}))

	routes.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Serveur Velora lancé sur le port", port)
	r.Run(":" + port)
}
