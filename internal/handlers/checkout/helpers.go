package co

import (
	"errors"
	"log"
	"net/http"

	"velora_back_end/internal/checkout"
	"velora_back_end/internal/promotion"

	"github.com/gin-gonic/gin"
)

// Collaborateurs injectés au démarrage (voir routes.Register)
var (
	Flow     *checkout.FlowController
	Orders   checkout.OrderStore
	Carts    checkout.CartStore
	Promos   checkout.PromotionCatalog
	Resolver *promotion.Resolver
)

// Init branche les handlers sur le flow et les stores construits dans main
func Init(flow *checkout.FlowController, orders checkout.OrderStore, carts checkout.CartStore, promos checkout.PromotionCatalog, resolver *promotion.Resolver) {
	Flow = flow
	Orders = orders
	Carts = carts
	Promos = promos
	Resolver = resolver
}

// sessionIdentity retourne l'identité de session : user_id si connecté,
// sinon l'id de session invité fourni par le front.
func sessionIdentity(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return userID
	}
	return c.GetHeader("X-Session-ID")
}

// userContext construit le contexte promotion depuis les claims JWT (ou un
// invité identifié par son e-mail de checkout).
func userContext(c *gin.Context, guestEmail string) promotion.UserContext {
	return promotion.UserContext{
		UserID: c.GetString("user_id"),
		Email:  firstNonEmpty(c.GetString("email"), guestEmail),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// respondError traduit la taxonomie d'erreurs checkout en statuts HTTP
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkout.ErrValidation), errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrNotFound), errors.Is(err, checkout.ErrNoOrder):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrProvider):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Erreur du provider de paiement, vous pouvez réessayer"})
	default:
		log.Printf("❌ Erreur checkout: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne"})
	}
}
