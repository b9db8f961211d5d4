package co

import (
	"log"
	"net/http"
	"strconv"

	"velora_back_end/internal/checkout"
	"velora_back_end/internal/database"
	"velora_back_end/internal/models"
	"velora_back_end/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// SubmitShipping enregistre l'étape livraison : validation du stock, pricing,
// promotion figée. Sur le marché courier la commande est créée ici.
func SubmitShipping(c *gin.Context) {
	var req struct {
		Address        models.Address `json:"address" binding:"required"`
		ShippingMethod string         `json:"shipping_method" binding:"required"`
		PaymentMethod  string         `json:"payment_method"`
		CouponCode     string         `json:"coupon_code"` // Optionnel
		Email          string         `json:"email"`       // Invités
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	sessionID := sessionIdentity(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session de checkout manquante"})
		return
	}

	// Vérifier le stock avant d'engager quoi que ce soit
	cart, err := Carts.Get(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture panier"})
		return
	}
	if ok := validateStock(c, cart.Items); !ok {
		return
	}

	draft, err := Flow.SubmitShipping(c.Request.Context(), sessionID, userContext(c, req.Email), checkout.ShippingRequest{
		Address:        req.Address,
		ShippingMethod: req.ShippingMethod,
		PaymentMethod:  req.PaymentMethod,
		CouponCode:     req.CouponCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("🚚 Livraison enregistrée pour %s (%.2f€)", sessionID, draft.Total)

	c.JSON(http.StatusOK, gin.H{
		"draft":          draft,
		"order_id":       draft.OrderID,
		"order_deferred": draft.PendingCreation,
	})
}

// validateStock rejette la requête si un article du panier dépasse le stock.
// Renvoie false quand la réponse HTTP a déjà été écrite.
func validateStock(c *gin.Context, items []models.CartItem) bool {
	if len(items) == 0 {
		return true // le flow remontera ErrEmptyCart avec le bon message
	}

	productsSession, err := database.GetProductsSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return false
	}

	for _, item := range items {
		productUUID, err := uuid.Parse(item.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ID produit invalide: " + item.ProductID})
			return false
		}

		var stock int
		var name string
		err = productsSession.Query("SELECT stock, name FROM products WHERE product_id = ?", gocql.UUID(productUUID)).
			WithContext(c.Request.Context()).Scan(&stock, &name)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable: " + item.ProductID})
			return false
		}

		if stock < item.Quantity {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Stock insuffisant",
				"product":   name,
				"available": stock,
				"requested": item.Quantity,
			})
			return false
		}
	}
	return true
}

// GetShippingOptions retourne les options de livraison pour un pays donné
func GetShippingOptions(c *gin.Context) {
	country := c.DefaultQuery("country", "be")

	var cartTotal float64
	if total := c.Query("cart_total"); total != "" {
		if n, err := strconv.ParseFloat(total, 64); err == nil {
			cartTotal = n
		}
	}

	c.JSON(http.StatusOK, pricing.ShippingOptions(country, cartTotal))
}

// ConfirmOrder est le "Confirmer la commande" du marché global
func ConfirmOrder(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)

	sessionID := sessionIdentity(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session de checkout manquante"})
		return
	}

	orderID, err := Flow.ConfirmOrder(c.Request.Context(), sessionID, userContext(c, req.Email))
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("✅ Commande confirmée: %s (session %s)", orderID, sessionID)
	c.JSON(http.StatusOK, gin.H{"order_id": orderID})
}

// GetConfirmation reconstruit la page de confirmation. Joignable avec le seul
// ?order_id= (retour de redirection wallet, lien marqué), sans brouillon local.
func GetConfirmation(c *gin.Context) {
	sessionID := sessionIdentity(c)
	orderID := c.Query("order_id")

	view, err := Flow.LoadConfirmation(c.Request.Context(), sessionID, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
