package co

import (
	"errors"
	"net/http"
	"strings"

	"velora_back_end/internal/checkout"
	"velora_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

// ValidatePromotion vérifie un code promo contre le panier courant de la
// session, sans rien figer : la réponse est purement indicative, la valeur
// autoritaire est figée à l'étape livraison.
func ValidatePromotion(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code requis"})
		return
	}

	sessionID := sessionIdentity(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session de checkout manquante"})
		return
	}

	promo, err := Promos.ByCode(c.Request.Context(), strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, checkout.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.PromotionValidation{
				IsValid:      false,
				ErrorMessage: "Code invalide ou expiré",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture promotion"})
		return
	}

	cart, err := Carts.Get(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture panier"})
		return
	}

	c.JSON(http.StatusOK, Resolver.Validate(c.Request.Context(), *promo, *cart, userContext(c, c.Query("email"))))
}
