package user

import (
	"log"
	"net/http"
	"time"

	"velora_back_end/internal/checkout"
	"velora_back_end/internal/database"

	"github.com/gin-gonic/gin"
)

// Orders est le store de commandes injecté au démarrage (voir routes.Register)
var Orders checkout.OrderStore

type orderSummary struct {
	OrderID   string    `json:"order_id"`
	Total     float64   `json:"total"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// GetMyOrders liste les commandes de l'utilisateur connecté
func GetMyOrders(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	iter := session.Query(
		"SELECT order_id, total, status, created_at FROM orders_by_user WHERE user_id = ?",
		userID,
	).WithContext(c.Request.Context()).Iter()

	var orders []orderSummary
	var o orderSummary
	for iter.Scan(&o.OrderID, &o.Total, &o.Status, &o.CreatedAt) {
		orders = append(orders, o)
	}
	if err := iter.Close(); err != nil {
		log.Println("❌ Erreur lecture commandes:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commandes"})
		return
	}

	log.Printf("✅ %d commandes trouvées pour user %s", len(orders), userID)

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
	})
}

// GetOrderByID retourne une commande, uniquement à son propriétaire
func GetOrderByID(c *gin.Context) {
	userID := c.GetString("user_id")
	orderID := c.Param("id")

	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	order, err := Orders.Fetch(c.Request.Context(), orderID)
	if err != nil {
		log.Println("❌ Commande introuvable:", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}

	// Sécurité : on vérifie que la commande appartient bien à l'utilisateur
	if order.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}

	c.JSON(http.StatusOK, order)
}
