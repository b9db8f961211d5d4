package co

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"velora_back_end/internal/models"
	"velora_back_end/internal/payment"
	"velora_back_end/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// Pay engage le paiement de la commande avec la méthode choisie
func Pay(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id"`
		Method  string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	instruction, err := Flow.Pay(c.Request.Context(), sessionIdentity(c), req.OrderID, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, instruction)
}

// WalletCallback reçoit le règlement hors bande du wallet à redirection.
// Rejouable : le wallet peut renvoyer le même callback plusieurs fois.
func WalletCallback(c *gin.Context) {
	var req struct {
		OrderID   string `json:"order_id" binding:"required"`
		Reference string `json:"reference" binding:"required"`
		Status    string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	result, err := Flow.Settle(c.Request.Context(), sessionIdentity(c), req.OrderID, models.PaymentMethodWallet, map[string]string{
		"reference": req.Reference,
		"status":    req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	settled(c.Request.Context(), req.OrderID, result)
	c.JSON(http.StatusOK, gin.H{"status": result.Status, "completed": result.Completed})
}

// ConfirmCard applique le retour du widget carte après confirmation côté client
func ConfirmCard(c *gin.Context) {
	var req struct {
		OrderID         string `json:"order_id" binding:"required"`
		PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	result, err := Flow.Settle(c.Request.Context(), sessionIdentity(c), req.OrderID, models.PaymentMethodHostedCard, map[string]string{
		"payment_intent_id": req.PaymentIntentID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	settled(c.Request.Context(), req.OrderID, result)
	c.JSON(http.StatusOK, gin.H{"status": result.Status, "completed": result.Completed})
}

// ConfirmCOD valide un paiement à la livraison : le checkout se termine,
// le paiement reste "pending" jusqu'à l'encaissement physique
func ConfirmCOD(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	result, err := Flow.Settle(c.Request.Context(), sessionIdentity(c), req.OrderID, models.PaymentMethodCOD, nil)
	if err != nil {
		respondError(c, err)
		return
	}

	settled(c.Request.Context(), req.OrderID, result)
	c.JSON(http.StatusOK, gin.H{"status": result.Status, "completed": result.Completed})
}

// StripeWebhook règle les paiements carte confirmés côté Stripe.
// C'est la voie de règlement fiable : le retour client peut ne jamais arriver.
func StripeWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		log.Println("❌ Lecture payload échouée:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Échec lecture body"})
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	var event stripe.Event

	if secret == "" {
		log.Println("⚠️ Pas de STRIPE_WEBHOOK_SECRET — mode test")
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Println("❌ JSON invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "JSON invalide"})
			return
		}
	} else {
		event, err = webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
		if err != nil {
			log.Println("❌ Signature Stripe invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
			return
		}
	}

	log.Printf("📥 Événement Stripe reçu : %s", event.Type)

	if event.Type != "payment_intent.succeeded" {
		log.Printf("ℹ️ Événement ignoré : %s", event.Type)
		c.Status(http.StatusOK)
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Println("❌ Erreur décodage PaymentIntent:", err)
		c.Status(http.StatusOK)
		return
	}

	orderID := pi.Metadata["order_id"]
	if orderID == "" {
		log.Printf("⚠️ PaymentIntent %s sans order_id, ignoré", pi.ID)
		c.Status(http.StatusOK)
		return
	}

	// Pas de session côté webhook : le brouillon sera purgé au prochain passage client
	result, err := Flow.Settle(c.Request.Context(), "", orderID, models.PaymentMethodHostedCard, map[string]string{
		"payment_intent_id": pi.ID,
	})
	if err != nil {
		// On répond 200 quand même : Stripe rejouerait indéfiniment sinon
		log.Printf("❌ Règlement webhook commande %s: %v", orderID, err)
		c.Status(http.StatusOK)
		return
	}

	settled(context.Background(), orderID, result)
	c.Status(http.StatusOK)
}

// settled envoie l'e-mail de confirmation après un checkout terminé.
// Asynchrone et non bloquant : un échec d'e-mail n'affecte jamais le paiement.
func settled(ctx context.Context, orderID string, result *payment.Result) {
	if !result.Completed {
		return
	}

	order, err := Orders.Fetch(ctx, orderID)
	if err != nil {
		log.Printf("⚠️ Commande %s illisible pour l'e-mail de confirmation: %v", orderID, err)
		return
	}
	if order.Email == "" {
		return
	}

	go func() {
		html := utils.GenerateOrderConfirmationHTML(*order)
		if err := utils.SendConfirmationEmail(order.Email, "Confirmation de votre commande Velora", html); err != nil {
			log.Println("❌ Erreur envoi e-mail confirmation :", err)
		} else {
			log.Println("📧 E-mail de confirmation envoyé à", order.Email)
		}
	}()
}
