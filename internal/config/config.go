package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func Load() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé — on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}
}

// Market retourne la variante de marché du déploiement : "courier" (wallet
// unique, commande créée dès la livraison) ou "global" (choix de provider,
// création différée). Défaut : global.
func Market() string {
	if m := os.Getenv("MARKET"); m != "" {
		return m
	}
	return "global"
}
