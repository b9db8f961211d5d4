package checkout

import "errors"

// Taxonomie d'erreurs du checkout. Les handlers HTTP les traduisent en statuts :
// validation → 400, not found → 404, auth → 401, conflit → récupéré (jamais
// remonté à l'utilisateur), provider → 502 avec possibilité de réessayer.
var (
	ErrValidation   = errors.New("données de checkout invalides")
	ErrNotFound     = errors.New("commande ou panier introuvable")
	ErrProvider     = errors.New("erreur du provider de paiement")
	ErrAuthRequired = errors.New("authentification requise")
	ErrConflict     = errors.New("une commande existe déjà pour ce panier")
	ErrEmptyCart    = errors.New("panier vide")
	ErrNoOrder      = errors.New("aucune commande pour cette session")
)
