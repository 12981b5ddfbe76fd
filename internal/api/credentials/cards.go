// cards.go implements the card endpoints. Listing returns masked details
// only; the full number and CVV come back from the single-card read, which is
// audited like any secret access.
package credentials

import (
	"net/http"

	"github.com/botvault/botvault/internal/api/httperr"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

type cardCreateRequest struct {
	Label          string `json:"label" binding:"required"`
	CardholderName string `json:"cardholder_name" binding:"required"`
	CardNumber     string `json:"card_number" binding:"required"`
	ExpiryMonth    string `json:"expiry_month" binding:"required"`
	ExpiryYear     string `json:"expiry_year" binding:"required"`
	CVV            string `json:"cvv" binding:"required"`
}

func cardMetaBody(m vault.CardMeta) gin.H {
	return gin.H{
		"id":           m.ID,
		"label":        m.Label,
		"brand":        m.Brand,
		"last4":        m.Last4,
		"expiry_month": m.ExpiryMonth,
		"expiry_year":  m.ExpiryYear,
		"created_at":   m.CreatedAt,
	}
}

// ListCardsHandler handles GET /api/cards.
func ListCardsHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cards, err := svc.ListCards(c.Request.Context(), ownerID(c))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		out := make([]gin.H, 0, len(cards))
		for _, card := range cards {
			out = append(out, cardMetaBody(card))
		}
		c.JSON(http.StatusOK, gin.H{"cards": out})
	}
}

// CreateCardHandler handles POST /api/cards.
func CreateCardHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cardCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label, cardholder_name, card_number, expiry_month, expiry_year, and cvv are required"})
			return
		}
		meta, err := svc.CreateCard(c.Request.Context(), ownerID(c), req.Label, vault.CardInput{
			CardholderName: req.CardholderName,
			CardNumber:     req.CardNumber,
			ExpiryMonth:    req.ExpiryMonth,
			ExpiryYear:     req.ExpiryYear,
			CVV:            req.CVV,
		})
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusCreated, cardMetaBody(*meta))
	}
}

// GetCardHandler handles GET /api/cards/:id, returning full card details.
func GetCardHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		card, err := svc.GetCard(c.Request.Context(), ownerID(c), c.Param("id"))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		body := cardMetaBody(card.CardMeta)
		body["cardholder_name"] = card.CardholderName
		body["card_number"] = card.CardNumber
		body["cvv"] = card.CVV
		c.JSON(http.StatusOK, body)
	}
}

// DeleteCardHandler handles DELETE /api/cards/:id.
func DeleteCardHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteCard(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "card deleted"})
	}
}
