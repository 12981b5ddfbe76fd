// cards.go implements payment card storage. Cards are ordinary credentials of
// type "card" whose payload is a JSON document; the service layer adds Luhn
// validation, brand detection, and masked listing on top.
package vault

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/validation"
)

// CardInput is the plaintext card submitted at creation.
type CardInput struct {
	CardholderName string
	CardNumber     string
	ExpiryMonth    string
	ExpiryYear     string
	CVV            string
}

// CardMeta is the masked view of a stored card: brand and last four digits,
// never the full number or CVV.
type CardMeta struct {
	ID          string
	Label       string
	Brand       string
	Last4       string
	ExpiryMonth string
	ExpiryYear  string
	CreatedAt   time.Time
}

// CardSecret is a card with its full decrypted details.
type CardSecret struct {
	CardMeta
	CardholderName string
	CardNumber     string
	CVV            string
}

// CreateCard validates, encrypts, and stores a payment card.
func (s *Service) CreateCard(ctx context.Context, userID, label string, input CardInput) (*CardMeta, error) {
	if err := validation.Label(label); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := validation.CardNumber(input.CardNumber); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if input.CardholderName == "" {
		return nil, validationf("cardholder name is required")
	}
	if input.ExpiryMonth == "" || input.ExpiryYear == "" {
		return nil, validationf("expiry month and year are required")
	}

	data := models.CardData{
		CardholderName: input.CardholderName,
		CardNumber:     input.CardNumber,
		ExpiryMonth:    input.ExpiryMonth,
		ExpiryYear:     input.ExpiryYear,
		CVV:            input.CVV,
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, storeErr("encode card", err)
	}

	env, err := s.encryptPayload(userID, string(payload))
	if err != nil {
		return nil, err
	}

	cred := &models.Credential{
		UserID:        userID,
		Type:          models.TypeCard,
		Label:         strings.TrimSpace(label),
		EncryptedData: env.Ciphertext,
		EncryptedDEK:  env.WrappedKey,
		IV:            env.IV,
		AuthTag:       env.Tag,
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		return nil, storeErr("create card", err)
	}

	s.record(ctx, audit.Owner(userID, models.ActionCardCreate, "card", cred.ID,
		map[string]interface{}{"label": cred.Label, "brand": validation.CardBrand(input.CardNumber)}))

	return &CardMeta{
		ID:          cred.ID,
		Label:       cred.Label,
		Brand:       validation.CardBrand(input.CardNumber),
		Last4:       data.Last4(),
		ExpiryMonth: data.ExpiryMonth,
		ExpiryYear:  data.ExpiryYear,
		CreatedAt:   cred.CreatedAt,
	}, nil
}

// ListCards returns the owner's cards in masked form. Each payload is
// decrypted to recover brand and last four digits; a card whose payload fails
// integrity checking is skipped and logged rather than failing the whole
// list.
func (s *Service) ListCards(ctx context.Context, userID string) ([]CardMeta, error) {
	creds, err := s.credentials.ListByUserAndType(ctx, userID, models.TypeCard)
	if err != nil {
		return nil, storeErr("list cards", err)
	}

	cards := make([]CardMeta, 0, len(creds))
	for _, cred := range creds {
		plaintext, err := s.decryptPayload(cred)
		if err != nil {
			s.logger.Error("skipping undecryptable card", "credential_id", cred.ID, "error", err)
			continue
		}
		data, err := models.DecodeCardData(plaintext)
		if err != nil {
			s.logger.Error("skipping malformed card payload", "credential_id", cred.ID, "error", err)
			continue
		}
		cards = append(cards, CardMeta{
			ID:          cred.ID,
			Label:       cred.Label,
			Brand:       validation.CardBrand(data.CardNumber),
			Last4:       data.Last4(),
			ExpiryMonth: data.ExpiryMonth,
			ExpiryYear:  data.ExpiryYear,
			CreatedAt:   cred.CreatedAt,
		})
	}
	return cards, nil
}

// GetCard decrypts one card in full and audits the read.
func (s *Service) GetCard(ctx context.Context, userID, id string) (*CardSecret, error) {
	cred, err := s.credentials.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, storeErr("lookup card", err)
	}
	if cred == nil || cred.Type != models.TypeCard {
		return nil, ErrNotFound
	}

	plaintext, err := s.decryptPayload(cred)
	if err != nil {
		return nil, err
	}
	data, err := models.DecodeCardData(plaintext)
	if err != nil {
		return nil, ErrIntegrity
	}

	s.record(ctx, audit.Owner(userID, models.ActionCredentialRead, "card", cred.ID,
		map[string]interface{}{"label": cred.Label}))

	return &CardSecret{
		CardMeta: CardMeta{
			ID:          cred.ID,
			Label:       cred.Label,
			Brand:       validation.CardBrand(data.CardNumber),
			Last4:       data.Last4(),
			ExpiryMonth: data.ExpiryMonth,
			ExpiryYear:  data.ExpiryYear,
			CreatedAt:   cred.CreatedAt,
		},
		CardholderName: data.CardholderName,
		CardNumber:     data.CardNumber,
		CVV:            data.CVV,
	}, nil
}

// DeleteCard removes a stored card.
func (s *Service) DeleteCard(ctx context.Context, userID, id string) error {
	cred, err := s.credentials.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return storeErr("lookup card", err)
	}
	if cred == nil || cred.Type != models.TypeCard {
		return ErrNotFound
	}

	deleted, err := s.credentials.Delete(ctx, id, userID)
	if err != nil {
		return storeErr("delete card", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.record(ctx, audit.Owner(userID, models.ActionCardDelete, "card", id,
		map[string]interface{}{"label": cred.Label}))
	return nil
}
