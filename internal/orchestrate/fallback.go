package orchestrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erpdesk/printflow/internal/fleet"
)

const fallbackTokenTTL = 15 * time.Minute

// FallbackOffer is the manual browser-print path presented to the user. It
// is offered, never auto-invoked: the state machine must leave the choice
// to a deliberate action.
type FallbackOffer struct {
	URL    string `json:"url"`
	Reason string `json:"reason,omitempty"`
}

// FallbackCoordinator builds browser-print URIs that bypass the agent fleet
// entirely. When a signing secret is configured, the URI carries a
// short-lived access token so the print page can authorize without a
// dashboard session.
type FallbackCoordinator struct {
	baseURL string
	secret  []byte
}

func NewFallbackCoordinator(baseURL string, secret []byte) *FallbackCoordinator {
	return &FallbackCoordinator{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
	}
}

// ShouldOffer reports whether the availability verdict warrants presenting
// the browser fallback.
func (f *FallbackCoordinator) ShouldOffer(result AvailabilityResult) bool {
	return result.AgentsOnline == 0 || result.ShouldFallback
}

type fallbackClaims struct {
	jwt.RegisteredClaims
	DocumentType string `json:"document_type"`
	DocumentID   string `json:"document_id"`
}

// BuildURL returns the browser-print URI for a document.
func (f *FallbackCoordinator) BuildURL(docType fleet.DocumentType, documentID string) (string, error) {
	uri := fmt.Sprintf("%s/browser-print/%s/%s/", f.baseURL, docType, documentID)
	if len(f.secret) == 0 {
		return uri, nil
	}

	claims := fallbackClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(fallbackTokenTTL)),
		},
		DocumentType: string(docType),
		DocumentID:   documentID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		return "", fmt.Errorf("sign fallback token: %w", err)
	}
	return uri + "?access_token=" + token, nil
}
