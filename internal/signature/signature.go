// Package signature produces and verifies keyed-hash signatures over run
// summaries, so downstream automation can check that a reported fork/mirror
// result was emitted by a holder of the shared secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Summary is the signed record of one pipeline run.
type Summary struct {
	RunID   string `json:"run_id"`
	Source  string `json:"source"`
	Fork    string `json:"fork"`
	Release string `json:"release,omitempty"`
	Mirror  string `json:"mirror,omitempty"`
}

// NewSummary creates a Summary with a fresh run identifier.
func NewSummary(source, fork string) *Summary {
	return &Summary{
		RunID:  uuid.NewString(),
		Source: source,
		Fork:   fork,
	}
}

// Encode renders the summary as canonical JSON, the exact bytes that get
// signed.
func (s *Summary) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	return data, nil
}

// Sign computes the hex-encoded HMAC-SHA256 of message under secret.
func Sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignSummary encodes and signs a summary, returning the payload and its
// signature.
func SignSummary(secret string, s *Summary) (payload []byte, sig string, err error) {
	payload, err = s.Encode()
	if err != nil {
		return nil, "", err
	}
	return payload, Sign(secret, payload), nil
}

// Verify checks a hex-encoded signature against message using a
// constant-time comparison.
func Verify(secret string, message []byte, sig string) error {
	expected, err := hex.DecodeString(Sign(secret, message))
	if err != nil {
		return fmt.Errorf("failed to decode computed signature: %w", err)
	}
	actual, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("malformed signature: %w", err)
	}
	if !hmac.Equal(expected, actual) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
