package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/bioapp/auth-service/internal/ports"
	"github.com/google/uuid"
)

// csrfPayload is the signed envelope bound to a session and an expiry.
type csrfPayload struct {
	SessionID string `json:"session_id"`
	ExpiresAt int64  `json:"expires_at"`
	Nonce     string `json:"nonce"`
}

// CSRFGuard issues and validates HMAC-signed per-form tokens.
// Tokens are session-scoped: a token leaked from one session cannot
// validate a submission under a different session id.
type CSRFGuard struct {
	key       []byte
	ttl       time.Duration
	singleUse bool
	nowFn     func() time.Time

	mu   sync.Mutex
	used map[string]time.Time
}

// CSRFOptions tunes guard behavior; zero values fall back to defaults.
type CSRFOptions struct {
	TTL       time.Duration
	SingleUse bool
}

// NewCSRFGuard builds a guard from the given secret.
// An empty secret gets a process-local random key, mirroring signing-key
// provisioning: tokens do not survive restart.
func NewCSRFGuard(secret string, opts CSRFOptions) (*CSRFGuard, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	} else if len(key) < 16 {
		return nil, errors.New("csrf secret must be at least 16 bytes")
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CSRFGuard{
		key:       key,
		ttl:       ttl,
		singleUse: opts.SingleUse,
		nowFn:     func() time.Time { return time.Now().UTC() },
		used:      make(map[string]time.Time),
	}, nil
}

func (g *CSRFGuard) Issue(sessionID uuid.UUID) (string, error) {
	if sessionID == uuid.Nil {
		return "", domain.ErrCSRFInvalid
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	payload, err := json.Marshal(csrfPayload{
		SessionID: sessionID.String(),
		ExpiresAt: g.nowFn().Add(g.ttl).Unix(),
		Nonce:     hex.EncodeToString(nonce),
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload) + "." + g.signature(payload), nil
}

func (g *CSRFGuard) Validate(sessionID uuid.UUID, token string) error {
	if sessionID == uuid.Nil || strings.TrimSpace(token) == "" {
		return domain.ErrCSRFInvalid
	}
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return domain.ErrCSRFInvalid
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return domain.ErrCSRFInvalid
	}
	if subtle.ConstantTimeCompare([]byte(g.signature(payload)), []byte(sig)) != 1 {
		return domain.ErrCSRFInvalid
	}

	var decoded csrfPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return domain.ErrCSRFInvalid
	}
	if decoded.SessionID != sessionID.String() {
		return domain.ErrCSRFInvalid
	}
	now := g.nowFn()
	if now.Unix() > decoded.ExpiresAt {
		return domain.ErrCSRFInvalid
	}

	if g.singleUse {
		if err := g.consumeNonce(decoded.Nonce, now); err != nil {
			return err
		}
	}
	return nil
}

// consumeNonce rejects a nonce seen before and remembers it until its token
// would have expired anyway, bounding the set without a sweeper goroutine.
func (g *CSRFGuard) consumeNonce(nonce string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for n, seenAt := range g.used {
		if now.Sub(seenAt) > g.ttl {
			delete(g.used, n)
		}
	}
	if _, seen := g.used[nonce]; seen {
		return domain.ErrCSRFInvalid
	}
	g.used[nonce] = now
	return nil
}

func (g *CSRFGuard) signature(payload []byte) string {
	mac := hmac.New(sha256.New, g.key)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

var _ ports.CSRFGuard = (*CSRFGuard)(nil)
