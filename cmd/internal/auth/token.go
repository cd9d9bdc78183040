package auth

import (
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

const (
	purposeSession = "session"
	purposeFlow    = "oauth_flow"
)

// Flow is the state carried across the OAuth redirect.
type Flow struct {
	State    string
	Verifier string
	From     string
}

// TokenManager issues and verifies PASETO v4.public tokens for sessions and
// OAuth flows. Both share one key; a purpose claim keeps them apart.
type TokenManager struct {
	issuer     string
	sessionTTL time.Duration
	flowTTL    time.Duration
	clockSkew  time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewTokenManager builds a TokenManager from cfg. An empty key hex yields an
// ephemeral key.
func NewTokenManager(cfg Config) (*TokenManager, error) {
	cfg = cfg.withDefaults()

	var secret paseto.V4AsymmetricSecretKey
	if hex := strings.TrimSpace(cfg.PasetoV4SecretKeyHex); hex != "" {
		k, err := paseto.NewV4AsymmetricSecretKeyFromHex(hex)
		if err != nil {
			return nil, ErrConfig
		}
		secret = k
	} else {
		secret = paseto.NewV4AsymmetricSecretKey()
	}

	return &TokenManager{
		issuer:     cfg.Issuer,
		sessionTTL: cfg.SessionTTL,
		flowTTL:    cfg.FlowTTL,
		clockSkew:  cfg.ClockSkew,
		secret:     secret,
		public:     secret.Public(),
	}, nil
}

// PublicKeyHex exposes the verification key.
func (m *TokenManager) PublicKeyHex() string {
	return m.public.ExportHex()
}

// IssueSession signs s. IssuedAt and ExpiresAt are set from now.
func (m *TokenManager) IssueSession(s Session, now time.Time) (string, Session, error) {
	email := strings.ToLower(strings.TrimSpace(s.Email))
	if email == "" {
		return "", Session{}, ErrInvalidToken
	}
	s.Email = email
	s.IssuedAt = now.UTC()
	s.ExpiresAt = now.Add(m.sessionTTL).UTC()

	tok := m.newToken(purposeSession, now, s.ExpiresAt)
	tok.SetSubject(s.Email)
	if s.Name != nil {
		tok.SetString("name", *s.Name)
	}
	if s.AvatarURL != nil {
		tok.SetString("avatar", *s.AvatarURL)
	}
	return tok.V4Sign(m.secret, nil), s, nil
}

// VerifySession parses a session token.
func (m *TokenManager) VerifySession(token string, now time.Time) (Session, error) {
	parsed, err := m.parse(token, purposeSession, now)
	if err != nil {
		return Session{}, err
	}

	email, err := parsed.GetSubject()
	if err != nil || email == "" {
		return Session{}, ErrInvalidToken
	}
	iat, _ := parsed.GetIssuedAt()
	exp, _ := parsed.GetExpiration()

	out := Session{Email: email, IssuedAt: iat.UTC(), ExpiresAt: exp.UTC()}
	if v, err := parsed.GetString("name"); err == nil && v != "" {
		out.Name = &v
	}
	if v, err := parsed.GetString("avatar"); err == nil && v != "" {
		out.AvatarURL = &v
	}
	return out, nil
}

// IssueFlow signs the OAuth flow state.
func (m *TokenManager) IssueFlow(f Flow, now time.Time) (string, time.Time, error) {
	if f.State == "" || f.Verifier == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	exp := now.Add(m.flowTTL).UTC()
	tok := m.newToken(purposeFlow, now, exp)
	tok.SetString("state", f.State)
	tok.SetString("verifier", f.Verifier)
	tok.SetString("from", f.From)
	return tok.V4Sign(m.secret, nil), exp, nil
}

// VerifyFlow parses an OAuth flow token.
func (m *TokenManager) VerifyFlow(token string, now time.Time) (Flow, error) {
	parsed, err := m.parse(token, purposeFlow, now)
	if err != nil {
		return Flow{}, err
	}
	state, err := parsed.GetString("state")
	if err != nil || state == "" {
		return Flow{}, ErrInvalidToken
	}
	verifier, err := parsed.GetString("verifier")
	if err != nil || verifier == "" {
		return Flow{}, ErrInvalidToken
	}
	from, _ := parsed.GetString("from")
	return Flow{State: state, Verifier: verifier, From: from}, nil
}

func (m *TokenManager) newToken(purpose string, now, exp time.Time) paseto.Token {
	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	tok.SetString("pur", purpose)
	return tok
}

func (m *TokenManager) parse(token, purpose string, now time.Time) (*paseto.Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	// Validate slightly in the future so a lagging clock does not fail "nbf".
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.issuer))
	p.AddRule(paseto.ValidAt(now.Add(m.clockSkew)))

	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if pur, err := parsed.GetString("pur"); err != nil || pur != purpose {
		return nil, ErrInvalidToken
	}
	return parsed, nil
}
