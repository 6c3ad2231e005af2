package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongType    = errors.New("wrong token type")
)

// Claims identifies the advisor or supervisor making a request.
type Claims struct {
	jwt.RegisteredClaims
	AdvisorID int64  `json:"advisor_id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Type      string `json:"type"`
}

// Pair is an access token with the refresh token that renews it.
type Pair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an issuer. now defaults to time.Now.
func NewIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}
}

// Issue signs a new access and refresh token for the subject.
func (i *Issuer) Issue(advisorID int64, name, role string) (*Pair, error) {
	now := i.now().UTC()
	access, accessExp, err := i.sign(advisorID, name, role, TypeAccess, now, i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.sign(advisorID, name, role, TypeRefresh, now, i.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Pair{Access: access, Refresh: refresh, AccessExpiresAt: accessExp, RefreshExpiresAt: refreshExp}, nil
}

// Refresh verifies a refresh token and issues a new pair for the same subject.
func (i *Issuer) Refresh(token string) (*Pair, error) {
	claims, err := i.parse(token, TypeRefresh)
	if err != nil {
		return nil, err
	}
	return i.Issue(claims.AdvisorID, claims.Name, claims.Role)
}

// Parse verifies an access token.
func (i *Issuer) Parse(token string) (*Claims, error) {
	return i.parse(token, TypeAccess)
}

func (i *Issuer) sign(advisorID int64, name, role, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(advisorID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		AdvisorID: advisorID,
		Name:      name,
		Role:      role,
		Type:      typ,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}

func (i *Issuer) parse(token, typ string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrWrongType, typ, claims.Type)
	}
	return &claims, nil
}
