package authx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"collab-workspace-system/shared/actorx"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownKID   = errors.New("unknown kid")
)

// JWTVerifier turns a bearer token into the acting user. Signing keys come
// from the issuer's JWKS endpoint and are refreshed in the background.
type JWTVerifier struct {
	jwksURL string
	cache   *jwk.Cache
	parser  *jwt.Parser
}

func NewJWTVerifier(ctx context.Context, issuer string, audience string, jwksURL string, ttlSeconds int, clockSkewSeconds int) (*JWTVerifier, error) {
	issuer = strings.TrimSpace(issuer)
	audience = strings.TrimSpace(audience)
	if issuer == "" || audience == "" {
		return nil, fmt.Errorf("%w: missing issuer or audience", ErrInvalidToken)
	}
	if jwksURL == "" {
		jwksURL = strings.TrimRight(issuer, "/") + "/.well-known/jwks.json"
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	if clockSkewSeconds < 0 {
		clockSkewSeconds = 0
	}

	cache := jwk.NewCache(ctx)
	err := cache.Register(jwksURL,
		jwk.WithMinRefreshInterval(time.Duration(ttlSeconds)*time.Second),
		jwk.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("register jwks: %w", err)
	}

	return &JWTVerifier{
		jwksURL: jwksURL,
		cache:   cache,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
			jwt.WithAudience(audience),
			jwt.WithIssuer(issuer),
			jwt.WithLeeway(time.Duration(clockSkewSeconds)*time.Second),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, rawToken string) (actorx.Actor, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return actorx.Actor{}, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return v.key(ctx, strings.TrimSpace(kid))
	})
	if err != nil {
		return actorx.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, _ := claims.GetSubject()
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return actorx.Actor{}, ErrInvalidToken
	}
	return actorx.Actor{ID: subject, Source: "jwt", Roles: parseRoles(claims)}, nil
}

func (v *JWTVerifier) key(ctx context.Context, kid string) (any, error) {
	if kid == "" {
		return nil, ErrUnknownKID
	}
	set, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}
	key, ok := set.LookupKeyID(kid)
	if !ok {
		// Key rotation: force one refresh before giving up.
		if set, err = v.cache.Refresh(ctx, v.jwksURL); err != nil {
			return nil, err
		}
		if key, ok = set.LookupKeyID(kid); !ok {
			return nil, ErrUnknownKID
		}
	}
	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func parseRoles(claims map[string]any) []string {
	var roles []string
	seen := map[string]bool{}
	add := func(role string) {
		role = strings.TrimSpace(role)
		if role == "" || seen[role] {
			return
		}
		seen[role] = true
		roles = append(roles, role)
	}

	for _, key := range []string{"roles", "role"} {
		switch t := claims[key].(type) {
		case nil:
		case []string:
			for _, role := range t {
				add(role)
			}
		case []any:
			for _, role := range t {
				add(fmt.Sprint(role))
			}
		case string:
			for _, role := range strings.Fields(t) {
				add(role)
			}
		default:
			add(fmt.Sprint(t))
		}
	}
	if s, ok := claims["scp"].(string); ok {
		for _, scope := range strings.Fields(s) {
			add(scope)
		}
	}
	return roles
}
