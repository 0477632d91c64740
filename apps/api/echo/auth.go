package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/session"
)

const (
	contextTokenKey   = "token"
	contextSessionKey = "session"
	contextProfileKey = "profile"
)

// Claims represents the authorization claims transmitted via a JWT.
// The token ID (jti) is the session ID.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64        `json:"oriat,omitempty"`
	Email        string       `json:"email,omitempty"`
	Role         profile.Role `json:"role,omitempty"`
}

func (s *Server) newClaims(p profile.Profile, sess session.Session, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID,
			Issuer:    s.deps.Conf.AppName,
			Subject:   p.ID,
			ExpiresAt: now.Add(s.deps.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        p.Email,
		Role:         p.Role,
	}
}

// generateToken generates a signed JWT token string representing the Claims.
func (s *Server) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(s.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(s.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// IssueToken starts a session of p and returns its token.
func (s *Server) IssueToken(ctx context.Context, p profile.Profile) (string, error) {
	sess := session.New(p.ID, s.deps.Conf.Server.SessionTTL)
	if err := s.deps.Sessions.Create(ctx, sess); err != nil {
		return "", errors.Wrap(err, "creating session")
	}
	return s.generateToken(s.newClaims(p, sess))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextProfile returns the principal loaded by principalMiddleware.
func getContextProfile(ctx echo.Context) (profile.Profile, error) {
	if p, ok := ctx.Get(contextProfileKey).(profile.Profile); ok {
		return p, nil
	}
	return profile.Profile{}, errUnauthorized
}

// principalMiddleware resolves the session of the JWT and loads a fresh copy of its profile.
// A live session whose profile is gone leaves the context without principal; the gate denies it.
func (s *Server) principalMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}

		reqCtx := ctx.Request().Context()
		sess, err := s.deps.Sessions.Get(reqCtx, claims.Id)
		if err != nil {
			if errors.Cause(err) == session.ErrNotFound {
				return errSessionExpired
			}
			return errors.Wrap(err, "getting session")
		}
		if sess.ProfileID != claims.Subject {
			return errSessionExpired
		}
		ctx.Set(contextSessionKey, sess)

		p, err := s.deps.ProfileSvc.GetByID(reqCtx, sess.ProfileID)
		if err != nil {
			if !core.IsNotFound(err) {
				return errors.Wrap(err, "loading profile")
			}
			return next(ctx)
		}
		ctx.Set(contextProfileKey, p)
		return next(ctx)
	}
}

func (s *Server) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	p, err := getContextProfile(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context profile")
	}
	sess, ok := ctx.Get(contextSessionKey).(session.Session)
	if !ok {
		return "", errSessionExpired
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(s.deps.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := s.generateToken(s.newClaims(p, sess, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
