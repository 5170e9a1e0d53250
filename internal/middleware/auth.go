package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tourdesk/internal/service"
	"tourdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenCookie = "access_token"
	scopeKey    = "scope"
)

// Claims is the identity carried by an access token.
type Claims struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      string
	Timezone  string
}

// Auth validates access tokens issued by the user service.
type Auth struct {
	secret  []byte
	release bool
	now     func() time.Time
}

func NewAuth(secret string, release bool) *Auth {
	return &Auth{secret: []byte(secret), release: release, now: time.Now}
}

// Parse verifies an HS256 token and extracts its claims.
func (a *Auth) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	company, _ := claims["company_id"].(string)
	companyID, err := uuid.Parse(company)
	if err != nil {
		return nil, fmt.Errorf("invalid company: %w", err)
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return nil, errors.New("role not found in token")
	}
	tz, _ := claims["tz"].(string)
	return &Claims{UserID: userID, CompanyID: companyID, Role: role, Timezone: tz}, nil
}

// CompanyOf resolves a token to its company. It satisfies the websocket
// token parser.
func (a *Auth) CompanyOf(tokenString string) (uuid.UUID, error) {
	claims, err := a.Parse(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.CompanyID, nil
}

func tokenFrom(c *gin.Context) (string, string) {
	// Try cookie first, fallback to Authorization header
	if tokenString, err := c.Cookie(tokenCookie); err == nil && tokenString != "" {
		return tokenString, ""
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

// RequireRole validates the token and checks the caller's role against
// allowedRoles. With no roles listed any signed-in user passes.
func (a *Auth) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := tokenFrom(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
			return
		}

		claims, err := a.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		if len(allowedRoles) > 0 {
			roleAllowed := false
			for _, role := range allowedRoles {
				if claims.Role == role {
					roleAllowed = true
					break
				}
			}
			if !roleAllowed {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
				return
			}
		}

		loc, err := time.LoadLocation(claims.Timezone)
		if err != nil || claims.Timezone == "" {
			loc = time.UTC
		}
		userID := claims.UserID
		c.Set(scopeKey, service.Scope{
			CompanyID: claims.CompanyID,
			UserID:    &userID,
			Role:      claims.Role,
			Now:       a.now(),
			Location:  loc,
		})
		c.Set("userID", claims.UserID.String())
		c.Set("userRole", claims.Role)
		c.Next()
	}
}

// ScopeFrom returns the scope RequireRole stored on the request.
func ScopeFrom(c *gin.Context) (service.Scope, bool) {
	v, ok := c.Get(scopeKey)
	if !ok {
		return service.Scope{}, false
	}
	scope, ok := v.(service.Scope)
	return scope, ok
}

func (a *Auth) cookieMode() (http.SameSite, bool) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	if a.release {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// SetTokenCookie stores the access token as an HttpOnly cookie.
func (a *Auth) SetTokenCookie(c *gin.Context, token string) {
	sameSite, secure := a.cookieMode()
	c.SetSameSite(sameSite)
	c.SetCookie(tokenCookie, token, int(service.TokenTTL.Seconds()), "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie.
func (a *Auth) ClearTokenCookie(c *gin.Context) {
	sameSite, secure := a.cookieMode()
	c.SetSameSite(sameSite)
	c.SetCookie(tokenCookie, "", -1, "/", "", secure, true)
}
