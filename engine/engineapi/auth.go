package engineapi

import (
	"strings"
	"time"

	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService emite y valida los tokens del API administrativo. El login es
// por secreto compartido (bcrypt) por tenant; el token resultante lleva el
// tenant para scoping de todas las operaciones.
type AuthService struct {
	secretKey       []byte
	adminSecretHash string
	tokenExpiration time.Duration
	issuer          string
}

func NewAuthService(jwtSecret, adminSecretHash string, tokenExpiration time.Duration) *AuthService {
	if tokenExpiration <= 0 {
		tokenExpiration = 12 * time.Hour
	}
	return &AuthService{
		secretKey:       []byte(jwtSecret),
		adminSecretHash: adminSecretHash,
		tokenExpiration: tokenExpiration,
		issuer:          "converso",
	}
}

// adminClaims claims del token administrativo
type adminClaims struct {
	TenantID string `json:"tenant_id"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Login valida el secreto administrativo y emite un token para el tenant
func (s *AuthService) Login(tenantID kernel.TenantID, subject, secret string) (string, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(s.adminSecretHash), []byte(secret)); err != nil {
		return "", ErrUnauthorized().WithDetail("reason", "invalid admin secret")
	}

	now := time.Now()
	claims := adminClaims{
		TenantID: tenantID.String(),
		IsAdmin:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiration)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", ErrUnauthorized().WithDetail("reason", "token generation failed")
	}
	return signed, nil
}

// ValidateToken valida el token y reconstruye el contexto administrativo
func (s *AuthService) ValidateToken(tokenString string) (*kernel.AdminContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized().WithDetail("reason", "unexpected signing method")
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized().WithDetail("reason", "invalid token")
	}

	claims, ok := token.Claims.(*adminClaims)
	if !ok {
		return nil, ErrUnauthorized().WithDetail("reason", "invalid claims")
	}

	adminCtx := &kernel.AdminContext{
		TenantID: kernel.TenantID(claims.TenantID),
		Subject:  claims.Subject,
		IsAdmin:  claims.IsAdmin,
	}
	if !adminCtx.IsValid() {
		return nil, ErrUnauthorized().WithDetail("reason", "incomplete claims")
	}
	return adminCtx, nil
}

// Authenticate middleware que valida el token Bearer y deja el contexto
// administrativo en fiber.Locals
func (s *AuthService) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		adminCtx, err := s.ValidateToken(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals(string(kernel.AdminContextKey), adminCtx)
		return c.Next()
	}
}

// adminFromCtx recupera el contexto administrativo dejado por Authenticate
func adminFromCtx(c *fiber.Ctx) *kernel.AdminContext {
	adminCtx, _ := c.Locals(string(kernel.AdminContextKey)).(*kernel.AdminContext)
	return adminCtx
}
