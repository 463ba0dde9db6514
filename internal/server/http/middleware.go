package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/minitwit/internal/common"
	"github.com/dmitrijs2005/minitwit/internal/server/auth"
	"github.com/dmitrijs2005/minitwit/internal/server/services"
	"github.com/labstack/echo/v4"
)

const ctxClaimsKey = "claims"

func claimsFrom(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(ctxClaimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// bearerAuth validates "Authorization: Bearer <token>" and stores the
// claims in the echo context.
func (s *HTTPServer) bearerAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get(echo.HeaderAuthorization)

		scheme, token, found := strings.Cut(authz, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, common.BearerScheme) || token == "" {
			return writeError(c, http.StatusUnauthorized, services.ErrInvalidToken.Message)
		}

		claims, err := s.validator.Validate(token)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				return writeError(c, http.StatusUnauthorized, services.ErrTokenExpired.Message)
			}
			return writeError(c, http.StatusUnauthorized, services.ErrInvalidToken.Message)
		}

		c.Set(ctxClaimsKey, claims)
		return next(c)
	}
}
