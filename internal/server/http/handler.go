package http

import (
	"net/http"

	"github.com/dmitrijs2005/minitwit/internal/server/services"
	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type errorResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func (s *HTTPServer) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "malformed request body")
	}

	pair, err := s.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return s.writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *HTTPServer) RefreshToken(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "malformed request body")
	}

	pair, err := s.auth.RefreshToken(c.Request().Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		return s.writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *HTTPServer) Me(c echo.Context) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, services.ErrInvalidToken.Message)
	}

	user, err := s.auth.CurrentUser(c.Request().Context(), claims.UserID)
	if err != nil {
		return s.writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, userResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

func writeError(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Status: status, Error: msg})
}

func (s *HTTPServer) writeServiceError(c echo.Context, err error) error {
	if ae, ok := services.AsAuthError(err); ok {
		return writeError(c, ae.Status, ae.Message)
	}
	s.logger.Error(c.Request().Context(), "request failed", "error", err)
	return writeError(c, http.StatusInternalServerError, "internal error")
}
