package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"ukiyo/internal/logging"
	"ukiyo/internal/store"
)

// Username and password bounds. bcrypt ignores input past 72 bytes.
const (
	minUsernameChars = 4
	maxUsernameChars = 20
	minPasswordChars = 8
	maxPasswordBytes = 72
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (c credentials) validate() error {
	name := strings.TrimSpace(c.Username)
	if n := utf8.RuneCountInString(name); n < minUsernameChars || n > maxUsernameChars {
		return fmt.Errorf("%w: username must be %d to %d characters", errBadInput, minUsernameChars, maxUsernameChars)
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("%w: username may only contain letters and digits", errBadInput)
		}
	}
	if utf8.RuneCountInString(c.Password) < minPasswordChars {
		return fmt.Errorf("%w: password must be at least %d characters", errBadInput, minPasswordChars)
	}
	if len(c.Password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", errBadInput, maxPasswordBytes)
	}
	return nil
}

// readCredentials accepts a JSON body or an OAuth2-style password form.
func readCredentials(r *http.Request) (credentials, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
		if err := r.ParseForm(); err != nil {
			return credentials{}, fmt.Errorf("%w: %v", errBadInput, err)
		}
		return credentials{Username: r.FormValue("username"), Password: r.FormValue("password")}, nil
	}
	var c credentials
	err := decodeJSON(r, &c)
	return c, err
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(r, &c); err != nil {
		fail(w, r, err)
		return
	}
	c.Username = strings.TrimSpace(c.Username)
	if err := c.validate(); err != nil {
		fail(w, r, err)
		return
	}
	hash, err := HashPassword(c.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	u, err := s.deps.Store.RegisterUser(r.Context(), c.Username, hash)
	if err != nil {
		fail(w, r, err)
		return
	}
	logging.Server("registered user %s (%s)", u.Username, u.ID)
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	u, hash, err := s.deps.Store.Credentials(r.Context(), strings.TrimSpace(c.Username))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		fail(w, r, err)
		return
	}
	if err != nil || !CheckPassword(hash, c.Password) {
		logging.WithRequestID(logging.CategoryServer, requestID(r.Context())).Info("login failed for %q", c.Username)
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	tok, err := IssueToken(s.cfg.JWTSecret, u.ID, s.cfg.TokenTTL)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: tok, TokenType: "bearer"})
}
