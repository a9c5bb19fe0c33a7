package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hilthontt/syncbroker/internal/credentials"
	"github.com/hilthontt/syncbroker/internal/domain"
	httpjson "github.com/hilthontt/syncbroker/internal/infrastructure/json"
)

// loginURLHandler implements POST /api/login/url: it mints a confirm token,
// registers it as a deferred login, and hands the caller back an opaque
// login URL plus the token to poll/confirm with.
func (app *Application) loginURLHandler(w http.ResponseWriter, r *http.Request) {
	confirmToken := credentials.SecureID()
	app.broker.Credentials.Deferred.Register(confirmToken)

	httpjson.Write(w, http.StatusOK, map[string]any{
		"url":   fmt.Sprintf("/login/%s", confirmToken),
		"token": confirmToken,
	})
}

// loginConfirmHandler implements POST /api/login/confirm/:token: it blocks
// until the matching login is confirmed out-of-band or the 300-second
// window lapses.
func (app *Application) loginConfirmHandler(w http.ResponseWriter, r *http.Request) {
	confirmToken := chi.URLParam(r, "token")

	jwt, err := app.broker.Credentials.Deferred.Await(confirmToken)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err, "login not confirmed")
		return
	}

	user, err := app.broker.Credentials.Signer.GetUser(jwt)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err, "invalid confirmation token")
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{
		"user":  user,
		"token": jwt,
	})
}

type simpleLoginRequest struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// loginSimpleHandler implements POST /api/login/simple: a development-mode
// shortcut that confirms a pending login immediately instead of waiting on
// an out-of-band confirmation step.
func (app *Application) loginSimpleHandler(w http.ResponseWriter, r *http.Request) {
	var req simpleLoginRequest
	if err := httpjson.Read(r, &req); err != nil {
		httpjson.WriteBadRequestError(w, "malformed request body")
		return
	}

	user := domain.User{ID: uuid.NewString(), Name: req.Name, Email: req.Email}

	if _, err := app.broker.Credentials.Deferred.ConfirmUser(req.Token, user, app.broker.Credentials.Signer); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err, "login not pending")
		return
	}

	httpjson.Write(w, http.StatusOK, "Ok")
}

// loginValidateHandler implements POST /api/login/validate. Unlike the
// other non-login endpoints it never 403s on an invalid token: its whole
// purpose is to report validity, so it answers "false" instead.
func (app *Application) loginValidateHandler(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("x-jwt")
	if token == "" {
		httpjson.Write(w, http.StatusOK, "false")
		return
	}

	if _, err := app.broker.Credentials.Signer.GetUser(token); err != nil {
		httpjson.Write(w, http.StatusOK, "false")
		return
	}

	httpjson.Write(w, http.StatusOK, "true")
}
