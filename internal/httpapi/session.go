package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hilthontt/syncbroker/internal/domain"
	httpjson "github.com/hilthontt/syncbroker/internal/infrastructure/json"
)

// sessionCreateHandler implements POST /api/session/create: the caller
// becomes host of a freshly minted room and receives a host room-claim
// token to present at the websocket handshake.
func (app *Application) sessionCreateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r)
	if !ok {
		httpjson.WriteError(w, http.StatusForbidden, domain.ErrAuthInvalid, "missing user")
		return
	}

	prepared, err := app.broker.Manager.PrepareRoom(user)
	if err != nil {
		httpjson.WriteInternalError(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{
		"room":  prepared.ID,
		"token": prepared.JWT,
	})
}

// sessionJoinHandler implements POST /api/session/join/:room: it asks the
// room's host to admit the caller and, if accepted, returns a guest
// room-claim token.
func (app *Application) sessionJoinHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room")

	user, ok := userFromContext(r)
	if !ok {
		httpjson.WriteError(w, http.StatusForbidden, domain.ErrAuthInvalid, "missing user")
		return
	}

	room := app.broker.Manager.GetRoomByID(roomID)
	if room == nil {
		httpjson.WriteError(w, http.StatusBadRequest, domain.ErrRoomNotFound, "room not found")
		return
	}

	token, err := app.broker.Manager.RequestJoin(room, user)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJoinTimeout):
			httpjson.WriteError(w, http.StatusBadRequest, err, "join request timed out")
		case errors.Is(err, domain.ErrJoinRejected):
			httpjson.WriteError(w, http.StatusBadRequest, err, "rejected")
		default:
			httpjson.WriteInternalError(w, err)
		}
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{
		"token": token,
	})
}
