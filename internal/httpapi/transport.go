package httpapi

import (
	"net/http"

	"github.com/hilthontt/syncbroker/internal/broker"
	"github.com/hilthontt/syncbroker/internal/channel"
	"github.com/hilthontt/syncbroker/internal/protocol"
)

// transportHandler implements the websocket transport-accept endpoint
// (spec.md §4.7): upgrade, verify the room-claim token carried in the
// x-jwt header, then hand the connection to the RoomManager as either a
// host or a guest peer. Any verification or join failure sends a single
// protocol.Error envelope and disconnects.
func (app *Application) transportHandler(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("x-jwt")

	ch, err := channel.Upgrade(w, r)
	if err != nil {
		app.logger.Warnw("websocket upgrade failed", "err", err)
		return
	}

	claim, err := app.broker.Credentials.Signer.GetRoomClaim(token)
	if err != nil {
		app.rejectTransport(ch, err)
		return
	}

	peer := broker.NewPeer(app.broker, claim.User, ch)
	if _, err := app.broker.Manager.Join(peer, claim.Room, claim.Host); err != nil {
		app.rejectTransport(ch, err)
		return
	}

	peer.Start()
	app.logger.Infow("peer connected", "peerId", peer.ID, "room", claim.Room, "host", claim.Host)
}

func (app *Application) rejectTransport(ch channel.Channel, err error) {
	data, encErr := protocol.Encode(protocol.Error{Message: err.Error()})
	if encErr == nil {
		_ = ch.Send(data)
	}
	_ = ch.Close()
}
