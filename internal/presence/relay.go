package presence

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

const clientBuffer = 32

// NewRelay returns the SockJS handler serving the presence relay under prefix.
func NewRelay(h *Hub, prefix string) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		serve(h, session)
	})
}

func serve(h *Hub, session sockjs.Session) {
	client := NewClient(uuid.NewString(), clientBuffer)
	h.Register(client)
	defer h.Disconnect(client)

	go func() {
		for msg := range client.Send {
			if err := session.Send(string(msg)); err != nil {
				return
			}
		}
	}()

	for {
		msg, err := session.Recv()
		if err != nil {
			return
		}
		h.Handle(client, []byte(msg))
	}
}
