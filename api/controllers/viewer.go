package controllers

import (
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/angelmondragon/licensedesk/api/middleware"
	"github.com/angelmondragon/licensedesk/internal/notify"
	"github.com/angelmondragon/licensedesk/pkg/logger"
)

const defaultViewerWriteTimeout = 10 * time.Second

type viewerHub interface {
	Subscribe() *notify.Subscription
	Unsubscribe(sub *notify.Subscription)
}

// ViewerSession upgrades to a websocket and pushes a text frame with the
// event kind for every signal the hub delivers. Clients re-fetch the list on
// each frame. Anything the client sends is read and ignored.
func ViewerSession(hub viewerHub, writeTimeout time.Duration, logg *logger.Logger) http.Handler {
	if writeTimeout <= 0 {
		writeTimeout = defaultViewerWriteTimeout
	}
	return websocket.Server{
		// Browsers send an Origin, CLI clients often do not. The bearer
		// token is the access check.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			serveViewer(conn, hub, writeTimeout, logg)
		},
	}
}

func serveViewer(conn *websocket.Conn, hub viewerHub, writeTimeout time.Duration, logg *logger.Logger) {
	defer conn.Close()

	ctx := conn.Request().Context()
	if logg != nil {
		ctx = logg.WithField(ctx, "viewer", middleware.UsernameFromContext(ctx))
		logg.Info(ctx, "viewer.connected")
		defer logg.Info(ctx, "viewer.disconnected")
	}

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := websocket.Message.Send(conn, e.Kind); err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "viewer.send_failed")
				}
				return
			}
		}
	}
}
