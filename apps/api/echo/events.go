package echoapi

import (
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"
)

const eventsBuffer = 32

// events streams the wizard events of a session over a websocket until
// the client goes away or the session is closed.
func (api *formsApi) events(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}

	// subscribe before the handshake: nothing published after the upgrade is missed
	sub := sess.Wizard.Events().Subscribe(eventsBuffer)
	defer sub.Close()

	conn, err := websocket.Accept(ctx.Response(), ctx.Request(), &websocket.AcceptOptions{
		OriginPatterns: api.originPatterns,
	})
	if err != nil {
		ctx.Logger().Warnf("websocket handshake: %v", err)
		return nil // Accept has already answered
	}
	defer conn.Close(websocket.StatusInternalError, "")

	wsCtx := conn.CloseRead(ctx.Request().Context())
	for {
		select {
		case <-wsCtx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "session closed")
				return nil
			}
			if err = wsjson.Write(wsCtx, conn, ev); err != nil {
				return nil
			}
		}
	}
}

// originPatterns converts CORS origins into the host patterns used by the websocket handshake.
func originPatterns(allowOrigins []string) []string {
	patterns := make([]string, 0, len(allowOrigins))
	for _, origin := range allowOrigins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}
