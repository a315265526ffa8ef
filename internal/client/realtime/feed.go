package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/dmitrijs2005/cbtjournal/internal/logging"
	"github.com/dmitrijs2005/cbtjournal/internal/rpc"
)

const defaultRetryDelay = 3 * time.Second

// Feed reads the backend event stream and publishes it into a Hub. It
// reconnects after a delay until its context ends.
type Feed struct {
	url        string
	hub        *Hub
	logger     logging.Logger
	retryDelay time.Duration
}

func NewFeed(url string, hub *Hub, l logging.Logger) *Feed {
	return &Feed{url: url, hub: hub, logger: l.With("module", "realtime_feed"), retryDelay: defaultRetryDelay}
}

// Run keeps a connection open for accessToken until ctx is cancelled.
func (f *Feed) Run(ctx context.Context, accessToken string) error {
	for {
		err := f.session(ctx, accessToken)
		if ctx.Err() != nil {
			return nil
		}
		f.logger.Warn(ctx, "event stream dropped", "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.retryDelay):
		}
	}
}

func (f *Feed) session(ctx context.Context, accessToken string) error {
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+accessToken)

	conn, _, err := websocket.Dial(ctx, f.url, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.CloseNow()

	f.logger.Info(ctx, "event stream connected")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			var ce websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var ev rpc.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			f.logger.Warn(ctx, "malformed event", "error", err)
			continue
		}
		if ev.Type != rpc.EventTypeAIAnalysis || ev.EntryID == "" {
			continue
		}
		n := f.hub.Publish(ev)
		f.logger.Debug(ctx, "event delivered", "entry", ev.EntryID, "subscribers", n)
	}
}
