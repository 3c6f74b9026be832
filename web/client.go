package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/time/rate"

	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/services/tracking"
	"go.viam.com/gridnav/spatialmath"
)

// RedialInterval is the minimum time between pose feed connection attempts.
const RedialInterval = time.Second

// FetchPlan gets the complete plan from the planner at baseURL once.
func FetchPlan(ctx context.Context, client *http.Client, baseURL string) ([]spatialmath.Configuration, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+APIPrefix+"/plan", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching plan")
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching plan: unexpected status %q", resp.Status)
	}

	var msg PlanMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, errors.Wrap(err, "decoding plan")
	}
	return msg.Configurations()
}

// DialPoseFeed streams poses from the websocket at url. The connection is re-established when it
// drops, at most once per RedialInterval. The returned channel is closed once ctx is done.
func DialPoseFeed(ctx context.Context, url string, logger logging.Logger) <-chan spatialmath.Configuration {
	poses := make(chan spatialmath.Configuration)
	limiter := rate.NewLimiter(rate.Every(RedialInterval), 1)
	utils.PanicCapturingGo(func() {
		defer close(poses)
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if err := readPoses(ctx, url, poses); err != nil && ctx.Err() == nil {
				logger.Warnw("pose feed disconnected", "url", url, "error", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	})
	return poses
}

func readPoses(ctx context.Context, url string, poses chan<- spatialmath.Configuration) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		//nolint:errcheck
		conn.Close()
	})
	defer func() {
		if stop() {
			//nolint:errcheck
			conn.Close()
		}
	}()

	for {
		var msg PoseMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		pose, err := msg.Configuration()
		if err != nil {
			return errors.Wrap(err, "invalid pose")
		}
		select {
		case poses <- pose:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CommandWriter sends drive commands as JSON frames over a websocket.
type CommandWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialCommandWriter connects to the drive command websocket at url.
func DialCommandWriter(ctx context.Context, url string) (*CommandWriter, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dialing command sink")
	}
	return &CommandWriter{conn: conn}, nil
}

// SendCommand writes cmd, giving up when ctx is done.
func (cw *CommandWriter) SendCommand(ctx context.Context, cmd tracking.DriveCommand) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := cw.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return cw.conn.WriteJSON(cmd)
}

// Close sends a close frame and closes the connection.
func (cw *CommandWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return multierr.Combine(
		cw.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)),
		cw.conn.Close(),
	)
}
