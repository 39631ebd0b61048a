package remootio

import (
	"context"
	"strings"
	"time"

	"github.com/backkem/remootio/pkg/message"
)

// DefaultScanInterval is how often a Cover polls the device state.
const DefaultScanInterval = 30 * time.Second

// DeviceClassGarage is the device class of a garage door cover.
const DeviceClassGarage = "garage"

// Cover presents a Client as a garage door.
type Cover struct {
	client *Client

	// UseDirectionalCommands sends OPEN and CLOSE instead of TRIGGER.
	// TRIGGER toggles the door and works on every firmware version.
	UseDirectionalCommands bool
}

// NewCover creates a cover backed by client.
func NewCover(client *Client) *Cover {
	return &Cover{client: client}
}

// Name returns the configured name.
func (cv *Cover) Name() string {
	return cv.client.Name()
}

// UniqueID returns a stable identifier derived from the device host.
func (cv *Cover) UniqueID() string {
	host := cv.client.Host()
	if host == "" {
		host = cv.client.Name()
	}
	host = strings.NewReplacer(".", "_", ":", "_", " ", "_").Replace(host)
	return "remootio_" + strings.ToLower(host)
}

// DeviceClass returns DeviceClassGarage.
func (cv *Cover) DeviceClass() string {
	return DeviceClassGarage
}

// IsOpen reports whether the last known state is open.
func (cv *Cover) IsOpen() bool {
	return cv.client.LastState() == message.DeviceStateOpen
}

// IsClosed reports whether the last known state is closed.
func (cv *Cover) IsClosed() bool {
	return cv.client.LastState() == message.DeviceStateClosed
}

// State returns the last known state.
func (cv *Cover) State() message.DeviceState {
	return cv.client.LastState()
}

// Available reports whether the last exchange with the device succeeded.
func (cv *Cover) Available() bool {
	return cv.client.Available()
}

// OpenCover opens the door.
func (cv *Cover) OpenCover(ctx context.Context) error {
	kind := message.CommandTrigger
	if cv.UseDirectionalCommands {
		kind = message.CommandOpen
	}
	_, err := cv.client.Do(ctx, kind)
	return err
}

// CloseCover closes the door.
func (cv *Cover) CloseCover(ctx context.Context) error {
	kind := message.CommandTrigger
	if cv.UseDirectionalCommands {
		kind = message.CommandClose
	}
	_, err := cv.client.Do(ctx, kind)
	return err
}

// Update queries the device state.
func (cv *Cover) Update(ctx context.Context) error {
	_, err := cv.client.Do(ctx, message.CommandQuery)
	return err
}

// Poll calls Update immediately and then every interval until ctx is done.
// Update errors are logged and polling continues; the next Update
// authenticates again. A zero interval means DefaultScanInterval.
func (cv *Cover) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := cv.Update(ctx); err != nil && ctx.Err() == nil {
			if log := cv.client.log; log != nil {
				log.Warnf("%s: update failed: %v", cv.Name(), err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
