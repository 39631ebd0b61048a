package device

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/backkem/remootio/pkg/message"
	"github.com/backkem/remootio/pkg/securechannel"
	"github.com/backkem/remootio/pkg/session"
	"github.com/backkem/remootio/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "00112233445566778899aabbccddeeff"

func newTestSimulator(t *testing.T, initialID uint32) *Simulator {
	t.Helper()
	sim, err := NewSimulator(SimulatorConfig{
		SecretKey:       testKeyHex,
		AuthKey:         testKeyHex,
		InitialActionID: &initialID,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sim.Close() })
	return sim
}

func testKeys(t *testing.T) *session.KeyMaterial {
	t.Helper()
	keys, err := session.ParseKeyMaterial(testKeyHex, testKeyHex)
	require.NoError(t, err)
	return keys
}

// roundTrip sends one command on sess and decodes the response.
func roundTrip(t *testing.T, ctx context.Context, tr transport.Transport, sess *session.State, keys *session.KeyMaterial, kind message.CommandKind) (*message.ResponseBody, uint32) {
	t.Helper()
	frame, id, err := sess.SealCommand(kind, keys.AuthKey())
	require.NoError(t, err)
	raw, err := message.SealEnvelope(frame)
	require.NoError(t, err)
	require.NoError(t, tr.Send(ctx, raw))

	reply, err := tr.Receive(ctx)
	require.NoError(t, err)
	respFrame, err := message.ParseFrame(reply)
	require.NoError(t, err)

	var resp message.Response
	require.NoError(t, sess.OpenResponse(respFrame, keys.AuthKey(), &resp))
	require.NotNil(t, resp.Response)
	return resp.Response, id
}

func TestNewSimulator_Validation(t *testing.T) {
	tooBig := message.MaxActionID

	tests := []struct {
		name   string
		config SimulatorConfig
	}{
		{"missing keys", SimulatorConfig{}},
		{"bad hex", SimulatorConfig{SecretKey: "zz", AuthKey: testKeyHex}},
		{"bad session key size", SimulatorConfig{SecretKey: testKeyHex, AuthKey: testKeyHex, SessionKeySize: 20}},
		{"initial id out of range", SimulatorConfig{SecretKey: testKeyHex, AuthKey: testKeyHex, InitialActionID: &tooBig}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSimulator(tt.config)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	sim, err := NewSimulator(SimulatorConfig{SecretKey: testKeyHex, AuthKey: testKeyHex})
	require.NoError(t, err)
	assert.Equal(t, message.DeviceStateClosed, sim.State())
}

func TestSimulator_Commands(t *testing.T) {
	sim := newTestSimulator(t, 100)
	keys := testKeys(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := sim.PipeDialer().Dial(ctx)
	require.NoError(t, err)
	defer tr.Close()

	sess, err := securechannel.Negotiate(ctx, tr, keys, securechannel.Options{})
	require.NoError(t, err)
	assert.Equal(t, uint32(101), sess.NextActionID())

	steps := []struct {
		kind      message.CommandKind
		wantState message.DeviceState
		wantRelay bool
	}{
		{message.CommandQuery, message.DeviceStateClosed, false},
		{message.CommandTrigger, message.DeviceStateOpen, true},
		{message.CommandOpen, message.DeviceStateOpen, false},
		{message.CommandClose, message.DeviceStateClosed, true},
		{message.CommandClose, message.DeviceStateClosed, false},
		{message.CommandOpen, message.DeviceStateOpen, true},
		{message.CommandTrigger, message.DeviceStateClosed, true},
	}
	for i, step := range steps {
		body, id := roundTrip(t, ctx, tr, sess, keys, step.kind)
		assert.Equal(t, uint32(101+i), id)
		require.NotNil(t, body.ID)
		assert.Equal(t, id, *body.ID, "step %d echoes id", i)
		require.NotNil(t, body.Success)
		assert.True(t, *body.Success)
		assert.Equal(t, step.kind, body.Type)
		assert.Equal(t, string(step.wantState), body.State, "step %d %s", i, step.kind)
		assert.Equal(t, step.wantRelay, body.RelayTriggered, "step %d %s", i, step.kind)
	}

	stats := sim.Stats()
	assert.Equal(t, 1, stats.Authentications)
	assert.Equal(t, len(steps), stats.Commands)
	assert.Equal(t, 4, stats.RelayTriggers)
	assert.Equal(t, uint32(107), stats.LastActionID)
}

func TestSimulator_RejectsReplay(t *testing.T) {
	sim := newTestSimulator(t, 5)
	keys := testKeys(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := sim.PipeDialer().Dial(ctx)
	require.NoError(t, err)
	defer tr.Close()

	sess, err := securechannel.Negotiate(ctx, tr, keys, securechannel.Options{})
	require.NoError(t, err)

	frame, id, err := sess.SealCommand(message.CommandTrigger, keys.AuthKey())
	require.NoError(t, err)
	assert.Equal(t, uint32(6), id)
	raw, err := message.SealEnvelope(frame)
	require.NoError(t, err)

	require.NoError(t, tr.Send(ctx, raw))
	_, err = tr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, message.DeviceStateOpen, sim.State())

	// Same frame again: id 6 is no longer acceptable.
	require.NoError(t, tr.Send(ctx, raw))
	reply, err := tr.Receive(ctx)
	require.NoError(t, err)
	env, err := message.ParseEnvelope(reply)
	assert.ErrorIs(t, err, message.ErrDeviceError)
	assert.Equal(t, "invalid action id", env.ErrorMessage)
	assert.Equal(t, message.DeviceStateOpen, sim.State(), "replay must not move the door")
	assert.Equal(t, 1, sim.Stats().Commands)
}

func TestSimulator_CommandBeforeAuth(t *testing.T) {
	sim := newTestSimulator(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p := transport.NewPipe()
	defer p.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- sim.Serve(ctx, p.End1()) }()

	sess, err := session.NewState(session.Config{SessionKey: make([]byte, 16)})
	require.NoError(t, err)
	frame, _, err := sess.SealCommand(message.CommandQuery, testKeys(t).AuthKey())
	require.NoError(t, err)
	raw, err := message.SealEnvelope(frame)
	require.NoError(t, err)
	require.NoError(t, p.End0().Send(ctx, raw))

	reply, err := p.End0().Receive(ctx)
	require.NoError(t, err)
	env, err := message.ParseEnvelope(reply)
	assert.ErrorIs(t, err, message.ErrDeviceError)
	assert.Equal(t, "not authenticated", env.ErrorMessage)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrProtocol)
	case <-ctx.Done():
		t.Fatal("Serve did not return")
	}
}

func TestSimulator_BadChallengeMAC(t *testing.T) {
	sim := newTestSimulator(t, 0)
	sim.SetFaults(Faults{BadChallengeMAC: true})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := sim.PipeDialer().Dial(ctx)
	require.NoError(t, err)
	defer tr.Close()

	_, err = securechannel.Negotiate(ctx, tr, testKeys(t), securechannel.Options{})
	assert.ErrorIs(t, err, securechannel.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, message.ErrMACMismatch)
}

func TestSimulator_Close(t *testing.T) {
	sim := newTestSimulator(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p := transport.NewPipe()
	defer p.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- sim.Serve(ctx, p.End1()) }()

	// Wait until the connection is tracked.
	require.Eventually(t, func() bool { return sim.Stats().Connections == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, sim.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-ctx.Done():
		t.Fatal("Serve did not return after Close")
	}

	assert.ErrorIs(t, sim.Serve(ctx, transport.NewPipe().End1()), ErrClosed)
}

func TestSimulator_Handler(t *testing.T) {
	sim := newTestSimulator(t, 41)
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	d, err := transport.NewWebSocketDialer(transport.WebSocketConfig{Host: u.Hostname(), Port: port})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := d.Dial(ctx)
	require.NoError(t, err)
	defer tr.Close()

	keys := testKeys(t)
	sess, err := securechannel.Negotiate(ctx, tr, keys, securechannel.Options{})
	require.NoError(t, err)

	body, id := roundTrip(t, ctx, tr, sess, keys, message.CommandQuery)
	assert.Equal(t, uint32(42), id)
	assert.Equal(t, "closed", body.State)
}

func TestSimulator_Faults(t *testing.T) {
	keys := testKeys(t)

	tests := []struct {
		name   string
		faults Faults
		check  func(t *testing.T, reply []byte, err error, sess *session.State)
	}{
		{
			name:   "bad response MAC",
			faults: Faults{BadResponseMAC: true},
			check: func(t *testing.T, reply []byte, err error, sess *session.State) {
				require.NoError(t, err)
				frame, err := message.ParseFrame(reply)
				require.NoError(t, err)
				var resp message.Response
				assert.ErrorIs(t, sess.OpenResponse(frame, keys.AuthKey(), &resp), message.ErrMACMismatch)
			},
		},
		{
			name:   "ignore commands",
			faults: Faults{IgnoreCommands: true},
			check: func(t *testing.T, reply []byte, err error, sess *session.State) {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			},
		},
		{
			name:   "reject",
			faults: Faults{RejectCommands: true},
			check: func(t *testing.T, reply []byte, err error, sess *session.State) {
				require.NoError(t, err)
				frame, err := message.ParseFrame(reply)
				require.NoError(t, err)
				var resp message.Response
				require.NoError(t, sess.OpenResponse(frame, keys.AuthKey(), &resp))
				require.NotNil(t, resp.Response.Success)
				assert.False(t, *resp.Response.Success)
				assert.Equal(t, "rejected", resp.Response.ErrorCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSimulator(t, 0)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			tr, err := sim.PipeDialer().Dial(ctx)
			require.NoError(t, err)
			defer tr.Close()

			sess, err := securechannel.Negotiate(ctx, tr, keys, securechannel.Options{})
			require.NoError(t, err)
			sim.SetFaults(tt.faults)

			frame, _, err := sess.SealCommand(message.CommandTrigger, keys.AuthKey())
			require.NoError(t, err)
			raw, err := message.SealEnvelope(frame)
			require.NoError(t, err)
			require.NoError(t, tr.Send(ctx, raw))

			short, cancelShort := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancelShort()
			reply, err := tr.Receive(short)
			tt.check(t, reply, err, sess)
		})
	}
}
