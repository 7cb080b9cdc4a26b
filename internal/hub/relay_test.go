package hub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

func TestRelayForwardsOfferToParticipant(t *testing.T) {
	h, store := callSetup(t)
	ctx := context.Background()

	connect(t, h, store, "p1", "P1")
	p2Conn, _ := connect(t, h, store, "p2", "P2")

	_, err := h.Calls.Join(ctx, room1, "p1")
	require.NoError(t, err)
	_, err = h.Calls.Join(ctx, room1, "p2")
	require.NoError(t, err)

	payload := json.RawMessage(`{"sdp":"v=0 fake"}`)
	require.NoError(t, h.Relay.Relay(room1, "p1", "p2", domain.SignalOffer, payload))

	evs := p2Conn.ofType(EvSignal)
	require.Len(t, evs, 1)
	var se signalEvent
	require.NoError(t, json.Unmarshal(evs[0].Data, &se))
	require.Equal(t, domain.UserID("p1"), se.FromID)
	require.Equal(t, domain.SignalOffer, se.Kind)
	require.JSONEq(t, string(payload), string(se.Payload))
}

func TestRelayDropsWhenTargetLeftCall(t *testing.T) {
	h, store := callSetup(t)
	ctx := context.Background()

	connect(t, h, store, "p1", "P1")
	p2Conn, _ := connect(t, h, store, "p2", "P2")

	_, err := h.Calls.Join(ctx, room1, "p1")
	require.NoError(t, err)
	_, err = h.Calls.Join(ctx, room1, "p2")
	require.NoError(t, err)
	h.Calls.Leave(ctx, room1, "p2")

	// Target is still connected app-wide but no longer in this call:
	// the relay must drop silently, not fall back to the registry.
	err = h.Relay.Relay(room1, "p1", "p2", domain.SignalOffer, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Zero(t, p2Conn.count(EvSignal))
}

func TestRelayRejectsMalformedRequest(t *testing.T) {
	h, store := callSetup(t)
	connect(t, h, store, "p1", "P1")

	err := h.Relay.Relay(room1, "p1", "p2", "renegotiate", json.RawMessage(`{}`))
	require.ErrorIs(t, err, core.ErrValidation)

	err = h.Relay.Relay(room1, "p1", "p2", domain.SignalOffer, nil)
	require.ErrorIs(t, err, core.ErrValidation)
}
