package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/marketfeed/internal/event"
	"github.com/sawpanic/marketfeed/internal/pair"
)

func TestToEnvelopeTagsEveryVariant(t *testing.T) {
	cases := []struct {
		ev   event.Event
		want string
	}{
		{event.Trade{Exchange: pair.Binance}, "trade"},
		{event.Quote{Exchange: pair.Bybit}, "quote"},
		{event.L2{Exchange: pair.Okex}, "l2"},
		{event.Disconnect{Exchange: pair.Kucoin}, "disconnect"},
		{event.RemovedPair{Exchange: pair.Coinbase}, "removed_pair"},
		{event.Other{Exchange: pair.Binance}, "other"},
	}
	for _, tc := range cases {
		env := toEnvelope(tc.ev)
		assert.Equal(t, tc.want, env.Type)
	}
}

func TestDisconnectReasonCoversEveryKind(t *testing.T) {
	assert.Equal(t, "connection", disconnectReason(event.DisconnectConnectionError))
	assert.Equal(t, "deserialize", disconnectReason(event.DisconnectDeserialize))
	assert.Equal(t, "stream_rx", disconnectReason(event.DisconnectStreamRx))
	assert.Equal(t, "stream_tx", disconnectReason(event.DisconnectStreamTx))
	assert.Equal(t, "idle_timeout", disconnectReason(event.DisconnectIdleTimeout))
	assert.Equal(t, "stream_terminated", disconnectReason(event.DisconnectStreamTerminated))
	assert.Equal(t, "unknown", disconnectReason(event.DisconnectKind(99)))
}
