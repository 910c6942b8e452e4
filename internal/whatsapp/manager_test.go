package whatsapp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
)

func TestInstanceMarkerRoundTrip(t *testing.T) {
	id, ok := parseInstanceMarker(instanceMarker(42))
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, bn := range []string{"", "app_wad:1", "wadesk_instance:", "wadesk_instance:abc", "wadesk_instance:0"} {
		_, ok := parseInstanceMarker(bn)
		assert.False(t, ok, bn)
	}
}

func TestNormalizeChatID(t *testing.T) {
	jid, err := NormalizeChatID("+55 (11) 99999-0000")
	require.NoError(t, err)
	assert.Equal(t, "5511999990000@s.whatsapp.net", jid.String())

	jid, err = NormalizeChatID("120363000000000000@g.us")
	require.NoError(t, err)
	assert.Equal(t, "g.us", jid.Server)

	_, err = NormalizeChatID("   ")
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	_, err = NormalizeChatID("abc")
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestStoreDialect(t *testing.T) {
	assert.Equal(t, "postgres", storeDialect("PostgreSQL"))
	assert.Equal(t, "sqlite3", storeDialect("sqlite"))
	assert.Equal(t, "sqlite3", storeDialect(""))
}

func TestSendMessageWithoutClient(t *testing.T) {
	var nilManager *Manager
	_, err := nilManager.SendMessage(context.Background(), 1, "5511", "hi")
	assert.ErrorIs(t, err, ErrNotInitialized)

	m := &Manager{clients: map[int64]*whatsmeow.Client{}, qr: map[int64]string{}}
	_, err = m.SendMessage(context.Background(), 1, "5511", "hi")
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	assert.ErrorIs(t, m.Connect(1), ErrInstanceNotFound)
	assert.Equal(t, State{InstanceID: 1}, m.State(1))
	assert.NoError(t, m.Remove(context.Background(), 1))
}
