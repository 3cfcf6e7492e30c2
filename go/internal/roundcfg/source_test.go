package roundcfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizbid/go/internal/models"
)

func TestDecode(t *testing.T) {
	payload := []byte(`{
		"name": "round-1",
		"floor_bid": 100,
		"service_enabled": true,
		"questions": [
			{"id": "q1", "allocated": false},
			{"id": "q2", "allocated": true}
		]
	}`)

	cfg, err := Decode(payload)

	require.NoError(t, err)
	assert.Equal(t, models.RoundConfig{
		Name:           "round-1",
		FloorBid:       100,
		ServiceEnabled: true,
		Questions: []models.Question{
			{ID: "q1"},
			{ID: "q2", Allocated: true},
		},
	}, cfg)
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode([]byte(`{"name":`))
	assert.Error(t, err)
}

func TestDecodeRequiresName(t *testing.T) {
	_, err := Decode([]byte(`{"floor_bid": 100}`))
	assert.Error(t, err)
}
