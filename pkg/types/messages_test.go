package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFormRulesSnakeCase(t *testing.T) {
	// FORM_RULES is the one payload the server emits snake_case.
	frame := []byte(`{"type":"FORM_RULES","payload":{
		"exercise_id":1,
		"exercise_name":"Push-Up",
		"form_rules":{"elbow_angle":{"min":90,"max":180}}}}`)

	msg, err := Decode(frame)
	require.NoError(t, err)

	rules, ok := msg.(FormRules)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, 1, rules.ExerciseID)
	assert.Equal(t, "Push-Up", rules.ExerciseName)
	assert.Equal(t, AngleRange{Min: 90, Max: 180}, rules.Rules["elbow_angle"])
}

func TestDecodeErrorBareString(t *testing.T) {
	// The server sends ERROR payloads as a bare JSON string, not an object.
	msg, err := Decode([]byte(`{"type":"ERROR","payload":"Game not found"}`))
	require.NoError(t, err)
	assert.Equal(t, ErrorMessage{Message: "Game not found"}, msg)

	// Object-shaped payloads from other paths keep their raw text.
	msg, err = Decode([]byte(`{"type":"ERROR","payload":{"detail":"boom"}}`))
	require.NoError(t, err)
	assert.Contains(t, msg.(ErrorMessage).Message, "boom")
}

func TestDecodeUnknownTypeFailsSoft(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"FUTURE_THING","payload":{"x":1}}`))
	require.NoError(t, err)

	u, ok := msg.(Unknown)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "FUTURE_THING", u.Type)
	assert.JSONEq(t, `{"x":1}`, string(u.Payload))
}

func TestDecodeMissingPayloadYieldsZeroValue(t *testing.T) {
	// Outbound ROUND_END requests carry no payload; the server accepts the
	// bare envelope, so decoding one must not error either.
	msg, err := Decode([]byte(`{"type":"ROUND_END"}`))
	require.NoError(t, err)
	assert.Equal(t, RoundEnd{}, msg)
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"GAME_STATE","payload":"not an object"}`))
	assert.Error(t, err)
}

func TestMarshalRoundTripsThroughDecode(t *testing.T) {
	original := GameState{
		GameID:       42,
		PlayerA:      PlayerState{ID: 1, Score: 7},
		PlayerB:      PlayerState{ID: 2, Score: 5},
		CurrentRound: 2,
		Status:       "active",
	}

	data, err := Marshal(original)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeGameState, env.Type)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestMarshalErrorAsBareString(t *testing.T) {
	data, err := Marshal(ErrorMessage{Message: "Invalid JSON"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ERROR","payload":"Invalid JSON"}`, string(data))
}

func TestMarshalPreservesUnknownFrames(t *testing.T) {
	u := Unknown{Type: "ECHO", Payload: json.RawMessage(`{"anything":true}`)}
	data, err := Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ECHO","payload":{"anything":true}}`, string(data))
}
