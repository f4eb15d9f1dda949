package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseRejectsBadFrames(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "hello"},
		{"missing topic", `{"payload":{}}`},
		{"empty topic", `{"topic":"","payload":{}}`},
	}
	for _, tc := range cases {
		if _, err := Parse([]byte(tc.data)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := Encode(TopicPlayerAction, PlayerAction{Action: ActionFlip, X: 3, Y: 4})
	if data == nil {
		t.Fatal("encode returned nil")
	}

	msg, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Topic != TopicPlayerAction {
		t.Errorf("topic = %q", msg.Topic)
	}

	var action PlayerAction
	if err := Decode(msg, &action); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if action.Action != ActionFlip || action.X != 3 || action.Y != 4 {
		t.Errorf("round trip lost data: %+v", action)
	}
}

func TestColorValueForms(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"hsl string", `"hsl(120, 70%, 50%)"`, "hsl(120, 70%, 50%)"},
		{"bare hue", `200`, "hsl(200, 70%, 50%)"},
		{"hue wraps high", `420`, "hsl(60, 70%, 50%)"},
		{"hue wraps negative", `-30`, "hsl(330, 70%, 50%)"},
	}
	for _, tc := range cases {
		var c ColorValue
		if err := json.Unmarshal([]byte(tc.in), &c); err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if string(c) != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, c, tc.want)
		}
	}

	var c ColorValue
	if err := json.Unmarshal([]byte(`{"h":1}`), &c); err == nil {
		t.Error("object form should fail")
	}
}

func TestTileStateOmitsHiddenFields(t *testing.T) {
	// A covered stub must not leak kind or number on the wire.
	data, err := json.Marshal(TileState{X: 1, Y: 2})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	json.Unmarshal(data, &m)

	for _, field := range []string{"kind", "number", "flaggedBy", "exploded"} {
		if _, present := m[field]; present {
			t.Errorf("stub tile leaks %q", field)
		}
	}
}
