package protocol

import (
	"encoding/json"
	"testing"
)

func TestEncodeReply_RoundTripsThroughDecode(t *testing.T) {
	frame, err := EncodeReply(EventMessageSent, "req-7", ListingRef{ListingID: "abc"})
	if err != nil {
		t.Fatalf("EncodeReply() failed: %v", err)
	}

	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if env.Event != EventMessageSent || env.RequestID != "req-7" {
		t.Errorf("unexpected envelope %+v", env)
	}

	var ref ListingRef
	if err := json.Unmarshal(env.Data, &ref); err != nil || ref.ListingID != "abc" {
		t.Errorf("payload = %+v, err = %v", ref, err)
	}
}

func TestEncode_NilPayloadOmitsData(t *testing.T) {
	frame, err := Encode(EventConnected, nil)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if string(frame) != `{"event":"connected"}` {
		t.Errorf("unexpected frame %s", frame)
	}
}

func TestEncode_UnsupportedPayload(t *testing.T) {
	if _, err := Encode(EventNotification, func() {}); err == nil {
		t.Error("expected an error for a func payload")
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", "hello"},
		{"missing event", `{"data":{}}`},
		{"event wrong type", `{"event":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.frame)); err == nil {
				t.Errorf("Decode(%s) should fail", tt.frame)
			}
		})
	}
}
