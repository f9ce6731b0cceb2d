package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blobprobe/blobprobe/internal/engine/types"
)

func TestDownloadErrorMsg_JSONRoundTrip(t *testing.T) {
	msg := DownloadErrorMsg{
		DownloadID: "dl-1",
		BlobID:     4,
		Err:        errors.New("404 Not Found"),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got DownloadErrorMsg
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got.DownloadID != "dl-1" || got.BlobID != 4 {
		t.Errorf("Unexpected identity after round trip: %+v", got)
	}
	if got.Err == nil || got.Err.Error() != "404 Not Found" {
		t.Errorf("Expected error text to survive, got %v", got.Err)
	}
}

func TestDownloadErrorMsg_MarshalNilError(t *testing.T) {
	data, err := json.Marshal(DownloadErrorMsg{DownloadID: "dl-2"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"DownloadID":"dl-2","BlobID":0}` {
		t.Errorf("Unexpected JSON: %s", data)
	}
}

func TestDownloadErrorMsg_UnmarshalVariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"string", `{"DownloadID":"a","Err":"boom"}`, "boom"},
		{"empty string", `{"DownloadID":"a","Err":""}`, ""},
		{"null", `{"DownloadID":"a","Err":null}`, ""},
		{"missing", `{"DownloadID":"a"}`, ""},
		{"object", `{"DownloadID":"a","Err":{}}`, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg DownloadErrorMsg
			if err := json.Unmarshal([]byte(tt.input), &msg); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			got := ""
			if msg.Err != nil {
				got = msg.Err.Error()
			}
			if got != tt.wantErr {
				t.Errorf("Err = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestDownloadStartedMsg_StateNotSerialized(t *testing.T) {
	msg := DownloadStartedMsg{
		DownloadID: "dl-3",
		BlobID:     1,
		State:      types.NewProgressState("dl-3", 1, 5),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := decoded["State"]; ok {
		t.Error("State should not be serialized")
	}
}

func TestMessageTypes_AreDistinct(t *testing.T) {
	messages := []any{
		ProgressMsg{DownloadID: "progress"},
		DownloadStartedMsg{DownloadID: "started"},
		DownloadCompleteMsg{DownloadID: "complete"},
		DownloadErrorMsg{DownloadID: "error"},
		BlobRemovedMsg{BlobID: 1},
		BlobsChangedMsg{},
	}

	typeNames := make(map[string]bool)
	for _, msg := range messages {
		name := fmt.Sprintf("%T", msg)
		if typeNames[name] {
			t.Errorf("Duplicate message type %s", name)
		}
		typeNames[name] = true
	}
}

func TestProgressMsg_Fields(t *testing.T) {
	msg := ProgressMsg{
		DownloadID: "dl-4",
		BlobID:     2,
		Loaded:     512,
		Total:      1024,
		Speed:      256,
		Elapsed:    2 * time.Second,
	}

	if msg.Loaded > msg.Total {
		t.Error("Loaded should not exceed Total here")
	}
	if msg.Speed*msg.Elapsed.Seconds() != float64(msg.Loaded) {
		t.Errorf("Speed/Elapsed inconsistent with Loaded")
	}
}
