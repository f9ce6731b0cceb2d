package types

import (
	"errors"
	"testing"
)

func TestDownloadRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     DownloadRequest
		wantErr bool
	}{
		{"zero id", DownloadRequest{ID: 0, SizeMB: 1}, false},
		{"large", DownloadRequest{ID: 42, SizeMB: 500}, false},
		{"negative id", DownloadRequest{ID: -1, SizeMB: 1}, true},
		{"zero size", DownloadRequest{ID: 1, SizeMB: 0}, true},
		{"negative size", DownloadRequest{ID: 1, SizeMB: -5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("error should wrap ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestDownloadRequest_Bytes(t *testing.T) {
	if got := (DownloadRequest{SizeMB: 500}).Bytes(); got != 524288000 {
		t.Errorf("Bytes() = %d, want 524288000", got)
	}
}

func TestProgressEvent_Fraction(t *testing.T) {
	tests := []struct {
		ev   ProgressEvent
		want float64
	}{
		{ProgressEvent{Loaded: 0, Total: 0}, 0},
		{ProgressEvent{Loaded: 50, Total: 100}, 0.5},
		{ProgressEvent{Loaded: 150, Total: 100}, 1},
	}
	for _, tt := range tests {
		if got := tt.ev.Fraction(); got != tt.want {
			t.Errorf("%+v.Fraction() = %f, want %f", tt.ev, got, tt.want)
		}
	}
}

func TestProgressState_UpdateAndStatus(t *testing.T) {
	ps := NewProgressState("dl-1", 3, 2)

	if ps.Total.Load() != 2*MB {
		t.Errorf("initial total = %d, want %d", ps.Total.Load(), 2*MB)
	}

	ps.Update(ProgressEvent{Loaded: 512, Total: 1024})
	st := ps.Status()

	if st.BlobID != 3 || st.DownloadID != "dl-1" {
		t.Errorf("unexpected identity in status: %+v", st)
	}
	if st.Loaded != 512 || st.Total != 1024 {
		t.Errorf("status counters = %d/%d, want 512/1024", st.Loaded, st.Total)
	}
	if st.Progress != 50 {
		t.Errorf("Progress = %f, want 50", st.Progress)
	}
}
