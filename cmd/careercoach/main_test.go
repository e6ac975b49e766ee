package main

import (
	"testing"
	"time"
)

func TestGuardTTL(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    time.Duration
		wantErr bool
	}{
		{timeout: 60 * time.Second, want: 150 * time.Second},
		{timeout: time.Second, want: 32 * time.Second},
		{timeout: 0, wantErr: true},
		{timeout: -time.Second, wantErr: true},
	}
	for _, tt := range tests {
		got, err := guardTTL(tt.timeout)
		if tt.wantErr {
			if err == nil {
				t.Errorf("guardTTL(%s): expected error", tt.timeout)
			}
			continue
		}
		if err != nil {
			t.Errorf("guardTTL(%s): %v", tt.timeout, err)
			continue
		}
		if got != tt.want {
			t.Errorf("guardTTL(%s) = %s, want %s", tt.timeout, got, tt.want)
		}
		if got <= 2*tt.timeout {
			t.Errorf("guardTTL(%s) = %s must exceed twice the timeout", tt.timeout, got)
		}
	}
}
