package service

import (
	"testing"
	"time"

	"leadmarket_backend/internal/subscriptions/repository"
)

func TestIsOpen(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		sub  repository.Subscription
		want bool
	}{
		{
			name: "active with free units",
			sub:  repository.Subscription{Status: repository.StatusActive, MaxUnits: 10, CurrentUnits: 3},
			want: true,
		},
		{
			name: "active at capacity",
			sub:  repository.Subscription{Status: repository.StatusActive, MaxUnits: 10, CurrentUnits: 10},
			want: false,
		},
		{
			name: "active unlimited",
			sub:  repository.Subscription{Status: repository.StatusActive, MaxUnits: 0, CurrentUnits: 9000},
			want: true,
		},
		{
			name: "trial before trial end",
			sub:  repository.Subscription{Status: repository.StatusTrial, MaxUnits: 5, CurrentUnits: 1, TrialEndsAt: &future},
			want: true,
		},
		{
			name: "trial after trial end",
			sub:  repository.Subscription{Status: repository.StatusTrial, MaxUnits: 5, CurrentUnits: 1, TrialEndsAt: &past},
			want: false,
		},
		{
			name: "trial without end date",
			sub:  repository.Subscription{Status: repository.StatusTrial, MaxUnits: 5, CurrentUnits: 1},
			want: false,
		},
		{
			name: "suspended",
			sub:  repository.Subscription{Status: repository.StatusSuspended, MaxUnits: 10, CurrentUnits: 0},
			want: false,
		},
		{
			name: "cancelled",
			sub:  repository.Subscription{Status: repository.StatusCancelled, MaxUnits: 0, CurrentUnits: 0},
			want: false,
		},
		{
			name: "expired",
			sub:  repository.Subscription{Status: repository.StatusExpired, MaxUnits: 10, CurrentUnits: 0},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isOpen(tc.sub, now); got != tc.want {
				t.Errorf("isOpen() = %v, want %v", got, tc.want)
			}
		})
	}
}
