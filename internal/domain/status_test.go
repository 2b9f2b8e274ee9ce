package domain

import "testing"

func TestObjectStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to ObjectStatus
		want     bool
	}{
		{StatusWriting, StatusCommitted, true},
		{StatusWriting, StatusDeleting, false},
		{StatusCommitted, StatusDeleting, true},
		{StatusCommitted, StatusCommitted, false},
		{StatusDeleting, StatusDeleted, true},
		{StatusDeleting, StatusCommitted, false},
		{StatusDeleted, StatusWriting, false},
		{StatusDeleted, StatusDeleted, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v want %v", c.from, c.to, got, c.want)
		}
	}
}
