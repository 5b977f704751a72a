package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskPending, TaskQueued, true},
		{TaskPending, TaskDownloading, false},
		{TaskQueued, TaskDownloading, true},
		{TaskDownloading, TaskPaused, true},
		{TaskPaused, TaskDownloading, true},
		{TaskDownloading, TaskCompleted, true},
		{TaskCompleted, TaskDownloading, false},
		{TaskCancelled, TaskQueued, false},
		{TaskDownloading, TaskQueued, true},
		{TaskPaused, TaskQueued, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Fatalf("CanTransition(%s, %s): want %v, got %v", c.from, c.to, c.want, got)
		}
	}
}

func TestLinkTypePersistable(t *testing.T) {
	if !LinkMagnet.Persistable() || !LinkEd2k.Persistable() {
		t.Fatalf("magnet and ed2k must be persistable")
	}
	for _, lt := range []LinkType{LinkTorrent, LinkHTTP, LinkUnknown, ""} {
		if lt.Persistable() {
			t.Fatalf("%q must not be persistable", lt)
		}
	}
}
