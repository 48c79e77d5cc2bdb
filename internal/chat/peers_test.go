package chat

import (
	"testing"
	"time"
)

func TestSortByActivity(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	peers := []Peer{
		{ID: 1},
		{ID: 2, LastMessage: &LastMessage{Date: at}},
		{ID: 3},
		{ID: 4, LastMessage: &LastMessage{Date: at.Add(time.Hour)}},
	}
	SortByActivity(peers)

	var got []uint64
	for _, p := range peers {
		got = append(got, p.ID)
	}
	want := []uint64{4, 2, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}
