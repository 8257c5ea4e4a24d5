package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoinFlipBothPeersAgree(t *testing.T) {
	// Whatever perspective computes it, the chooser must be identical,
	// and always one of the two participants.
	for matchID := 0; matchID < 50; matchID++ {
		for idA := 1; idA < 6; idA++ {
			for idB := 6; idB < 11; idB++ {
				got := CoinFlipChooser(matchID, idA, idB)
				assert.Equal(t, got, CoinFlipChooser(matchID, idA, idB))
				assert.Contains(t, []int{idA, idB}, got)
			}
		}
	}
}

func TestCoinFlipParity(t *testing.T) {
	cases := []struct {
		name                string
		matchID, idA, idB   int
		want                int
	}{
		{name: "even sum picks A", matchID: 2, idA: 1, idB: 3, want: 1},
		{name: "odd sum picks B", matchID: 42, idA: 1, idB: 2, want: 2},
		{name: "zero match id", matchID: 0, idA: 4, idB: 8, want: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CoinFlipChooser(tc.matchID, tc.idA, tc.idB))
		})
	}
}

func TestNextChooser(t *testing.T) {
	loser := 7
	cases := []struct {
		name        string
		loserID     *int
		prevChooser int
		want        int
	}{
		{name: "loser picks next", loserID: &loser, prevChooser: 3, want: 7},
		{name: "tie alternates off A", loserID: nil, prevChooser: 3, want: 7},
		{name: "tie alternates off B", loserID: nil, prevChooser: 7, want: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextChooser(tc.loserID, tc.prevChooser, 3, 7))
		})
	}
}
