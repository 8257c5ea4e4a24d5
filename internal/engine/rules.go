package engine

// CoinFlipChooser decides who picks the first exercise. Both peers
// evaluate this from values they already share (match id and both player
// ids), so no network round trip is needed to agree and neither peer can
// act before the other has the result.
func CoinFlipChooser(matchID, idA, idB int) int {
	if (matchID+idA+idB)%2 == 0 {
		return idA
	}
	return idB
}

// NextChooser decides who picks the next round's exercise. The loser picks
// (rubber-band rule); on a tie the privilege alternates off the previous
// chooser.
func NextChooser(loserID *int, prevChooser, idA, idB int) int {
	if loserID != nil {
		return *loserID
	}
	if prevChooser == idA {
		return idB
	}
	return idA
}
