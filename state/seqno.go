package state

// Sequence numbers wrap at 2^16 and are compared modulo 2^16.

func SeqnoLt(a, b uint16) bool {
	x := b - a
	return 0 < x && x < 32768
}

func SeqnoLe(a, b uint16) bool {
	return a == b || SeqnoLt(a, b)
}

func SeqnoGt(a, b uint16) bool {
	return !SeqnoLe(a, b)
}

func SeqnoGe(a, b uint16) bool {
	return !SeqnoLt(a, b)
}

// AddHop adds one relay to a hop count, saturating at INFM.
func AddHop(h uint32) uint32 {
	if h >= INFM {
		return INF
	}
	return h + 1
}
