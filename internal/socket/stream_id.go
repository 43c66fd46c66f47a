package socket

const maskStreamID uint32 = 0x7FFFFFFF

// streamIDs allocates stream ids of one side: odd for the client, even for the server.
// It is not safe for concurrent use.
type streamIDs struct {
	cur    uint32
	server bool
}

func newStreamIDs(server bool) *streamIDs {
	if server {
		return &streamIDs{cur: 0, server: true}
	}
	return &streamIDs{cur: maskStreamID}
}

// next returns the next id which is not in use.
// It returns false if every id of this side is in use.
func (p *streamIDs) next(inUse func(uint32) bool) (uint32, bool) {
	// half of the 31-bit space belongs to each side
	for i := uint32(0); i <= maskStreamID/2; i++ {
		p.cur = (p.cur + 2) & maskStreamID
		if p.cur == 0 {
			continue
		}
		if inUse == nil || !inUse(p.cur) {
			return p.cur, true
		}
	}
	return 0, false
}
