package internal

// ExpandNibbles serializes each byte of data into two nibble entries, low
// nibble first, replicating the matching qualifier. With dup set each entry
// carries the nibble on both halves of the byte (DDR low-speed convention:
// b&0xF -> 0x0N*0x11).
func ExpandNibbles(data, qual []byte, dup bool) (outd, outq []byte) {
	outd = make([]byte, 0, 2*len(data))
	outq = make([]byte, 0, 2*len(data))
	for i, b := range data {
		lo, hi := b&0x0F, b>>4
		if dup {
			lo *= 0x11
			hi *= 0x11
		}
		outd = append(outd, lo, hi)
		outq = append(outq, qual[i], qual[i])
	}
	return outd, outq
}

// FoldNibbles reassembles a nibble-serial capture into bytes, low nibble
// first, resynchronizing byte alignment on the SFD pattern. A qualifier
// asserted on either nibble marks the whole byte.
func FoldNibbles(data, qual []byte, sfd byte) (outd, outq []byte) {
	odd := true
	synced := false
	var b, be byte
	for i, n := range data {
		odd = !odd
		b = (n&0x0F)<<4 | b>>4
		be |= qual[i]
		if !synced && b == sfd {
			odd = true
			synced = true
		}
		if odd {
			outd = append(outd, b)
			outq = append(outq, be)
			be = 0
		}
	}
	return outd, outq
}
