package codec

// pNext structure chains use a narrower encoding than an ordinary
// nullable pointer: a single byte "has next" flag rather than the
// uint64 present/absent tag spec.md §4.1 otherwise uses for nullable
// pointers generally. This flag width is not drawn from any one
// source file; it is sized the same way the rest of this package
// sizes sub-word fields (pad-to-4, see primitives.go), applied to the
// one-bit "more links follow" signal a chain walk actually needs.

// WriteChainLink writes the one-byte link flag that precedes each
// structure-chain entry: false terminates the chain.
func (e *Encoder) WriteChainLink(hasNext bool) {
	if hasNext {
		e.write(4, []byte{1})
	} else {
		e.write(4, []byte{0})
	}
}

// ReadChainLink reads the link flag written by WriteChainLink.
func (d *Decoder) ReadChainLink() bool {
	var buf [4]byte
	d.read(4, buf[:])
	return buf[0] != 0
}

// WriteChain encodes a pNext chain: for each link, WriteChainLink(true),
// the link's sType discriminant, then the link's body via encodeLink;
// the chain is terminated with a single WriteChainLink(false).
func WriteChain[T any](e *Encoder, links []T, sType func(T) uint32, encodeLink func(*Encoder, T)) {
	for _, link := range links {
		e.WriteChainLink(true)
		e.WriteUint32(sType(link))
		encodeLink(e, link)
	}
	e.WriteChainLink(false)
}

// ReadChain decodes a pNext chain written by WriteChain. decodeLink is
// invoked with the sType it must interpret; an sType it does not
// recognize must call d.SetFatal() to poison the decoder, matching the
// codec's general failure model rather than returning an error.
func ReadChain(d *Decoder, decodeLink func(*Decoder, uint32)) {
	for {
		if d.fatal || !d.ReadChainLink() {
			return
		}
		sType := d.ReadUint32()
		decodeLink(d, sType)
	}
}
