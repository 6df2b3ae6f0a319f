package codec

import "testing"

type fakeChainLink struct {
	sType uint32
	value uint32
}

func TestChain_RoundTrip(t *testing.T) {
	e := NewDynamicEncoder(64)
	e.Acquire()
	links := []fakeChainLink{
		{sType: 1, value: 10},
		{sType: 2, value: 20},
	}
	WriteChain(e, links, func(l fakeChainLink) uint32 { return l.sType },
		func(e *Encoder, l fakeChainLink) { e.WriteUint32(l.value) })

	d := NewDecoder(e.Bytes())
	var got []fakeChainLink
	ReadChain(d, func(d *Decoder, sType uint32) {
		got = append(got, fakeChainLink{sType: sType, value: d.ReadUint32()})
	})
	if len(got) != len(links) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(links))
	}
	for i := range links {
		if got[i] != links[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], links[i])
		}
	}
}

func TestChain_Empty(t *testing.T) {
	e := NewDynamicEncoder(16)
	e.Acquire()
	WriteChain[fakeChainLink](e, nil, func(l fakeChainLink) uint32 { return l.sType },
		func(e *Encoder, l fakeChainLink) {})

	d := NewDecoder(e.Bytes())
	called := false
	ReadChain(d, func(d *Decoder, sType uint32) { called = true })
	if called {
		t.Error("ReadChain should not invoke decodeLink for an empty chain")
	}
}

func TestChain_UnknownSTypePoisonsDecoder(t *testing.T) {
	e := NewDynamicEncoder(32)
	e.Acquire()
	WriteChain(e, []fakeChainLink{{sType: 99, value: 1}},
		func(l fakeChainLink) uint32 { return l.sType },
		func(e *Encoder, l fakeChainLink) { e.WriteUint32(l.value) })

	d := NewDecoder(e.Bytes())
	ReadChain(d, func(d *Decoder, sType uint32) {
		if sType != 99 {
			t.Fatalf("sType = %d, want 99", sType)
		}
		d.SetFatal()
	})
	if !d.Fatal() {
		t.Error("decoder should be fatal after an unrecognized sType poisons it")
	}
}
