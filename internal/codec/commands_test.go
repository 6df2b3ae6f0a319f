package codec

import "testing"

func TestCommandHeaderRoundTrip(t *testing.T) {
	e := NewDynamicEncoder(16)
	e.Acquire()
	want := CommandHeader{CommandType: 0x1234, Flags: FlagExpectReply}
	e.WriteCommandHeader(want)

	d := NewDecoder(e.Bytes())
	got := d.ReadCommandHeader()
	if got != want {
		t.Errorf("ReadCommandHeader() = %+v, want %+v", got, want)
	}
	if !got.Flags.ExpectsReply() {
		t.Error("ExpectsReply() = false, want true")
	}
}

func TestCommandFlags_NoReply(t *testing.T) {
	var f CommandFlags
	if f.ExpectsReply() {
		t.Error("zero-value CommandFlags should not expect a reply")
	}
}
