package codec

// CommandFlags is the flags word that follows a command-type
// discriminant at the start of every command frame (spec.md §4.1,
// "Commands").
type CommandFlags uint32

// FlagExpectReply is the only defined command flag: bit 0, set when the
// caller expects a reply frame.
const FlagExpectReply CommandFlags = 1 << 0

// ExpectsReply reports whether FlagExpectReply is set.
func (f CommandFlags) ExpectsReply() bool {
	return f&FlagExpectReply != 0
}

// CommandHeader is the 8-byte prefix every generated routine writes
// ahead of its arguments: a command-type discriminant followed by the
// flags word.
type CommandHeader struct {
	CommandType uint32
	Flags       CommandFlags
}

// WriteCommandHeader writes h as the first 8 bytes of a command
// payload.
func (e *Encoder) WriteCommandHeader(h CommandHeader) {
	e.WriteUint32(h.CommandType)
	e.WriteUint32(uint32(h.Flags))
}

// ReadCommandHeader reads the header written by WriteCommandHeader.
func (d *Decoder) ReadCommandHeader() CommandHeader {
	return CommandHeader{
		CommandType: d.ReadUint32(),
		Flags:       CommandFlags(d.ReadUint32()),
	}
}
