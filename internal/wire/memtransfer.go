package wire

import "github.com/venusplus/vpls/internal/codec"

// Reserved command-type discriminants for the two memory-transfer
// operations (spec.md §6, "Command discriminants"). These live outside
// the generated Vulkan-call range but are encoded as ordinary command
// frames: a codec.CommandHeader followed by the payload below.
const (
	CommandTransferMemoryData uint32 = 0x10000000
	CommandReadMemoryData     uint32 = 0x10000001
)

// TransferMemoryDataRequest is TRANSFER_MEMORY_DATA's payload: push
// data into the server's shadow of a mapped allocation.
type TransferMemoryDataRequest struct {
	MemoryHandle uint64
	Offset       uint64
	Data         []byte
}

// Encode writes the request body (the command header itself is written
// separately by the caller, matching every other generated routine).
func (r TransferMemoryDataRequest) Encode(e *codec.Encoder) {
	e.WriteUint64(r.MemoryHandle)
	e.WriteUint64(r.Offset)
	e.WriteUint64(uint64(len(r.Data)))
	e.WriteBlob(r.Data)
}

// DecodeTransferMemoryDataRequest decodes a request written by Encode.
func DecodeTransferMemoryDataRequest(d *codec.Decoder) TransferMemoryDataRequest {
	mem := d.ReadUint64()
	offset := d.ReadUint64()
	size := d.ReadUint64()
	data := d.ReadBlob(int(size))
	return TransferMemoryDataRequest{MemoryHandle: mem, Offset: offset, Data: data}
}

// ReadMemoryDataRequest is READ_MEMORY_DATA's request payload.
type ReadMemoryDataRequest struct {
	MemoryHandle uint64
	Offset       uint64
	Size         uint64
}

// Encode writes the request body.
func (r ReadMemoryDataRequest) Encode(e *codec.Encoder) {
	e.WriteUint64(r.MemoryHandle)
	e.WriteUint64(r.Offset)
	e.WriteUint64(r.Size)
}

// DecodeReadMemoryDataRequest decodes a request written by Encode.
func DecodeReadMemoryDataRequest(d *codec.Decoder) ReadMemoryDataRequest {
	return ReadMemoryDataRequest{
		MemoryHandle: d.ReadUint64(),
		Offset:       d.ReadUint64(),
		Size:         d.ReadUint64(),
	}
}

// ReadMemoryDataReply is READ_MEMORY_DATA's reply payload: a VkResult
// followed, on success, by the requested bytes (spec.md §6).
type ReadMemoryDataReply struct {
	Result int32
	Data   []byte
}

// Encode writes the reply body. Data is omitted on a non-success
// result, matching the "on success, size bytes" wire contract.
func (r ReadMemoryDataReply) Encode(e *codec.Encoder) {
	e.WriteInt32(r.Result)
	if r.Result == 0 {
		e.WriteBlob(r.Data)
	}
}

// DecodeReadMemoryDataReply decodes a reply written by Encode. size is
// the number of data bytes to expect on success, known to the caller
// from its own request.
func DecodeReadMemoryDataReply(d *codec.Decoder, size int) ReadMemoryDataReply {
	result := d.ReadInt32()
	if result != 0 {
		return ReadMemoryDataReply{Result: result}
	}
	return ReadMemoryDataReply{Result: result, Data: d.ReadBlob(size)}
}
