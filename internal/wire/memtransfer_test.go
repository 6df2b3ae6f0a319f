package wire

import (
	"bytes"
	"testing"

	"github.com/venusplus/vpls/internal/codec"
)

func TestTransferMemoryDataRoundTrip(t *testing.T) {
	e := codec.NewDynamicEncoder(64)
	e.Acquire()
	want := TransferMemoryDataRequest{MemoryHandle: 7, Offset: 16, Data: []byte("payload")}
	want.Encode(e)

	d := codec.NewDecoder(e.Bytes())
	got := DecodeTransferMemoryDataRequest(d)
	if got.MemoryHandle != want.MemoryHandle || got.Offset != want.Offset {
		t.Errorf("got = %+v, want %+v", got, want)
	}
	if !bytes.Equal(got.Data, want.Data) {
		t.Errorf("Data = %q, want %q", got.Data, want.Data)
	}
}

func TestReadMemoryDataRequestRoundTrip(t *testing.T) {
	e := codec.NewDynamicEncoder(32)
	e.Acquire()
	want := ReadMemoryDataRequest{MemoryHandle: 3, Offset: 8, Size: 64}
	want.Encode(e)

	d := codec.NewDecoder(e.Bytes())
	got := DecodeReadMemoryDataRequest(d)
	if got != want {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestReadMemoryDataReply_Success(t *testing.T) {
	e := codec.NewDynamicEncoder(32)
	e.Acquire()
	want := ReadMemoryDataReply{Result: 0, Data: []byte{9, 8, 7, 6}}
	want.Encode(e)

	d := codec.NewDecoder(e.Bytes())
	got := DecodeReadMemoryDataReply(d, len(want.Data))
	if got.Result != 0 || !bytes.Equal(got.Data, want.Data) {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestReadMemoryDataReply_Failure(t *testing.T) {
	e := codec.NewDynamicEncoder(32)
	e.Acquire()
	want := ReadMemoryDataReply{Result: -1}
	want.Encode(e)

	d := codec.NewDecoder(e.Bytes())
	got := DecodeReadMemoryDataReply(d, 0)
	if got.Result != -1 || len(got.Data) != 0 {
		t.Errorf("got = %+v, want Result=-1, no data", got)
	}
}
