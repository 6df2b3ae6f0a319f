package wire

import (
	"bytes"
	"testing"
)

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{1, 2, 3, 4, 5}
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadFrame() = %v, want %v", got, payload)
	}
}

func TestWriteReadFrame_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadFrame() = %v, want empty", got)
	}
}

func TestReadFrame_BadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	if _, err := ReadFrame(&buf); err != ErrBadMagic {
		t.Errorf("ReadFrame() error = %v, want ErrBadMagic", err)
	}
}

func TestReadFrame_ShortPayload(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, []byte{1, 2, 3, 4})
	truncated := buf.Bytes()[:len(buf.Bytes())-1]
	if _, err := ReadFrame(bytes.NewReader(truncated)); err == nil {
		t.Error("ReadFrame() on truncated payload should fail")
	}
}

func TestReadFrame_ShortHeader(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Error("ReadFrame() on short header should fail")
	}
}
