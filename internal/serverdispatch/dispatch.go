// Package serverdispatch is the server-side half of the wire protocol:
// it decodes the command frames internal/vkmirror.Driver sends and
// answers them from the fake GPU metadata provider and a per-connection
// table of minted server identities, mirroring the dispatch loop in
// original_source/server/main.cpp (there, a single if-chain keyed on
// command_type; here, one switch over the same discriminants
// internal/vkmirror/commands.go defines).
package serverdispatch

import (
	"encoding/binary"
	"log"
	"sync"

	"github.com/venusplus/vpls/internal/codec"
	"github.com/venusplus/vpls/internal/fakegpu"
	"github.com/venusplus/vpls/internal/transport"
	"github.com/venusplus/vpls/internal/wire"
)

// Command-type discriminants, mirrored from internal/vkmirror/commands.go
// (that package is client-only; the wire-level numbers are the actual
// contract, so they are restated here rather than imported).
const (
	cmdEnumerateInstanceVersion    uint32 = 1
	cmdCreateInstance              uint32 = 2
	cmdDestroyInstance             uint32 = 3
	cmdEnumeratePhysicalDevices    uint32 = 4
	cmdGetPhysicalDeviceProperties uint32 = 5
	cmdCreateDevice                uint32 = 6
	cmdDestroyDevice               uint32 = 7
	cmdGetDeviceQueue              uint32 = 8
	cmdAllocateMemory              uint32 = 9
	cmdFreeMemory                  uint32 = 10
	cmdCreateBuffer                uint32 = 11
	cmdDestroyBuffer               uint32 = 12
	cmdBindBufferMemory            uint32 = 13
	cmdGetBufferMemoryRequirements uint32 = 14
	cmdCreateFence                 uint32 = 15
	cmdDestroyFence                uint32 = 16
	cmdGetFenceStatus              uint32 = 17
	cmdResetFences                 uint32 = 18
	cmdWaitForFences               uint32 = 19
	cmdCreateCommandPool           uint32 = 20
	cmdAllocateCommandBuffers      uint32 = 21
	cmdQueueSubmit                 uint32 = 22
	cmdDeviceWaitIdle              uint32 = 23

	apiVersion1_3 uint32 = 0x00403000
)

// physicalDeviceIdentity is the one fake GPU this server ever reports;
// a single fixed identity matches fakegpu's one-entry property table.
const physicalDeviceIdentity uint64 = 0xA000

// recordedOpKind mirrors internal/registry.RecordedOpKind; restated
// here for the same layering reason as the command discriminants above.
type recordedOpKind uint32

const (
	opCopyBuffer recordedOpKind = 1
	opFillBuffer recordedOpKind = 2
)

// recordedOp is one decoded vkCmdCopyBuffer/vkCmdFillBuffer entry from
// a QueueSubmit payload, in internal/vkmirror/commands.go's
// encodeRecordedOp layout.
type recordedOp struct {
	kind               recordedOpKind
	src, dst           uint64
	srcOffset, dstOffset uint64
	size               uint64
	fillData           uint32
}

func decodeRecordedOp(d *codec.Decoder) recordedOp {
	return recordedOp{
		kind:      recordedOpKind(d.ReadUint32()),
		src:       d.ReadUint64(),
		dst:       d.ReadUint64(),
		srcOffset: d.ReadUint64(),
		dstOffset: d.ReadUint64(),
		size:      d.ReadUint64(),
		fillData:  d.ReadUint32(),
	}
}

// bufferInfo is everything the dispatcher needs to remember about a
// server-minted buffer: enough to answer GetBufferMemoryRequirements,
// to serve as a TRANSFER_MEMORY_DATA/READ_MEMORY_DATA target once
// bound, and to resolve vkCmdCopyBuffer/vkCmdFillBuffer against the
// memory it is bound to.
type bufferInfo struct {
	size         uint64
	memory       uint64
	memoryBound  bool
	memoryOffset uint64
}

// session is one connection's worth of server-minted identities, the
// in-memory byte store TRANSFER_MEMORY_DATA/READ_MEMORY_DATA read and
// write, and the fake GPU dispatcher for fence/semaphore/event state
// (spec.md §4.5, server/state/sync_manager.cpp).
type session struct {
	mu       sync.Mutex
	nextID   uint64
	buffers  map[uint64]*bufferInfo
	memories map[uint64][]byte
	dispatch *fakegpu.Dispatcher
}

func newSession() *session {
	return &session{
		nextID:   1,
		buffers:  make(map[uint64]*bufferInfo),
		memories: make(map[uint64][]byte),
		dispatch: fakegpu.NewDispatcher(),
	}
}

func (s *session) allocID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

// Serve answers command frames on t until Receive fails (connection
// closed or malformed frame), mirroring transport.Handler's contract.
func Serve(t transport.Transport) {
	s := newSession()
	for {
		payload, err := t.Receive()
		if err != nil {
			return
		}
		reply, hasReply := s.handle(payload)
		if !hasReply {
			continue
		}
		if err := t.Send(reply); err != nil {
			log.Printf("vpls server: send reply: %v", err)
			return
		}
	}
}

// handle decodes one command frame and returns its reply payload, if
// any. Commands with no reply (destroy*, free, bind) return
// hasReply=false; the caller must not call Send for those.
func (s *session) handle(payload []byte) (reply []byte, hasReply bool) {
	d := codec.NewDecoder(payload)
	header := d.ReadCommandHeader()

	e := codec.NewDynamicEncoder(256)
	if !e.Acquire() {
		return nil, false
	}
	defer e.Release()

	switch header.CommandType {
	case cmdEnumerateInstanceVersion:
		e.WriteInt32(0)
		e.WriteUint32(apiVersion1_3)
	case cmdCreateInstance:
		codec.ReadCountedArray(d, func(d *codec.Decoder) string { return d.ReadString(256) })
		e.WriteInt32(0)
		e.WriteUint64(s.allocID())
	case cmdDestroyInstance:
		d.ReadHandle()
		return nil, false
	case cmdEnumeratePhysicalDevices:
		d.ReadHandle()
		e.WriteInt32(0)
		codec.WriteCountedArray(e, []uint64{physicalDeviceIdentity}, func(e *codec.Encoder, v uint64) { e.WriteUint64(v) })
	case cmdGetPhysicalDeviceProperties:
		d.ReadHandle()
		s.encodePhysicalDeviceProperties(e)
	case cmdCreateDevice:
		d.ReadHandle()
		codec.ReadCountedArray(d, func(d *codec.Decoder) string { return d.ReadString(256) })
		e.WriteInt32(0)
		e.WriteUint64(s.allocID())
	case cmdDestroyDevice:
		d.ReadHandle()
		return nil, false
	case cmdGetDeviceQueue:
		d.ReadHandle()
		d.ReadUint32()
		d.ReadUint32()
		e.WriteUint64(s.allocID())
	case cmdAllocateMemory:
		d.ReadHandle()
		d.ReadUint64()
		d.ReadUint32()
		id := s.allocID()
		e.WriteInt32(0)
		e.WriteUint64(id)
	case cmdFreeMemory:
		mem := d.ReadHandle()
		s.mu.Lock()
		delete(s.memories, uint64(mem))
		s.mu.Unlock()
		return nil, false
	case cmdCreateBuffer:
		d.ReadHandle()
		size := d.ReadUint64()
		d.ReadUint32()
		id := s.allocID()
		s.mu.Lock()
		s.buffers[id] = &bufferInfo{size: size}
		s.mu.Unlock()
		e.WriteInt32(0)
		e.WriteUint64(id)
	case cmdDestroyBuffer:
		buf := d.ReadHandle()
		s.mu.Lock()
		delete(s.buffers, uint64(buf))
		s.mu.Unlock()
		return nil, false
	case cmdBindBufferMemory:
		buf := d.ReadHandle()
		mem := d.ReadHandle()
		offset := d.ReadUint64()
		s.mu.Lock()
		if info, ok := s.buffers[uint64(buf)]; ok {
			info.memory = uint64(mem)
			info.memoryBound = true
			info.memoryOffset = offset
		}
		s.mu.Unlock()
		return nil, false
	case cmdGetBufferMemoryRequirements:
		buf := d.ReadHandle()
		s.mu.Lock()
		info := s.buffers[uint64(buf)]
		s.mu.Unlock()
		var size uint64 = 256
		if info != nil {
			size = info.size
		}
		e.WriteUint64(size)
		e.WriteUint64(256)
		e.WriteUint32(0x7)
	case cmdCreateFence:
		device := d.ReadHandle()
		signaled := d.ReadUint32() != 0
		e.WriteUint64(s.dispatch.CreateFence(uint64(device), signaled))
	case cmdDestroyFence:
		fence := d.ReadHandle()
		s.dispatch.DestroyFence(uint64(fence))
		return nil, false
	case cmdGetFenceStatus:
		fence := d.ReadHandle()
		e.WriteInt32(int32(s.dispatch.FenceStatus(uint64(fence))))
	case cmdResetFences:
		fences := codec.ReadCountedArray(d, func(d *codec.Decoder) uint64 { return uint64(d.ReadHandle()) })
		e.WriteInt32(int32(s.dispatch.ResetFences(fences)))
	case cmdWaitForFences:
		d.ReadHandle()
		fences := codec.ReadCountedArray(d, func(d *codec.Decoder) uint64 { return uint64(d.ReadHandle()) })
		waitAll := d.ReadUint32() != 0
		d.ReadUint64()
		e.WriteInt32(int32(s.dispatch.WaitForFences(fences, waitAll)))
	case cmdCreateCommandPool:
		d.ReadHandle()
		d.ReadUint32()
		d.ReadUint32()
		e.WriteUint64(s.allocID())
	case cmdAllocateCommandBuffers:
		d.ReadHandle()
		d.ReadUint32()
		count := d.ReadUint32()
		ids := make([]uint64, count)
		for i := range ids {
			ids[i] = s.allocID()
		}
		codec.WriteCountedArray(e, ids, func(e *codec.Encoder, v uint64) { e.WriteUint64(v) })
	case cmdQueueSubmit:
		d.ReadHandle()
		codec.ReadCountedArray(d, func(d *codec.Decoder) uint64 { return uint64(d.ReadHandle()) })
		fence := d.ReadUint64()
		ops := codec.ReadCountedArray(d, decodeRecordedOp)
		if !d.Fatal() {
			s.execute(ops)
		}
		if fence != 0 {
			s.dispatch.SignalFence(fence)
		}
		e.WriteInt32(0)
	case cmdDeviceWaitIdle:
		d.ReadHandle()
		e.WriteInt32(0)
	case wire.CommandTransferMemoryData:
		req := wire.DecodeTransferMemoryDataRequest(d)
		s.push(req.MemoryHandle, req.Offset, req.Data)
		return nil, false
	case wire.CommandReadMemoryData:
		req := wire.DecodeReadMemoryDataRequest(d)
		data := s.pull(req.MemoryHandle, req.Offset, req.Size)
		wire.ReadMemoryDataReply{Result: 0, Data: data}.Encode(e)
	default:
		log.Printf("vpls server: unknown command type %d", header.CommandType)
		return nil, false
	}

	if d.Fatal() {
		log.Printf("vpls server: decode error on command type %d", header.CommandType)
		return nil, false
	}
	return append([]byte(nil), e.Bytes()...), true
}

// encodePhysicalDeviceProperties writes the one fake GPU's property
// table in GetPhysicalDeviceProperties's reply shape (spec.md §4.5).
func (s *session) encodePhysicalDeviceProperties(e *codec.Encoder) {
	props := fakegpu.Properties(physicalDeviceIdentity)
	e.WriteString(props.DeviceName, 256)
	e.WriteUint32(props.APIVersion)
	e.WriteUint32(props.DriverVersion)
	e.WriteUint32(props.VendorID)
	e.WriteUint32(props.DeviceID)
	e.WriteUint32(props.MaxImageDimension2D)
	e.WriteUint32(props.HeapCount())
	e.WriteUint32(props.TypeCount())
	e.WriteUint32(props.QueueFamilyCount())
}

// execute replays a QueueSubmit's recorded vkCmdCopyBuffer/vkCmdFillBuffer
// ops against the session's memory store, in the program order the
// client flattened them into (spec.md §8 scenario 5). An op whose
// buffer has no bound memory is silently skipped — the client-side
// tracker already refuses to bind-exclusive-violate this, so it can
// only happen if a buffer was never bound.
func (s *session) execute(ops []recordedOp) {
	for _, op := range ops {
		switch op.kind {
		case opCopyBuffer:
			s.copyBuffer(op.src, op.srcOffset, op.dst, op.dstOffset, op.size)
		case opFillBuffer:
			s.fillBuffer(op.dst, op.dstOffset, op.size, op.fillData)
		}
	}
}

// bufferAbsoluteOffset resolves a buffer identity + buffer-relative
// offset into the (memory identity, memory-relative offset) pair the
// push/pull helpers operate on.
func (s *session) bufferAbsoluteOffset(buf, relOffset uint64) (mem, abs uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, exists := s.buffers[buf]
	if !exists || !info.memoryBound {
		return 0, 0, false
	}
	return info.memory, info.memoryOffset + relOffset, true
}

func (s *session) copyBuffer(src, srcOffset, dst, dstOffset, size uint64) {
	srcMem, srcAbs, ok := s.bufferAbsoluteOffset(src, srcOffset)
	if !ok {
		return
	}
	dstMem, dstAbs, ok := s.bufferAbsoluteOffset(dst, dstOffset)
	if !ok {
		return
	}
	s.push(dstMem, dstAbs, s.pull(srcMem, srcAbs, size))
}

func (s *session) fillBuffer(dst, offset, size uint64, data uint32) {
	mem, abs, ok := s.bufferAbsoluteOffset(dst, offset)
	if !ok {
		return
	}
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], data)
	pattern := make([]byte, size)
	for i := range pattern {
		pattern[i] = word[i%4]
	}
	s.push(mem, abs, pattern)
}

func (s *session) push(mem, offset uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.memories[mem]
	needed := int(offset) + len(data)
	if len(buf) < needed {
		grown := make([]byte, needed)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], data)
	s.memories[mem] = buf
}

func (s *session) pull(mem, offset, size uint64) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.memories[mem]
	out := make([]byte, size)
	if offset+size <= uint64(len(buf)) {
		copy(out, buf[offset:offset+size])
	}
	return out
}
