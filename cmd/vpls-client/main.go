// Command vpls-client dials a vpls-server and drives it through the
// same call sequence spec.md §8's end-to-end scenarios name: instance
// version, enumerate/create, a buffer bind/unbind round trip, and a
// mapped-memory write/flush/read-back. It exists as a smoke-test
// harness, not a real ICD entry point (see internal/vkmirror's package
// doc for why the dispatch-table surface itself is out of scope).
package main

import (
	"flag"
	"log"

	"github.com/venusplus/vpls/internal/transport"
	"github.com/venusplus/vpls/internal/vkmirror"
)

func main() {
	addr := flag.String("connect", "127.0.0.1:5556", "vpls-server address to connect to")
	flag.Parse()

	t, err := transport.DialTCP(*addr)
	if err != nil {
		log.Fatalf("vpls-client: dial %s: %v", *addr, err)
	}
	defer t.Close()

	d := vkmirror.NewDriver(t)
	log.Printf("vpls-client: session %s connected to %s", d.SessionID, *addr)

	version, err := d.EnumerateInstanceVersion()
	if err != nil {
		log.Fatalf("vpls-client: enumerate instance version: %v", err)
	}
	log.Printf("vpls-client: server reports API version %#08x", version)

	instance, err := d.CreateInstance(nil)
	if err != nil {
		log.Fatalf("vpls-client: create instance: %v", err)
	}
	defer d.DestroyInstance(instance)

	phys, err := d.EnumeratePhysicalDevices(instance)
	if err != nil {
		log.Fatalf("vpls-client: enumerate physical devices: %v", err)
	}
	if len(phys) == 0 {
		log.Fatal("vpls-client: server reported no physical devices")
	}

	props, err := d.GetPhysicalDeviceProperties(phys[0])
	if err != nil {
		log.Fatalf("vpls-client: get physical device properties: %v", err)
	}
	log.Printf("vpls-client: physical device %q, %d memory heaps, %d queue families",
		props.DeviceName, props.MemoryHeapCount, props.QueueFamilyCount)

	device, err := d.CreateDevice(phys[0], nil)
	if err != nil {
		log.Fatalf("vpls-client: create device: %v", err)
	}
	defer d.DestroyDevice(device)

	const bufSize = 4096
	mem, err := d.AllocateMemory(device, bufSize, 1)
	if err != nil {
		log.Fatalf("vpls-client: allocate memory: %v", err)
	}
	buf, err := d.CreateBuffer(device, bufSize, 0x3)
	if err != nil {
		log.Fatalf("vpls-client: create buffer: %v", err)
	}
	if err := d.BindBufferMemory(buf, mem, 0); err != nil {
		log.Fatalf("vpls-client: bind buffer memory: %v", err)
	}

	data, err := d.Shadow().Map(device, mem, 0, bufSize, true)
	if err != nil {
		log.Fatalf("vpls-client: map memory: %v", err)
	}
	copy(data, "vpls smoke test payload")
	if err := d.Shadow().Unmap(mem); err != nil {
		log.Fatalf("vpls-client: unmap memory: %v", err)
	}

	readBack, err := d.Pull(mem, 0, bufSize)
	if err != nil {
		log.Fatalf("vpls-client: pull memory: %v", err)
	}
	log.Printf("vpls-client: read back %q", string(readBack[:len("vpls smoke test payload")]))

	if err := d.DeviceWaitIdle(device); err != nil {
		log.Fatalf("vpls-client: device wait idle: %v", err)
	}
	log.Print("vpls-client: smoke test complete")
}
