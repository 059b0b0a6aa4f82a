package vkr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDevice creates a headless device, skipping when no vulkan
// implementation is available on the host.
func testDevice(t *testing.T) *Device {
	t.Helper()
	if err := Init(); err != nil {
		t.Skipf("vulkan loader unavailable: %v", err)
	}

	app := &App{Name: "vkr-test"}
	instance, err := app.CreateInstance()
	if err != nil {
		t.Skipf("cannot create instance: %v", err)
	}

	adapters, err := instance.Adapters()
	if err != nil || len(adapters) == 0 {
		instance.Destroy()
		t.Skip("no vulkan adapters present")
	}

	device, err := adapters[0].CreateDevice(&DeviceOptions{})
	require.NoError(t, err)

	t.Cleanup(func() {
		device.Destroy()
		instance.Destroy()
	})
	return device
}

func TestSubmitDetachesPendingRecording(t *testing.T) {
	// Submission takes the recording out of device state before ending it;
	// a failed native submit must not leave it behind, or the next tick
	// would end an already ended command buffer.
	d := &Device{}

	_, ok := d.takePendingLocked()
	assert.False(t, ok)

	rec := commandRecording{}
	d.pending = &rec
	_, ok = d.takePendingLocked()
	require.True(t, ok)
	assert.Nil(t, d.pending)

	_, ok = d.takePendingLocked()
	assert.False(t, ok, "a recording can only be taken once")
}

func TestDeviceTickAdvancesWhenIdle(t *testing.T) {
	d := testDevice(t)

	before := d.LastCompletedSerial()
	d.Tick()
	after := d.LastCompletedSerial()

	assert.Greater(t, uint64(after), uint64(before),
		"an idle tick must advance the completed serial so deferred work retires")
	assert.Equal(t, d.LastSubmittedSerial(), after)
}

func TestFenceSignalsAfterSubmit(t *testing.T) {
	d := testDevice(t)
	q := d.Queue()

	fence := q.CreateFence()
	require.NoError(t, q.Submit())
	require.NoError(t, fence.Wait(5*time.Second))

	fence.Reset()
	require.NoError(t, q.Submit())
	require.NoError(t, fence.Wait(5*time.Second))
}

func TestBufferSetSubDataRoundTrip(t *testing.T) {
	d := testDevice(t)
	q := d.Queue()

	buffer, err := d.CreateBuffer(&BufferDescriptor{
		Size:  16,
		Usage: BufferUsageTransferDst | BufferUsageMapRead,
	})
	require.NoError(t, err)
	defer buffer.Release()

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	require.NoError(t, buffer.SetSubData(0, want))

	fence := q.CreateFence()
	require.NoError(t, q.Submit())
	require.NoError(t, fence.Wait(5*time.Second))

	got, err := buffer.MapRead()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBufferSetSubDataFullLimit(t *testing.T) {
	d := testDevice(t)
	q := d.Queue()

	buffer, err := d.CreateBuffer(&BufferDescriptor{
		Size:  setSubDataMaxSize,
		Usage: BufferUsageTransferDst | BufferUsageMapRead,
	})
	require.NoError(t, err)
	defer buffer.Release()

	// a full 64 KiB update is within the inline limit
	want := make([]byte, setSubDataMaxSize)
	for i := range want {
		want[i] = byte(i)
	}
	require.NoError(t, buffer.SetSubData(0, want))

	fence := q.CreateFence()
	require.NoError(t, q.Submit())
	require.NoError(t, fence.Wait(5*time.Second))

	got, err := buffer.MapRead()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCopyBufferToBuffer(t *testing.T) {
	d := testDevice(t)
	q := d.Queue()

	src, mapped, err := d.CreateBufferMapped(&BufferDescriptor{
		Size:  8,
		Usage: BufferUsageTransferSrc,
	})
	require.NoError(t, err)
	defer src.Release()
	copy(mapped, []byte{9, 8, 7, 6, 5, 4, 3, 2})

	dst, err := d.CreateBuffer(&BufferDescriptor{
		Size:  8,
		Usage: BufferUsageTransferDst | BufferUsageMapRead,
	})
	require.NoError(t, err)
	defer dst.Release()

	e := d.CreateCommandEncoder()
	require.NoError(t, e.CopyBufferToBuffer(src, 0, dst, 0, 8))
	cb, err := e.Finish()
	require.NoError(t, err)

	require.NoError(t, q.Submit(cb))

	// a fence guards work submitted before its creation
	fence := q.CreateFence()
	require.NoError(t, fence.Wait(5*time.Second))

	got, err := dst.MapRead()
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7, 6, 5, 4, 3, 2}, got)
}

func TestReleasedBufferDeferredUntilComplete(t *testing.T) {
	d := testDevice(t)
	q := d.Queue()

	buffer, err := d.CreateBuffer(&BufferDescriptor{
		Size:  64,
		Usage: BufferUsageTransferDst,
	})
	require.NoError(t, err)

	require.NoError(t, buffer.SetSubData(0, make([]byte, 64)))
	buffer.Release()

	// the pending submission still references the buffer; draining the
	// queue must not fault
	fence := q.CreateFence()
	require.NoError(t, q.Submit())
	require.NoError(t, fence.Wait(5*time.Second))
	require.NoError(t, d.WaitIdle())
}
