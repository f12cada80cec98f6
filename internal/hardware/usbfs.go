//go:build linux

package hardware

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
)

const (
	usbdevfsControl          = 0xC0185500 // USBDEVFS_CONTROL
	usbdevfsBulk             = 0xC0185502 // USBDEVFS_BULK
	usbdevfsClaimInterface   = 0x8004550F // USBDEVFS_CLAIMINTERFACE
	usbdevfsReleaseInterface = 0x80045510 // USBDEVFS_RELEASEINTERFACE

	usbReqTypeOut = 0x40
	usbReqTypeIn  = 0xc0

	usbReqRegister = 0x0c
	usbReqBuffer   = 0x04

	usbValueSetRegister = 0x83
	usbValueGetRegister = 0x8e
	usbValueBuffer      = 0x82
	usbValueBufAccess   = 0x8c

	usbEndpointOut = 0x02
	usbEndpointIn  = 0x81

	usbTimeoutMS   = 5000
	usbBulkChunk   = 0xeff0
	maxCtrlsPerSec = 2000
)

// usbCtrlTransfer mirrors struct usbdevfs_ctrltransfer from linux/usbdevice_fs.h
type usbCtrlTransfer struct {
	reqType uint8
	req     uint8
	value   uint16
	index   uint16
	length  uint16
	timeout uint32
	_pad    uint32 // struct alignment
	data    uintptr
}

// usbBulkTransfer mirrors struct usbdevfs_bulktransfer from linux/usbdevice_fs.h
type usbBulkTransfer struct {
	ep      uint32
	length  uint32
	timeout uint32
	_pad    uint32 // struct alignment
	data    uintptr
}

// USBConn is the real scanner connection, talking to the ASIC through the
// Linux usbfs ioctl interface.
type USBConn struct {
	mu      sync.Mutex
	fd      int
	path    string
	iface   uint32
	limiter *rate.Limiter
}

// NewUSB opens a usbfs device node (e.g. /dev/bus/usb/001/004) and claims
// interface 0.
func NewUSB(path string) (*USBConn, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, models.ErrTransport("usb: open "+path, err)
	}
	c := &USBConn{
		fd:      fd,
		path:    path,
		limiter: rate.NewLimiter(rate.Limit(maxCtrlsPerSec), 16),
	}
	if err := c.ioctl(usbdevfsClaimInterface, unsafe.Pointer(&c.iface)); err != nil {
		unix.Close(fd)
		return nil, models.ErrTransport("usb: claim interface", err)
	}
	slog.Info("usb: scanner opened", "device", path)
	return c, nil
}

func (c *USBConn) ioctl(req uintptr, arg unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), req, uintptr(arg)); errno != 0 {
		return errno
	}
	return nil
}

// control performs one control transfer. Callers hold mu.
func (c *USBConn) control(reqType, req uint8, value, index uint16, data []byte) error {
	if c.fd < 0 {
		return fmt.Errorf("usb: device not open")
	}
	xfer := usbCtrlTransfer{
		reqType: reqType,
		req:     req,
		value:   value,
		index:   index,
		length:  uint16(len(data)),
		timeout: usbTimeoutMS,
	}
	if len(data) > 0 {
		xfer.data = uintptr(unsafe.Pointer(&data[0]))
	}
	return c.ioctl(usbdevfsControl, unsafe.Pointer(&xfer))
}

// bulk performs bulk transfers on ep in chunks. Callers hold mu.
func (c *USBConn) bulk(ep uint32, data []byte) error {
	for off := 0; off < len(data); off += usbBulkChunk {
		chunk := data[off:min(off+usbBulkChunk, len(data))]
		xfer := usbBulkTransfer{
			ep:      ep,
			length:  uint32(len(chunk)),
			timeout: usbTimeoutMS,
			data:    uintptr(unsafe.Pointer(&chunk[0])),
		}
		if err := c.ioctl(usbdevfsBulk, unsafe.Pointer(&xfer)); err != nil {
			return err
		}
	}
	return nil
}

func (c *USBConn) ReadRegister(ctx context.Context, reg Register) (byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := [2]byte{}
	if err := c.control(usbReqTypeIn, usbReqBuffer, usbValueGetRegister, 0x22+(reg<<8), buf[:]); err != nil {
		return 0, models.ErrTransport(fmt.Sprintf("usb: read register 0x%02x", reg), err)
	}
	if buf[1] != 0x55 {
		return 0, models.ErrTransport(fmt.Sprintf("usb: read register 0x%02x", reg),
			fmt.Errorf("invalid acknowledge 0x%02x", buf[1]))
	}
	slog.Debug("usb: read", "reg", fmt.Sprintf("0x%02x", reg), "val", fmt.Sprintf("0x%02x", buf[0]))
	return buf[0], nil
}

func (c *USBConn) WriteRegister(ctx context.Context, reg Register, val byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeRegister(reg, val)
}

func (c *USBConn) writeRegister(reg Register, val byte) error {
	buf := [2]byte{byte(reg), val}
	value := uint16(usbValueSetRegister)
	if reg > 0xff {
		value |= 0x100
	}
	if err := c.control(usbReqTypeOut, usbReqBuffer, value, 0, buf[:]); err != nil {
		return models.ErrTransport(fmt.Sprintf("usb: write register 0x%02x", reg), err)
	}
	slog.Debug("usb: write", "reg", fmt.Sprintf("0x%02x", reg), "val", fmt.Sprintf("0x%02x", val))
	return nil
}

// WriteRegisters writes the image one register at a time; the ASIC has no
// bulk register transfer.
func (c *USBConn) WriteRegisters(ctx context.Context, pairs []registers.Pair) error {
	for _, p := range pairs {
		if err := c.WriteRegister(ctx, p.Addr, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func (c *USBConn) WriteBlock(ctx context.Context, addr uint32, data []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], addr)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(data)))
	if err := c.control(usbReqTypeOut, usbReqBuffer, usbValueBuffer, 0x01, hdr[:]); err != nil {
		return models.ErrTransport(fmt.Sprintf("usb: block header 0x%08x", addr), err)
	}
	if err := c.bulk(usbEndpointOut, data); err != nil {
		return models.ErrTransport(fmt.Sprintf("usb: block write 0x%08x", addr), err)
	}
	return nil
}

func (c *USBConn) WriteBufferAccess(ctx context.Context, index, val byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := [1]byte{val}
	if err := c.control(usbReqTypeOut, usbReqRegister, usbValueBufAccess, uint16(index), buf[:]); err != nil {
		return models.ErrTransport(fmt.Sprintf("usb: buffer access 0x%02x", index), err)
	}
	return nil
}

func (c *USBConn) ReadSamples(ctx context.Context, n int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[4:], uint32(n))
	if err := c.control(usbReqTypeOut, usbReqBuffer, usbValueBuffer, 0x00, hdr[:]); err != nil {
		return nil, models.ErrTransport("usb: sample header", err)
	}
	data := make([]byte, n)
	if err := c.bulk(usbEndpointIn, data); err != nil {
		return nil, models.ErrTransport("usb: sample read", err)
	}
	return data, nil
}

func (c *USBConn) Sleep(ctx context.Context, d time.Duration) { sleepCtx(ctx, d) }

func (c *USBConn) IsMock() bool { return false }

// Close releases the interface and the device node.
func (c *USBConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fd < 0 {
		return nil
	}
	if err := c.ioctl(usbdevfsReleaseInterface, unsafe.Pointer(&c.iface)); err != nil {
		slog.Warn("usb: release interface failed", "device", c.path, "err", err)
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}
