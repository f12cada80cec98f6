package hardware

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
)

// Serial bridge commands. Every command except 'R' and 'S' is answered with
// a single bridgeAck byte.
const (
	bridgeRead   = 'R' // addr16 -> val
	bridgeWrite  = 'W' // addr16 val
	bridgeBlock  = 'B' // addr32 len32 data
	bridgeSample = 'S' // len32 -> data
	bridgeBufAcc = 'C' // index val
	bridgeAck    = 'K'

	serialBaud        = 921600
	serialReadTimeout = 2 * time.Second
)

// SerialConn talks to a scanner through a microcontroller bridge that
// exposes the register and bulk interface over a serial port.
type SerialConn struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	name string
}

// OpenSerial opens a bridge on a serial device such as /dev/ttyACM0.
func OpenSerial(device string) (*SerialConn, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: serialBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, models.ErrTransport("serial: open "+device, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, models.ErrTransport("serial: set timeout", err)
	}
	slog.Info("serial: bridge opened", "device", device, "baud", serialBaud)
	return NewSerialConn(port, device), nil
}

// NewSerialConn runs the bridge protocol over an already opened port.
func NewSerialConn(port io.ReadWriteCloser, name string) *SerialConn {
	return &SerialConn{port: port, name: name}
}

// exchange writes a command and reads n reply bytes. Callers hold mu.
func (c *SerialConn) exchange(cmd []byte, n int) ([]byte, error) {
	if _, err := c.port.Write(cmd); err != nil {
		return nil, err
	}
	reply := make([]byte, n)
	if _, err := io.ReadFull(c.port, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *SerialConn) command(op string, cmd []byte) error {
	reply, err := c.exchange(cmd, 1)
	if err != nil {
		return models.ErrTransport("serial: "+op, err)
	}
	if reply[0] != bridgeAck {
		return models.ErrTransport("serial: "+op, fmt.Errorf("unexpected reply 0x%02x", reply[0]))
	}
	return nil
}

func (c *SerialConn) ReadRegister(ctx context.Context, reg Register) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := []byte{bridgeRead, 0, 0}
	binary.LittleEndian.PutUint16(cmd[1:], reg)
	reply, err := c.exchange(cmd, 1)
	if err != nil {
		return 0, models.ErrTransport(fmt.Sprintf("serial: read register 0x%02x", reg), err)
	}
	return reply[0], nil
}

func (c *SerialConn) WriteRegister(ctx context.Context, reg Register, val byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := []byte{bridgeWrite, 0, 0, val}
	binary.LittleEndian.PutUint16(cmd[1:], reg)
	return c.command(fmt.Sprintf("write register 0x%02x", reg), cmd)
}

func (c *SerialConn) WriteRegisters(ctx context.Context, pairs []registers.Pair) error {
	for _, p := range pairs {
		if err := c.WriteRegister(ctx, p.Addr, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func (c *SerialConn) WriteBlock(ctx context.Context, addr uint32, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := make([]byte, 9, 9+len(data))
	cmd[0] = bridgeBlock
	binary.LittleEndian.PutUint32(cmd[1:], addr)
	binary.LittleEndian.PutUint32(cmd[5:], uint32(len(data)))
	cmd = append(cmd, data...)
	return c.command(fmt.Sprintf("write block 0x%08x", addr), cmd)
}

func (c *SerialConn) WriteBufferAccess(ctx context.Context, index, val byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command(fmt.Sprintf("buffer access 0x%02x", index), []byte{bridgeBufAcc, index, val})
}

func (c *SerialConn) ReadSamples(ctx context.Context, n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := make([]byte, 5)
	cmd[0] = bridgeSample
	binary.LittleEndian.PutUint32(cmd[1:], uint32(n))
	data, err := c.exchange(cmd, n)
	if err != nil {
		return nil, models.ErrTransport("serial: read samples", err)
	}
	return data, nil
}

func (c *SerialConn) Sleep(ctx context.Context, d time.Duration) { sleepCtx(ctx, d) }

func (c *SerialConn) IsMock() bool { return false }

func (c *SerialConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port.Close()
}
