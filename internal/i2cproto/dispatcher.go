package i2cproto

import (
	"sync"
	"time"
)

// interByteDelay is the fixed delay honored between response bytes.
const interByteDelay = 2 * time.Millisecond

// BusWriter is the transmit side of the I²C slave, held for the
// request/response pair under Dispatcher's bus token.
type BusWriter interface {
	WriteByte(b byte) error
}

// Dispatcher dequeues reassembled packets, looks them up in the code
// table, and invokes the matching handler, honoring the bus exclusion
// token for the duration of the request/response pair.
type Dispatcher struct {
	table *CodeTable
	queue *PacketQueue
	bus   BusWriter
	busMu sync.Mutex
}

// NewDispatcher wires a Dispatcher against a code table, a packet
// queue, and the bus transmit side.
func NewDispatcher(table *CodeTable, queue *PacketQueue, bus BusWriter) *Dispatcher {
	return &Dispatcher{table: table, queue: queue, bus: bus}
}

// Run drains the packet queue forever; call it as the dispatcher
// task's main loop.
func (d *Dispatcher) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		pkt := d.queue.Take()
		d.handle(pkt)
	}
}

// HandleOne processes a single packet synchronously; exported for
// tests and for a synchronous alternative to Run.
func (d *Dispatcher) HandleOne(pkt Packet) (handled bool) {
	return d.handle(pkt)
}

func (d *Dispatcher) handle(pkt Packet) bool {
	if len(pkt.Buffer) == 0 {
		return false
	}
	code := pkt.Buffer[0]
	entry, ok := d.table.Lookup(code)
	if !ok {
		return false
	}

	params := make([]byte, 0, len(entry.StaticParams)+entry.CustomParamCount)
	params = append(params, entry.StaticParams...)
	if len(pkt.Buffer) > 1 {
		params = append(params, pkt.Buffer[1:]...)
	}

	d.busMu.Lock()
	defer d.busMu.Unlock()

	time.Sleep(interByteDelay)
	if err := d.bus.WriteByte(byte(entry.ReturnCount)); err != nil {
		return false
	}
	var result byte
	if entry.Handler != nil {
		result = entry.Handler(params)
	}
	if entry.ReturnCount == 1 {
		time.Sleep(interByteDelay)
		if err := d.bus.WriteByte(result); err != nil {
			return false
		}
	}
	return true
}
