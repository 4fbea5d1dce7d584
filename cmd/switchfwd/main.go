// Command switchfwd is the firmware core's process entry point: it
// wires the HAL devices, boot-restores persisted configuration, starts
// the port monitor and I²C dispatcher tasks, and serves CLI sessions
// over a UART, in the same sequential device-then-task wiring order
// used throughout this module.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"switchfw/internal/cli"
	"switchfw/internal/eventlog"
	"switchfw/internal/hal"
	"switchfw/internal/handlers"
	"switchfw/internal/i2cproto"
	"switchfw/internal/persistence"
	"switchfw/internal/portmon"
	"switchfw/internal/sysstate"
	"switchfw/internal/transport"
	"switchfw/platform/linux"
)

// config holds the flag-parsed command line: a small flat struct fed
// by `flag` rather than a config file parser.
type config struct {
	uartPath string
	uartBaud uint
	i2cPath  string
	spiEEPROM string
	spiController string
	simulate bool
}

func parseConfig() config {
	var c config
	flag.StringVar(&c.uartPath, "uart", "/dev/ttyS0", "UART device node for the CLI console")
	flag.UintVar(&c.uartBaud, "uart-baud", 115200, "UART baud rate")
	flag.StringVar(&c.i2cPath, "i2c-slave", "/dev/i2c-slave-0", "I2C slave device node")
	flag.StringVar(&c.spiEEPROM, "spi-eeprom", "/dev/spidev0.0", "SPI device node for the EEPROM")
	flag.StringVar(&c.spiController, "spi-controller", "/dev/spidev0.1", "SPI device node for the switch controller")
	flag.BoolVar(&c.simulate, "sim", false, "run against in-memory fakes instead of real device nodes")
	flag.Parse()
	return c
}

func main() {
	c := parseConfig()

	// logger is declared before the recover handler below so a panic
	// raised anywhere during boot or while serving sessions can still
	// drain whatever the log queue is holding before the process exits:
	// drain the log queue, then halt.
	var logger *eventlog.Logger

	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Enqueue(eventlog.CodeStackOverflow)
				_ = logger.Drain()
			}
			log.Printf("switchfwd: fatal: %v", r)
			os.Exit(1)
		}
	}()

	eeConn, ctrlConn, uart, i2cDev, closeAll := mustOpenDevices(c)
	defer closeAll()

	logger = eventlog.NewLogger(nil, transport.NewSystemClock(), 256)
	ee := hal.NewEEPROM(eeConn, logger)
	ctrl := hal.NewController(ctrlConn, logger)
	logger.SetWriter(ee)

	state := sysstate.New()
	flags := sysstate.NewFlags(0)
	engine := persistence.NewEngine(ee, ctrl, logger, state, flags)

	if err := engine.BootRestore(persistence.NoProgress); err != nil {
		panic(fmt.Sprintf("boot restore: %v", err))
	}
	logger.SetRunning(true)

	reg := handlers.NewRegistry()
	table := i2cproto.NewCodeTable()
	cli.RegisterSharedI2C(reg, table, ctrl)

	queue := i2cproto.NewPacketQueue(64)
	reassembler := i2cproto.NewReassembler(table, queue)

	deps := &cli.Deps{
		Controller: ctrl,
		EEPROM:     ee,
		Engine:     engine,
		State:      state,
		Flags:      flags,
		Logger:     logger,
		Registry:   reg,
	}
	root := cli.BuildRootMenu(deps)
	session := cli.NewSession(uart, state, root, logger)
	deps.Session = session

	monitor := portmon.NewMonitor(ctrl, logger, state, session)

	stop := make(chan struct{})
	defer close(stop)
	go monitor.Run(stop)
	go runI2CSlave(i2cDev, reassembler, stop)

	dispatcher := i2cproto.NewDispatcher(table, queue, uartBusAdapter{uart})
	go dispatcher.Run(stop)

	if err := session.Run(); err != nil {
		panic(fmt.Sprintf("session: %v", err))
	}
}

// uartBusAdapter lets the I²C dispatcher's response path share the
// same byte sink interface as the UART session's own writes; in the
// real board these are two separate buses, but both reduce to
// "write one byte, return an error", so the same adapter shape (a
// thin struct wrapping a transport.UARTPort) documents the intent
// without inventing a second transport abstraction.
type uartBusAdapter struct {
	port transport.UARTPort
}

func (a uartBusAdapter) WriteByte(b byte) error { return a.port.WriteByte(b) }

func runI2CSlave(dev *linux.I2CSlaveDevice, sink transport.I2CSlaveISR, stop <-chan struct{}) {
	if dev == nil {
		return
	}
	if err := dev.Run(sink, stop); err != nil {
		log.Printf("switchfwd: i2c slave: %v", err)
	}
}

// mustOpenDevices opens every real device node, or substitutes
// in-memory fakes when -sim is set, returning a cleanup func that
// closes whatever was actually opened.
func mustOpenDevices(c config) (eeConn, ctrlConn transport.SPIConn, uart transport.UARTPort, i2cDev *linux.I2CSlaveDevice, closeAll func()) {
	if c.simulate {
		ee := newSimSPI()
		ctrlSim := newSimSPI()
		u := newSimUART()
		return ee, ctrlSim, u, nil, func() {}
	}

	eeDev, err := linux.OpenSPIDevice(c.spiEEPROM)
	if err != nil {
		panic(fmt.Sprintf("open eeprom spi: %v", err))
	}
	ctrlDev, err := linux.OpenSPIDevice(c.spiController)
	if err != nil {
		panic(fmt.Sprintf("open controller spi: %v", err))
	}
	uartDev, err := linux.OpenUART(c.uartPath, uint32(c.uartBaud))
	if err != nil {
		panic(fmt.Sprintf("open uart: %v", err))
	}
	slaveDev, err := linux.OpenI2CSlave(c.i2cPath)
	if err != nil {
		panic(fmt.Sprintf("open i2c slave: %v", err))
	}

	return eeDev, ctrlDev, uartDev, slaveDev, func() {
		eeDev.Close()
		ctrlDev.Close()
		uartDev.Close()
		slaveDev.Close()
	}
}
