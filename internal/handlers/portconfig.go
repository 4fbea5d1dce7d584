package handlers

// Port is a logical user-facing port identifier.
type Port int

const (
	PortF0 Port = iota
	PortF1
	PortF2
	PortF3
)

// CLIOffset is the switch controller's base register offset for a
// logical port: f0..f3 map to controller port offsets 0x40, 0x30,
// 0x20, 0x10 respectively, the same offsets I2CPortOffset gives
// port1..port4.
func (p Port) CLIOffset() byte {
	switch p {
	case PortF0:
		return 0x40
	case PortF1:
		return 0x30
	case PortF2:
		return 0x20
	case PortF3:
		return 0x10
	default:
		return 0
	}
}

// I2CPortOffset is the controller base offset for the I²C per-port code
// blocks: port1->0x40, port2->0x30, port3->0x20, port4->0x10 (see
// DESIGN.md's OQ4: inferred from code 0x11 "port 1 off" programming
// the port mapped to 0x40; blocks are declared 0x10-0x1F/0x20-0x2F/
// 0x30-0x3F/0x40-0x4F for port1..port4 respectively). portN and
// f(N-1) resolve to the same offset.
func I2CPortOffset(portNumber int) byte {
	switch portNumber {
	case 1:
		return 0x40
	case 2:
		return 0x30
	case 3:
		return 0x20
	case 4:
		return 0x10
	default:
		return 0
	}
}

// ExpansionPortOffset is the fifth (uplink/expansion) port's base
// register offset, the lowest in the address space below the four
// user ports.
const ExpansionPortOffset byte = 0x00

// UserPortOffsets lists all four user-port offsets in controller
// declared order, used by set-port-vlan's "scan the other three user
// ports".
var UserPortOffsets = []byte{0x10, 0x20, 0x30, 0x40}

// PortConfigValue names one masked register value with its human name.
type PortConfigValue struct {
	MaskedValue byte
	Name        string
}

// PortConfigOption is one bitmask-gated rendering rule within a
// PortConfigMapping.
type PortConfigOption struct {
	Bitmask     byte
	Description string
	Values      []PortConfigValue
}

// PortConfigMapping is a read-only rendering description of one
// register's bit fields, used by `port fN status` / `system status`
// purely for rendering device state, never for programming it.
type PortConfigMapping struct {
	BaseRegisterOffset byte
	Title              string
	Options            []PortConfigOption
}

// Render formats regValue according to mapping's options, one line per
// option whose bits are non-zero or whose zero value has an explicit
// name.
func (m PortConfigMapping) Render(regValue byte) []string {
	lines := make([]string, 0, len(m.Options)+1)
	lines = append(lines, m.Title+":")
	for _, opt := range m.Options {
		masked := regValue & opt.Bitmask
		name := "unknown"
		for _, v := range opt.Values {
			if v.MaskedValue == masked {
				name = v.Name
				break
			}
		}
		lines = append(lines, "  "+opt.Description+": "+name)
	}
	return lines
}

// StandardPortMappings are the read-only rendering tables for
// `port fN status`: link/speed/duplex status and port control flags.
// Register offsets are relative to the port's base offset.
var StandardPortMappings = []PortConfigMapping{
	{
		BaseRegisterOffset: 0x00, // status-1
		Title:              "Link Status",
		Options: []PortConfigOption{
			{Bitmask: 0x20, Description: "link", Values: []PortConfigValue{
				{MaskedValue: 0x00, Name: "down"},
				{MaskedValue: 0x20, Name: "up"},
			}},
			{Bitmask: 0x04, Description: "duplex", Values: []PortConfigValue{
				{MaskedValue: 0x00, Name: "half"},
				{MaskedValue: 0x04, Name: "full"},
			}},
			{Bitmask: 0x02, Description: "speed", Values: []PortConfigValue{
				{MaskedValue: 0x00, Name: "10BT"},
				{MaskedValue: 0x02, Name: "100BT"},
			}},
		},
	},
	{
		BaseRegisterOffset: 0x06, // port-control-6
		Title:              "Port Control",
		Options: []PortConfigOption{
			{Bitmask: 0x08, Description: "power (off bit)", Values: []PortConfigValue{
				{MaskedValue: 0x00, Name: "enabled"},
				{MaskedValue: 0x08, Name: "disabled"},
			}},
		},
	},
}
