package cli

import (
	"fmt"

	"switchfw/internal/eventlog"
	"switchfw/internal/hal"
	"switchfw/internal/handlers"
	"switchfw/internal/i2cproto"
	"switchfw/internal/persistence"
	"switchfw/internal/sysstate"
)

// Deps bundles every collaborator the command tree's handler closures
// need. Session is filled in by the caller after both the tree and the
// Session exist (NewSession needs the finished root node, and the
// tree's admin/config commands need a console to render through), so
// closures read d.Session lazily rather than capturing it directly.
type Deps struct {
	Controller *hal.Controller
	EEPROM     *hal.EEPROM
	Engine     *persistence.Engine
	State      *sysstate.State
	Flags      *sysstate.Flags
	Logger     *eventlog.Logger
	Registry   *handlers.Registry
	Session    *Session
}

// console returns d.Session as a handlers.ConsoleWriter, or nil before
// the session has been wired in (progress handles tolerate a nil
// console and simply skip rendering).
func (d *Deps) console() handlers.ConsoleWriter {
	if d.Session == nil {
		return nil
	}
	return d.Session
}

func (d *Deps) writeLine(s string) {
	if d.Session == nil {
		return
	}
	_ = d.Session.WriteString("\r\n" + s + "\r\n")
}

// BuildRootMenu wires the full command tree: the port/controller/
// system/config/admin/logout top-level menus. Each
// leaf's Handler is a closure over d so Deps.Registry can also be used
// to share the same bodies with internal/i2cproto (RegisterSharedI2C).
func BuildRootMenu(d *Deps) *Node {
	root := &Node{
		Text: "root",
		Children: []*Node{
			buildPortMenu(d),
			buildControllerMenu(d),
			buildSystemMenu(d),
			buildConfigMenu(d),
			buildAdminMenu(d),
			{
				Text:       "logout",
				Help:       "end the session",
				IsTerminal: true,
				Handler: func(params []byte) bool {
					d.State.Logout()
					if d.Logger != nil {
						d.Logger.Enqueue(eventlog.CodeUserLoggedOut)
					}
					return true
				},
				RequiredPermission: sysstate.RoleReadOnly,
			},
		},
	}
	return root
}

var portNames = []struct {
	text   string
	offset byte
}{
	{"f0", handlers.PortF0.CLIOffset()},
	{"f1", handlers.PortF1.CLIOffset()},
	{"f2", handlers.PortF2.CLIOffset()},
	{"f3", handlers.PortF3.CLIOffset()},
}

func buildPortMenu(d *Deps) *Node {
	menu := &Node{Text: "port", Help: "per-port configuration"}
	for _, p := range portNames {
		menu.Children = append(menu.Children, buildOnePortMenu(d, p.text, p.offset))
	}
	return menu
}

const (
	regPortControl2 byte = 0x02 // auto-neg/auto-mdix, TX/RX and storm-control bits
	regPortControl6 byte = 0x06 // power-down (port off) bit
	bitPortDisable  byte = 0x08
	bitTXDisable    byte = 0x02
	bitRXDisable    byte = 0x01
	bitAutoNegEnable  byte = 0x80
	bitAutoMDIXEnable byte = 0x40
	bitForceMDI       byte = 0x20
	bitBroadcastStorm byte = 0x04
)

func buildOnePortMenu(d *Deps, text string, offset byte) *Node {
	reg2 := offset + regPortControl2
	reg6 := offset + regPortControl6
	return &Node{
		Text: text,
		Help: "port " + text,
		Children: []*Node{
			terminalCmd("enable", sysstate.RoleModifyPorts, func(params []byte) bool {
				return errOK(handlers.ClearBit(d.Controller, reg6, bitPortDisable))
			}),
			terminalCmd("disable", sysstate.RoleModifyPorts, func(params []byte) bool {
				return errOK(handlers.SetBit(d.Controller, reg6, bitPortDisable))
			}),
			{
				Text: "vlan", RequiredPermission: sysstate.RoleModifyPorts,
				Children: []*Node{
					terminalCmd("enable", sysstate.RoleModifyPorts, func(params []byte) bool {
						return errOK(handlers.SetVLANTagInsertion(d.Controller, offset, true))
					}),
					terminalCmd("disable", sysstate.RoleModifyPorts, func(params []byte) bool {
						return errOK(handlers.SetVLANTagInsertion(d.Controller, offset, false))
					}),
					{
						Text: "add", RequiredPermission: sysstate.RoleModifyPorts,
						Children: []*Node{
							{
								Text: "<id>", UserProvidesParams: true, ParamsRequired: 2, IsTerminal: true,
								RequiredPermission: sysstate.RoleModifyPorts,
								Handler: func(params []byte) bool {
									vlanID := bytesToInt(params)
									if err := handlers.AddPortToVLAN(d.Controller, d.EEPROM, offset, vlanID); err != nil {
										d.writeLine(err.Error())
										return false
									}
									return true
								},
							},
						},
					},
					{
						Text: "<id>", UserProvidesParams: true, ParamsRequired: 2, IsTerminal: true,
						RequiredPermission: sysstate.RoleModifyPorts,
						Handler: func(params []byte) bool {
							vlanID := bytesToInt(params)
							mask, err := handlers.SetPortVLAN(d.Controller, offset, vlanID)
							if err != nil {
								d.writeLine(err.Error())
								return false
							}
							d.writeLine(fmt.Sprintf("assertion mask: %#02x", mask))
							return true
						},
					},
				},
			},
			{
				Text: "speed", RequiredPermission: sysstate.RoleModifyPorts,
				Children: []*Node{
					terminalCmd("10", sysstate.RoleModifyPorts, func(params []byte) bool {
						return errOK(handlers.ClearBit(d.Controller, reg2, 0x02))
					}),
					terminalCmd("100", sysstate.RoleModifyPorts, func(params []byte) bool {
						return errOK(handlers.SetBit(d.Controller, reg2, 0x02))
					}),
				},
			},
			terminalCmd("status", sysstate.RoleReadOnly, func(params []byte) bool {
				for _, mapping := range handlers.StandardPortMappings {
					v, err := d.Controller.CtrlRead(offset + mapping.BaseRegisterOffset)
					if err != nil {
						d.writeLine(err.Error())
						return false
					}
					for _, line := range mapping.Render(v) {
						d.writeLine(line)
					}
				}
				return true
			}),
			{
				Text: "broadcast-storm", RequiredPermission: sysstate.RoleModifyPorts,
				Children: []*Node{
					terminalCmd("enable", sysstate.RoleModifyPorts, func(params []byte) bool {
						return errOK(handlers.SetBit(d.Controller, reg2, bitBroadcastStorm))
					}),
					terminalCmd("disable", sysstate.RoleModifyPorts, func(params []byte) bool {
						return errOK(handlers.ClearBit(d.Controller, reg2, bitBroadcastStorm))
					}),
				},
			},
			{
				Text: "sniff-state", RequiredPermission: sysstate.RoleModifySystem,
				Children: []*Node{
					terminalCmd("disable", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.DisableSniffer(d.Controller))
					}),
					terminalCmd("designate", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.DesignateSniffer(d.Controller, offset))
					}),
					{
						Text: "sniff-tx", RequiredPermission: sysstate.RoleModifySystem,
						Children: []*Node{
							{
								Text: "<ports>", UserProvidesParams: true, ParamsRequired: 1, IsTerminal: true,
								RequiredPermission: sysstate.RoleModifySystem,
								Handler: func(params []byte) bool {
									return errOK(handlers.SetSniffTXSources(d.Controller, byte(bytesToInt(params))))
								},
							},
						},
					},
					{
						Text: "sniff-rx", RequiredPermission: sysstate.RoleModifySystem,
						Children: []*Node{
							{
								Text: "<ports>", UserProvidesParams: true, ParamsRequired: 1, IsTerminal: true,
								RequiredPermission: sysstate.RoleModifySystem,
								Handler: func(params []byte) bool {
									return errOK(handlers.SetSniffRXSources(d.Controller, byte(bytesToInt(params))))
								},
							},
						},
					},
				},
			},
			terminalCmd("toggle-tx", sysstate.RoleModifyPorts, func(params []byte) bool {
				return errOK(toggleBit(d.Controller, reg2, bitTXDisable))
			}),
			terminalCmd("toggle-rx", sysstate.RoleModifyPorts, func(params []byte) bool {
				return errOK(toggleBit(d.Controller, reg2, bitRXDisable))
			}),
			terminalCmd("run-diag", sysstate.RoleModifyPorts, func(params []byte) bool {
				res, err := handlers.RunLinkMD(d.Controller, offset)
				if err != nil {
					d.writeLine(err.Error())
					return false
				}
				d.writeLine(fmt.Sprintf("cable state: %s, distance: %dm", res.State, res.Distance))
				return true
			}),
			terminalCmd("auto-neg", sysstate.RoleModifyPorts, func(params []byte) bool {
				return errOK(handlers.SetBit(d.Controller, reg2, bitAutoNegEnable))
			}),
			terminalCmd("restart-auto-neg", sysstate.RoleModifyPorts, func(params []byte) bool {
				return errOK(handlers.SelfClearingBit(d.Controller, reg2, bitAutoNegEnable))
			}),
			terminalCmd("auto-mdix", sysstate.RoleModifyPorts, func(params []byte) bool {
				return errOK(handlers.SetBit(d.Controller, reg2, bitAutoMDIXEnable))
			}),
			terminalCmd("force-mdi", sysstate.RoleModifyPorts, func(params []byte) bool {
				return errOK(handlers.SetBit(d.Controller, reg2, bitForceMDI))
			}),
		},
	}
}

func toggleBit(c *hal.Controller, reg, mask byte) error {
	cur, err := c.CtrlRead(reg)
	if err != nil {
		return err
	}
	if cur&mask != 0 {
		return handlers.ClearBit(c, reg, mask)
	}
	return handlers.SetBit(c, reg, mask)
}

func buildControllerMenu(d *Deps) *Node {
	return &Node{
		Text: "controller", Help: "raw register access",
		Children: []*Node{
			{
				Text: "read-reg", RequiredPermission: sysstate.RoleModifySystem,
				Children: []*Node{
					{
						Text: "<addr>", UserProvidesParams: true, ParamsRequired: 1, IsTerminal: true,
						RequiredPermission: sysstate.RoleModifySystem,
						Handler: func(params []byte) bool {
							if len(params) == 0 {
								return false
							}
							v, err := d.Controller.CtrlRead(params[0])
							if err != nil {
								d.writeLine(err.Error())
								return false
							}
							d.writeLine(fmt.Sprintf("reg %#02x = %#02x", params[0], v))
							return true
						},
					},
				},
			},
			{
				Text: "write-reg", RequiredPermission: sysstate.RoleAdministrator,
				Children: []*Node{
					{
						Text: "<addr>", UserProvidesParams: true, ParamsRequired: 2, IsTerminal: false,
						Children: []*Node{
							{
								Text: "<value>", UserProvidesParams: true, ParamsRequired: 2, IsTerminal: true,
								RequiredPermission: sysstate.RoleAdministrator,
								Handler: func(params []byte) bool {
									if len(params) < 2 {
										return false
									}
									return errOK(d.Controller.CtrlWrite(params[0], params[len(params)-1]))
								},
							},
						},
					},
				},
			},
		},
	}
}

func buildSystemMenu(d *Deps) *Node {
	const (
		regGlobalControl2 byte = 0x01
		bitRapidAging     byte = 0x01
		bitLargePackets   byte = 0x02
		bitPowerSaving    byte = 0x04
		bitLEDMode        byte = 0x08
		bitChipReset      byte = 0x80
	)
	return &Node{
		Text: "system", Help: "system-wide configuration",
		Children: []*Node{
			{Text: "eeprom", Help: "EEPROM raw access", RequiredPermission: sysstate.RoleAdministrator,
				Children: []*Node{
					{
						Text: "read", Children: []*Node{
							{Text: "<addr>", UserProvidesParams: true, ParamsRequired: 1, IsTerminal: true,
								RequiredPermission: sysstate.RoleModifySystem,
								Handler: func(params []byte) bool {
									addr := bytesToInt(params)
									b, err := d.EEPROM.SingleRead(uint32(addr))
									if err != nil {
										d.writeLine(err.Error())
										return false
									}
									d.writeLine(fmt.Sprintf("eeprom[%#x] = %#02x", addr, b))
									return true
								},
							},
						},
					},
				},
			},
			{
				Text: "i2c", Help: "I2C bus status", RequiredPermission: sysstate.RoleReadOnly,
				IsTerminal: true,
				Handler: func(params []byte) bool {
					d.writeLine("i2c: slave active")
					return true
				},
			},
			terminalCmd("status", sysstate.RoleReadOnly, func(params []byte) bool {
				v, err := d.Controller.CtrlRead(regGlobalControl2)
				if err != nil {
					d.writeLine(err.Error())
					return false
				}
				d.writeLine(fmt.Sprintf("global control 2: %#02x", v))
				return true
			}),
			{
				Text: "rapid-link-aging", RequiredPermission: sysstate.RoleModifySystem,
				Children: []*Node{
					terminalCmd("on", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.SetBit(d.Controller, regGlobalControl2, bitRapidAging))
					}),
					terminalCmd("off", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.ClearBit(d.Controller, regGlobalControl2, bitRapidAging))
					}),
				},
			},
			{
				Text: "large-packets", RequiredPermission: sysstate.RoleModifySystem,
				Children: []*Node{
					terminalCmd("on", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.SetBit(d.Controller, regGlobalControl2, bitLargePackets))
					}),
					terminalCmd("off", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.ClearBit(d.Controller, regGlobalControl2, bitLargePackets))
					}),
				},
			},
			{
				Text: "power-saving", RequiredPermission: sysstate.RoleModifySystem,
				Children: []*Node{
					terminalCmd("on", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.SetBit(d.Controller, regGlobalControl2, bitPowerSaving))
					}),
					terminalCmd("off", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.ClearBit(d.Controller, regGlobalControl2, bitPowerSaving))
					}),
				},
			},
			{
				Text: "led-mode", RequiredPermission: sysstate.RoleModifySystem,
				Children: []*Node{
					terminalCmd("link-act", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.ClearBit(d.Controller, regGlobalControl2, bitLEDMode))
					}),
					terminalCmd("speed-duplex", sysstate.RoleModifySystem, func(params []byte) bool {
						return errOK(handlers.SetBit(d.Controller, regGlobalControl2, bitLEDMode))
					}),
				},
			},
			buildShowMenu(d),
			terminalCmd("reset", sysstate.RoleAdministrator, func(params []byte) bool {
				return errOK(handlers.SelfClearingBit(d.Controller, regGlobalControl2, bitChipReset))
			}),
		},
	}
}

func buildShowMenu(d *Deps) *Node {
	return &Node{
		Text: "show", RequiredPermission: sysstate.RoleReadOnly,
		Children: []*Node{
			terminalCmd("vlan-table", sysstate.RoleReadOnly, func(params []byte) bool {
				return showVLANTable(d)
			}),
			terminalCmd("static-mac-table", sysstate.RoleReadOnly, func(params []byte) bool {
				rows, err := handlers.ShowStaticMACTable(d.Controller)
				if err != nil {
					d.writeLine(err.Error())
					return false
				}
				for _, r := range rows {
					d.writeLine(fmt.Sprintf("%d: %s fwd=%#02x", r.Index, r.MAC, r.ForwardingPorts))
				}
				return true
			}),
			terminalCmd("dyn-mac-table", sysstate.RoleReadOnly, func(params []byte) bool {
				rows, err := handlers.ShowDynamicMACTable(d.Controller)
				if err != nil {
					d.writeLine(err.Error())
					return false
				}
				for _, r := range rows {
					d.writeLine(fmt.Sprintf("%d: %s fwd=%#02x", r.Index, r.MAC, r.ForwardingPorts))
				}
				return true
			}),
		},
	}
}

// showVLANTable paginates 10 entries at a time with an N/E prompt,
// reading the interactive gesture directly off the raw UART byte
// stream since it's a single keystroke, not a tokenized line.
func showVLANTable(d *Deps) bool {
	if d.Session == nil {
		return false
	}
	start := 1
	for {
		page, err := handlers.ShowVLANTablePage(d.EEPROM, start)
		if err != nil {
			d.writeLine(err.Error())
			return false
		}
		for _, row := range page.Entries {
			if row.Valid {
				d.writeLine(fmt.Sprintf("vlan %d: membership=%#02x", row.VLANID, row.Membership))
			}
		}
		if !page.HasMore {
			return true
		}
		d.writeLine("N)ext page, E)xit")
		b, err := d.Session.reader.ReadByte()
		if err != nil {
			return false
		}
		if b == 'e' || b == 'E' {
			return true
		}
		start += len(page.Entries)
	}
}

func buildConfigMenu(d *Deps) *Node {
	return &Node{
		Text: "config", Help: "save/delete running configuration",
		Children: []*Node{
			terminalCmd("save", sysstate.RoleAdministrator, func(params []byte) bool {
				progress := handlers.NewProgressHandle("config-save", d.console())
				if err := d.Engine.SaveConfig(progress); err != nil {
					d.writeLine(err.Error())
					return false
				}
				return true
			}),
			terminalCmd("delete", sysstate.RoleAdministrator, func(params []byte) bool {
				return errOK(d.Engine.ClearSavedFlags())
			}),
		},
	}
}

func buildAdminMenu(d *Deps) *Node {
	return &Node{
		Text: "admin", Help: "user and event administration", RequiredPermission: sysstate.RoleAdministrator,
		Children: []*Node{
			{
				Text: "users", IsTerminal: true, RequiredPermission: sysstate.RoleAdministrator,
				Handler: func(params []byte) bool { return runDeleteUsersMenu(d) },
			},
			{
				Text: "events", IsTerminal: true, RequiredPermission: sysstate.RoleAdministrator,
				Handler: func(params []byte) bool { return runEventsMenu(d) },
			},
		},
	}
}

// runDeleteUsersMenu lets an administrator mark occupied slots for
// deletion via a checkbox menu; confirming promotes every marked slot
// through handlers.PromoteUserActions.
func runDeleteUsersMenu(d *Deps) bool {
	if d.Session == nil {
		return false
	}
	all := d.State.AllUsers()
	var labels []string
	var slots []int
	for slot := 0; slot < sysstate.UserSlots; slot++ {
		if all[slot].Empty() {
			continue
		}
		labels = append(labels, all[slot].Username)
		slots = append(slots, slot)
	}
	if len(labels) == 0 {
		d.writeLine("no users configured")
		return true
	}
	menu := NewCheckboxMenu(d.Session, labels)
	confirmed, selected, err := menu.Run()
	if err != nil {
		return false
	}
	if !confirmed {
		return true
	}
	for _, i := range selected {
		u := d.State.User(slots[i])
		u.MarkedFor = sysstate.PendingDelete
		d.State.SetUser(slots[i], u)
	}
	handlers.PromoteUserActions(d.State)
	return true
}

func runEventsMenu(d *Deps) bool {
	if d.Session == nil {
		return false
	}
	flags, _ := d.Logger.Snapshot()
	var labels []string
	var bits []uint
	for bit := uint(0); bit < 6; bit++ {
		labels = append(labels, fmt.Sprintf("category %d", bit))
		bits = append(bits, bit)
	}
	menu := NewCheckboxMenu(d.Session, labels)
	for i, bit := range bits {
		menu.items[i].Selected = flags&(1<<bit) != 0
	}
	confirmed, selected, err := menu.Run()
	if err != nil || !confirmed {
		return confirmed
	}
	var newFlags uint32
	selectedSet := make(map[int]bool, len(selected))
	for _, i := range selected {
		selectedSet[i] = true
	}
	for i, bit := range bits {
		if selectedSet[i] {
			newFlags |= 1 << bit
		}
	}
	_, next := d.Logger.Snapshot()
	d.Logger.Restore(newFlags, next)
	return true
}

// terminalCmd builds a leaf Node in one line.
func terminalCmd(text string, perm sysstate.Role, h Handler) *Node {
	return &Node{Text: text, IsTerminal: true, RequiredPermission: perm, Handler: h}
}

func errOK(err error) bool { return err == nil }

// bytesToInt reinterprets a big-endian parameter-buffer slice as an
// integer (the inverse of cli.appendParam's encoding).
func bytesToInt(b []byte) int {
	n := 0
	for _, c := range b {
		n = n<<8 | int(c)
	}
	return n
}

// RegisterSharedI2C installs the same handler bodies used by the
// command tree above into both reg (for CLI-side reuse and tests) and
// table (the live code table the I²C dispatcher actually looks codes
// up in) so the I²C dispatcher and the CLI converge on one
// implementation for every shared code. A handler registered only
// into reg and never into table is unreachable from the wire: the
// dispatcher drops every transaction whose code isn't in table. Only a
// representative slice of the full command surface is wired here:
// codes 0x10 (port 1 on) and 0x11 (port 1 off); no other code is
// registered.
func RegisterSharedI2C(reg *handlers.Registry, table *i2cproto.CodeTable, ctrl *hal.Controller) {
	portEnable := func(params []byte) byte {
		if err := handlers.ClearBit(ctrl, handlers.I2CPortOffset(1)+regPortControl6, bitPortDisable); err != nil {
			return 0
		}
		return 1
	}
	portDisable := func(params []byte) byte {
		if err := handlers.SetBit(ctrl, handlers.I2CPortOffset(1)+regPortControl6, bitPortDisable); err != nil {
			return 0
		}
		return 1
	}

	reg.RegisterI2C(0x10, portEnable)
	reg.RegisterI2C(0x11, portDisable)

	table.Register(i2cproto.CodeEntry{Code: 0x10, CustomParamCount: 0, ReturnCount: 1, Handler: portEnable})
	table.Register(i2cproto.CodeEntry{Code: 0x11, CustomParamCount: 0, ReturnCount: 1, Handler: portDisable})
}
