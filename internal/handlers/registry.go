package handlers

import "switchfw/internal/sysstate"

// Handler is the CLI-side command-body contract: takes the
// accumulated parameter buffer, returns a success bool. Expressed as
// a plain function value rather than a raw function pointer, giving
// the dispatcher a typed callable instead of an untyped code pointer.
type Handler func(params []byte) bool

// I2CHandler is the I²C-side contract: takes a parameter byte array,
// returns one response byte.
type I2CHandler func(params []byte) byte

// Registry holds every named CLI handler and every coded I²C handler,
// shared by internal/cli and internal/i2cproto since both transports
// converge on the same handler set.
type Registry struct {
	cli map[string]Handler
	i2c [256]I2CHandler
}

// NewRegistry returns an empty Registry ready for registration.
func NewRegistry() *Registry {
	return &Registry{cli: make(map[string]Handler)}
}

// RegisterCLI names a handler for lookup by internal/cli.Node.Handler
// wiring at command-tree construction time.
func (r *Registry) RegisterCLI(name string, h Handler) {
	r.cli[name] = h
}

// CLI looks up a named handler.
func (r *Registry) CLI(name string) (Handler, bool) {
	h, ok := r.cli[name]
	return h, ok
}

// RegisterI2C installs a handler at a fixed code-table slot (0-255).
func (r *Registry) RegisterI2C(code byte, h I2CHandler) {
	r.i2c[code] = h
}

// I2C looks up the handler at code, or nil if unregistered --
// unimplemented slots are no-ops, not inferred.
func (r *Registry) I2C(code byte) I2CHandler {
	return r.i2c[code]
}

// PromoteUserActions commits every MarkedFor pending action in the
// user table: Add/Update slots are normalized to PendingNone (their
// field values are already live), Delete slots are vacated outright.
// This is the confirm step of the delete-users/admin-users checkbox
// menus.
func PromoteUserActions(state *sysstate.State) {
	all := state.AllUsers()
	for slot, u := range all {
		switch u.MarkedFor {
		case sysstate.PendingDelete:
			state.ClearUser(slot)
		case sysstate.PendingAdd, sysstate.PendingUpdate:
			u.MarkedFor = sysstate.PendingNone
			state.SetUser(slot, u)
		}
	}
}
