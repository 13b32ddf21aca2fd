package content

import "errors"

// ErrNoSnapshot is what readiness reports before any snapshot (seed or
// bundle) has been installed.
var ErrNoSnapshot = errors.New("content: no active snapshot")

// ReadyErr satisfies probe.Func: the server is ready once any snapshot is
// active, seed or bundle.
func (m *Manager) ReadyErr() error {
	if _, ok := m.Get(); !ok {
		return ErrNoSnapshot
	}
	return nil
}
