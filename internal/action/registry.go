package action

import (
	"github.com/pkg/errors"

	"sagittarius-zk/internal/zk"
)

// Registry maps each action kind to its program identity. It is filled once
// at startup and never changes.
type Registry struct {
	ids [numKinds]zk.ProgramID
}

// NewRegistry requires an identity for every kind, all distinct.
func NewRegistry(ids map[Kind]zk.ProgramID) (*Registry, error) {
	r := &Registry{}
	seen := make(map[zk.ProgramID]Kind, numKinds)
	for _, k := range Kinds() {
		id, ok := ids[k]
		if !ok {
			return nil, errors.Errorf("no program for %s", k)
		}
		if prev, dup := seen[id]; dup {
			return nil, errors.Errorf("%s and %s share program %s", prev, k, id)
		}
		seen[id] = k
		r.ids[k] = id
	}
	return r, nil
}

// RegistryFrom reads the identities a proving system established.
func RegistryFrom(sys interface {
	ID(name string) (zk.ProgramID, bool)
}) (*Registry, error) {
	ids := make(map[Kind]zk.ProgramID, numKinds)
	for _, k := range Kinds() {
		if id, ok := sys.ID(k.String()); ok {
			ids[k] = id
		}
	}
	return NewRegistry(ids)
}

func (r *Registry) ID(k Kind) (zk.ProgramID, error) {
	if k >= numKinds {
		return zk.ProgramID{}, errors.Errorf("unknown action %s", k)
	}
	return r.ids[k], nil
}

// Kind is the reverse lookup of ID.
func (r *Registry) Kind(id zk.ProgramID) (Kind, bool) {
	for k, v := range r.ids {
		if v == id {
			return Kind(k), true
		}
	}
	return 0, false
}
