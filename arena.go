/*
Copyright © 2019 the picamr authors.
This file is part of picamr.

picamr is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

picamr is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with picamr.  If not, see <http://www.gnu.org/licenses/>.
*/

package picamr

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spatialmodel/picamr/mesh"
)

// Quantity identifies a mesh field held by a level.
type Quantity int

// Mesh quantities.
const (
	EField Quantity = iota
	BField
	Current
	Charge
	ChargeOld
	EAverage
	BAverage
	// CurrentAverage accumulates the current of a fine level over the
	// subcycles of one parent step.
	CurrentAverage
)

var quantityNames = [...]string{"E", "B", "J", "rho", "rho_old", "Eavg", "Bavg", "Javg"}

func (q Quantity) String() string {
	if q >= 0 && int(q) < len(quantityNames) {
		return quantityNames[q]
	}
	return fmt.Sprintf("Quantity(%d)", int(q))
}

// kind returns the staggering class of q.
func (q Quantity) kind() mesh.Kind {
	switch q {
	case EField, EAverage:
		return mesh.KindE
	case BField, BAverage:
		return mesh.KindB
	case Current, CurrentAverage:
		return mesh.KindJ
	default:
		return mesh.KindRho
	}
}

// vector reports whether q has three components stored as separate
// fields.
func (q Quantity) vector() bool {
	switch q {
	case Charge, ChargeOld:
		return false
	default:
		return true
	}
}

// FieldKey identifies one field in a FieldArena.
type FieldKey struct {
	Level int
	Q     Quantity
	Comp  int
}

func (k FieldKey) String() string {
	if !k.Q.vector() {
		return fmt.Sprintf("%v_lev%d", k.Q, k.Level)
	}
	return fmt.Sprintf("%v%c_lev%d", k.Q, "xyz"[k.Comp], k.Level)
}

// FieldArena owns every mesh field of a simulation. Fields are created
// once per level and dropped together when the level is released.
type FieldArena struct {
	mu     sync.RWMutex
	fields map[FieldKey]*mesh.Field
}

// NewFieldArena returns an empty arena.
func NewFieldArena() *FieldArena {
	return &FieldArena{fields: make(map[FieldKey]*mesh.Field)}
}

// Alloc creates the field for (lev, q, comp) on the cell-centered box
// array ba, converted to the Yee staggering of the quantity. An existing
// field with the same key is replaced.
func (a *FieldArena) Alloc(lev int, q Quantity, comp int, ba mesh.BoxArray, dm mesh.DistributionMapping, dim mesh.Dimensionality, ngrow mesh.IntVect) *mesh.Field {
	k := FieldKey{Level: lev, Q: q, Comp: comp}
	f := mesh.NewField(k.String(), ba.Convert(mesh.YeeType(q.kind(), comp, dim)), dm, 1, ngrow)
	a.mu.Lock()
	a.fields[k] = f
	a.mu.Unlock()
	return f
}

// AllocVector allocates all three components of q.
func (a *FieldArena) AllocVector(lev int, q Quantity, ba mesh.BoxArray, dm mesh.DistributionMapping, dim mesh.Dimensionality, ngrow mesh.IntVect) [3]*mesh.Field {
	var v [3]*mesh.Field
	for c := range v {
		v[c] = a.Alloc(lev, q, c, ba, dm, dim, ngrow)
	}
	return v
}

// Get returns the field for (lev, q, comp), or nil if there is none.
func (a *FieldArena) Get(lev int, q Quantity, comp int) *mesh.Field {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fields[FieldKey{Level: lev, Q: q, Comp: comp}]
}

// Vector returns the three components of q at level lev.
func (a *FieldArena) Vector(lev int, q Quantity) [3]*mesh.Field {
	var v [3]*mesh.Field
	for c := range v {
		v[c] = a.Get(lev, q, c)
	}
	return v
}

// Set stores f under k, replacing any existing field.
func (a *FieldArena) Set(k FieldKey, f *mesh.Field) {
	a.mu.Lock()
	a.fields[k] = f
	a.mu.Unlock()
}

// Release drops every field of level lev.
func (a *FieldArena) Release(lev int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.fields {
		if k.Level == lev {
			delete(a.fields, k)
		}
	}
}

// Keys returns the keys of all fields ordered by level, quantity and
// component.
func (a *FieldArena) Keys() []FieldKey {
	a.mu.RLock()
	keys := make([]FieldKey, 0, len(a.fields))
	for k := range a.fields {
		keys = append(keys, k)
	}
	a.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		ki, kj := keys[i], keys[j]
		if ki.Level != kj.Level {
			return ki.Level < kj.Level
		}
		if ki.Q != kj.Q {
			return ki.Q < kj.Q
		}
		return ki.Comp < kj.Comp
	})
	return keys
}
