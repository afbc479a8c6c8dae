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
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"path"

	"github.com/BurntSushi/toml"
	"gocloud.dev/blob"

	"github.com/spatialmodel/picamr/cloud"
	"github.com/spatialmodel/picamr/internal/hash"
	"github.com/spatialmodel/picamr/mesh"
	"github.com/spatialmodel/picamr/particles"
)

const checkpointFormat = 1

// checkpointHeader is the human-readable part of a checkpoint.
type checkpointHeader struct {
	Format     int
	ConfigHash string
	Step       int
	Time       float64
	Species    []string
	Levels     []levelHeader
}

type levelHeader struct {
	Index  int
	Dt     float64
	Time   float64
	Step   int
	Lo, Hi [][3]int
	Owners []int
}

type fieldData struct {
	Key  FieldKey
	Fabs [][]float64 // guard cells included
}

// levelClock holds the exact clock of a level; the header copy is for
// reading.
type levelClock struct {
	Dt, Time float64
	Step     int
}

type checkpointBody struct {
	Time    float64
	Clocks  []levelClock
	Fields  []fieldData
	Species []particles.State
}

func headerKey(key string) string { return path.Join(key, "header.toml") }
func bodyKey(key string) string   { return path.Join(key, "data.gob") }

// Save returns a function that writes the complete field and particle
// state to bucket under key. Solver coefficients are not saved; they are
// rebuilt on first use after loading.
func Save(ctx context.Context, bucket *blob.Bucket, key string) DomainManipulator {
	return func(s *Simulation) error {
		h := checkpointHeader{
			Format:     checkpointFormat,
			ConfigHash: hash.Hash(*s.Config),
			Step:       s.Step,
			Time:       s.Time,
		}
		for _, c := range s.Species {
			h.Species = append(h.Species, c.Name)
		}
		for _, l := range s.Levels {
			if l.phase != Idle {
				return &mesh.ConfigError{Invariant: "checkpoints are written between complete steps", Level: l.Index,
					Detail: fmt.Sprintf("level is %v", l.phase)}
			}
			lh := levelHeader{Index: l.Index, Dt: l.Dt, Time: l.Time, Step: l.Step, Owners: l.DM}
			for _, b := range l.BA {
				lh.Lo = append(lh.Lo, b.Lo)
				lh.Hi = append(lh.Hi, b.Hi)
			}
			h.Levels = append(h.Levels, lh)
		}
		var hb bytes.Buffer
		if err := toml.NewEncoder(&hb).Encode(h); err != nil {
			return fmt.Errorf("picamr.Save: encoding header: %v", err)
		}

		body := checkpointBody{Time: s.Time}
		for _, l := range s.Levels {
			body.Clocks = append(body.Clocks, levelClock{Dt: l.Dt, Time: l.Time, Step: l.Step})
		}
		for _, k := range s.Arena.Keys() {
			f := s.Arena.Get(k.Level, k.Q, k.Comp)
			fd := fieldData{Key: k, Fabs: make([][]float64, f.NumFabs())}
			for i := range fd.Fabs {
				fd.Fabs[i] = f.Fab(i).Data.Elements
			}
			body.Fields = append(body.Fields, fd)
		}
		for _, c := range s.Species {
			body.Species = append(body.Species, c.State())
		}
		var bb bytes.Buffer
		if err := gob.NewEncoder(&bb).Encode(body); err != nil {
			return fmt.Errorf("picamr.Save: encoding data: %v", err)
		}

		if err := cloud.WriteBlob(ctx, bucket, bodyKey(key), bb.Bytes()); err != nil {
			return fmt.Errorf("picamr.Save: %v", err)
		}
		// The header is written last so that a complete header implies
		// complete data.
		if err := cloud.WriteBlob(ctx, bucket, headerKey(key), hb.Bytes()); err != nil {
			return fmt.Errorf("picamr.Save: %v", err)
		}
		s.Log.WithField("checkpoint", key).Infof("saved step %d", s.Step)
		return nil
	}
}

// Load returns a function that restores the state written by Save. The
// simulation must have been built and its fields allocated from the same
// configuration. Levels saved with a different decomposition are
// regridded onto it first.
func Load(ctx context.Context, bucket *blob.Bucket, key string) DomainManipulator {
	return func(s *Simulation) error {
		hb, err := cloud.ReadBlob(ctx, bucket, headerKey(key))
		if err != nil {
			return fmt.Errorf("picamr.Load: %v", err)
		}
		var h checkpointHeader
		if _, err := toml.Decode(string(hb), &h); err != nil {
			return fmt.Errorf("picamr.Load: decoding header: %v", err)
		}
		if h.Format != checkpointFormat {
			return fmt.Errorf("picamr.Load: checkpoint format %d, want %d", h.Format, checkpointFormat)
		}
		if want := hash.Hash(*s.Config); h.ConfigHash != want {
			return fmt.Errorf("picamr.Load: checkpoint %s was written with a different configuration (hash %s, have %s)", key, h.ConfigHash, want)
		}
		if len(h.Levels) != len(s.Levels) || len(h.Species) != len(s.Species) {
			return fmt.Errorf("picamr.Load: checkpoint has %d levels and %d species, simulation has %d and %d",
				len(h.Levels), len(h.Species), len(s.Levels), len(s.Species))
		}
		for i, lh := range h.Levels {
			if len(lh.Lo) != len(lh.Hi) || len(lh.Lo) != len(lh.Owners) {
				return fmt.Errorf("picamr.Load: level %d layout is corrupt", i)
			}
			ba := make(mesh.BoxArray, len(lh.Lo))
			for j := range ba {
				ba[j] = mesh.NewBox(lh.Lo[j], lh.Hi[j], mesh.CellType)
			}
			dm := mesh.DistributionMapping(lh.Owners)
			l := s.Levels[i]
			if !ba.Equal(l.BA) || !dm.Equal(l.DM) {
				if err := s.Regrid(i, ba, dm); err != nil {
					return fmt.Errorf("picamr.Load: %v", err)
				}
			}
		}

		bb, err := cloud.ReadBlob(ctx, bucket, bodyKey(key))
		if err != nil {
			return fmt.Errorf("picamr.Load: %v", err)
		}
		var body checkpointBody
		if err := gob.NewDecoder(bytes.NewReader(bb)).Decode(&body); err != nil {
			return fmt.Errorf("picamr.Load: decoding data: %v", err)
		}
		for _, fd := range body.Fields {
			f := s.Arena.Get(fd.Key.Level, fd.Key.Q, fd.Key.Comp)
			if f == nil {
				return fmt.Errorf("picamr.Load: field %v is not allocated", fd.Key)
			}
			if len(fd.Fabs) != f.NumFabs() {
				return fmt.Errorf("picamr.Load: field %v has %d boxes, checkpoint has %d", fd.Key, f.NumFabs(), len(fd.Fabs))
			}
			for i, data := range fd.Fabs {
				dst := f.Fab(i).Data.Elements
				if len(data) != len(dst) {
					return fmt.Errorf("picamr.Load: field %v box %d has %d values, checkpoint has %d", fd.Key, i, len(dst), len(data))
				}
				copy(dst, data)
			}
		}
		for i, st := range body.Species {
			if h.Species[i] != s.Species[i].Name {
				return fmt.Errorf("picamr.Load: species %d is %s, checkpoint has %s", i, s.Species[i].Name, h.Species[i])
			}
			if err := s.Species[i].Restore(st); err != nil {
				return fmt.Errorf("picamr.Load: %v", err)
			}
		}
		if len(body.Clocks) != len(s.Levels) {
			return fmt.Errorf("picamr.Load: checkpoint has clocks for %d levels, want %d", len(body.Clocks), len(s.Levels))
		}
		for i, lc := range body.Clocks {
			l := s.Levels[i]
			l.Dt, l.Time, l.Step, l.phase = lc.Dt, lc.Time, lc.Step, Idle
		}
		s.Step, s.Time = h.Step, body.Time
		s.Log.WithField("checkpoint", key).Infof("loaded step %d", s.Step)
		return nil
	}
}
