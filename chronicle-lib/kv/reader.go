// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package kv

import "fmt"

// StateReader is the read side of the ledger's address space: given an
// address, return its currently committed state, or report that nothing
// has ever been written there. Unlike erigon's HistoryReaderV3 this reader
// carries no notion of a point in history — ledger state is not
// temporally versioned (§4.5), so there is no txNum to track, only the
// single prior committed graph a batch executes against.
type StateReader struct {
	trace bool
	get   func(Address) ([]byte, bool)
}

// NewStateReader wraps a lookup function (typically ReadSet.Get or a
// projection-backed accessor) as a StateReader.
func NewStateReader(get func(Address) ([]byte, bool)) *StateReader {
	return &StateReader{get: get}
}

func (r *StateReader) String() string { return fmt.Sprintf("kv.StateReader(trace=%v)", r.trace) }

func (r *StateReader) SetTrace(trace bool) { r.trace = trace }

// Get returns the value stored at addr, or ok=false if addr has never been
// written.
func (r *StateReader) Get(addr Address) (value []byte, ok bool) {
	return r.get(addr)
}

// Get returns the value for addr, or ok=false if absent.
func (rs ReadSet) Get(addr Address) ([]byte, bool) {
	v, ok := rs[addr]
	return v, ok
}

// AsStateReader adapts a ReadSet directly into a StateReader, the common
// case when the executor runs against a batch's declared dependencies.
func (rs ReadSet) AsStateReader() *StateReader {
	return NewStateReader(rs.Get)
}
