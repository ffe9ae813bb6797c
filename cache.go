// Copyright 2021. Silvano DAL ZILIO.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package fta

// cache is used for memoizing the results of recursive diagram operations.
// Entries are overwritten on collision.
type cache struct {
	cacheratio int // value used to resize the cache as a factor of the arena size
	table      []cacheData
}

// cacheData is a unit of information stored in an operation cache.
type cacheData struct {
	res int
	a   int
	b   int
	c   int
}

func (bc *cache) cacheinit(size int) {
	size = primeGte(size)
	bc.table = make([]cacheData, size)
	bc.cachereset()
}

func (bc *cache) cacheresize(size int) {
	if bc.cacheratio > 0 {
		bc.cacheinit(size / bc.cacheratio)
		return
	}
	bc.cachereset()
}

func (bc *cache) cachereset() {
	for k := range bc.table {
		bc.table[k].a = -1
	}
}

// Hash functions for cache slots

func _TRIPLE(a, b, c, len int) int {
	return int(_PAIR64(uint64(c), _PAIR(a, b, len), uint64(len)))
}

// _PAIR maps a pair of integers (a, b) to a slot of a table of size len, using
// the Cantor pairing reduced modulo len. Distinct pairs can share a slot.
func _PAIR(a, b, len int) uint64 {
	return (((uint64(a+b) * uint64(a+b+1)) / 2) + uint64(a)) % uint64(len)
}

func _PAIR64(a, b, len uint64) uint64 {
	return (((((a + b) % len) * ((a + b + 1) % len)) / 2) + a) % len
}

// Probe and store with a pair key (a, b) and an operation id in c.

func (bc *cache) match2(a, b, id int) int {
	entry := bc.table[_TRIPLE(a, b, id, len(bc.table))]
	if entry.a == a && entry.b == b && entry.c == id {
		return entry.res
	}
	return -1
}

func (bc *cache) set2(a, b, id, res int) int {
	bc.table[_TRIPLE(a, b, id, len(bc.table))] = cacheData{a: a, b: b, c: id, res: res}
	return res
}

// Probe and store with a single key and an operation id in c.

func (bc *cache) match1(a, id int) int {
	entry := bc.table[a%len(bc.table)]
	if entry.a == a && entry.c == id {
		return entry.res
	}
	return -1
}

func (bc *cache) set1(a, id, res int) int {
	bc.table[a%len(bc.table)] = cacheData{a: a, c: id, res: res}
	return res
}
