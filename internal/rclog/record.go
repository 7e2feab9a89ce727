// Package rclog implements the read-cache's circular in-memory log: a fixed
// number of fixed-size pages, each backed by an internal/arena allocation so
// that evicting a page is an O(1) arena.Free() rather than a GC sweep —
// directly adapting the teacher's internal/genring generation-ring idiom to
// byte-addressed record storage instead of typed per-key arena values.
//
// © 2025 faster-readcache authors. MIT License.
package rclog

import (
	"encoding/binary"

	"github.com/Voskan/faster-readcache/internal/recordinfo"
)

// headerSize is the on-disk size of a RecordInfo word.
const headerSize = 8

// recordLayout is: [8B RecordInfo][4B keyLen][key][4B valueLen][value].
// A fully zero header (RecordInfo.IsNull) marks page-boundary padding.

// recordSize returns the total byte length of a record with the given key
// and value lengths, header included.
func recordSize(keyLen, valueLen int) int64 {
	return int64(headerSize + 4 + keyLen + 4 + valueLen)
}

// writeRecord serialises header+key+value into buf (which must be at least
// recordSize(len(key), len(value)) bytes).
func writeRecord(buf []byte, info *recordinfo.RecordInfo, key, value []byte) {
	putRecordInfo(buf[:headerSize], info)
	off := headerSize
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(key)))
	off += 4
	copy(buf[off:], key)
	off += len(key)
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(value)))
	off += 4
	copy(buf[off:], value)
}

func putRecordInfo(buf []byte, info *recordinfo.RecordInfo) {
	binary.LittleEndian.PutUint64(buf, info.Load())
}

// readKeyLen / readValueLen / readKey / readValue interpret a record already
// materialised at a physical address (see Log.GetPhysicalAddress).

func readKeyLen(buf []byte) int {
	return int(binary.LittleEndian.Uint32(buf[headerSize:]))
}

func readKey(buf []byte) []byte {
	kl := readKeyLen(buf)
	start := headerSize + 4
	return buf[start : start+kl]
}

func readValueLen(buf []byte, keyLen int) int {
	off := headerSize + 4 + keyLen
	return int(binary.LittleEndian.Uint32(buf[off:]))
}

func readValue(buf []byte) []byte {
	kl := readKeyLen(buf)
	vlOff := headerSize + 4 + kl
	vl := readValueLen(buf, kl)
	start := vlOff + 4
	return buf[start : start+vl]
}

// totalRecordSize reads key/value lengths out of a materialised record and
// returns the full record size, header included.
func totalRecordSize(buf []byte) int64 {
	kl := readKeyLen(buf)
	vl := readValueLen(buf, kl)
	return recordSize(kl, vl)
}

// isNullHeader reports whether the 8 header bytes are the all-zero pad
// pattern (RecordInfo.IsNull semantics, checked without materialising a
// RecordInfo so scanners can skip padding cheaply).
func isNullHeader(buf []byte) bool {
	for _, b := range buf[:headerSize] {
		if b != 0 {
			return false
		}
	}
	return true
}
