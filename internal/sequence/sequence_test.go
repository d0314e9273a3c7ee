package sequence

import (
	"encoding/binary"
	"testing"

	"gotest.tools/v3/assert"
)

func recs(seqs ...uint32) []FrameRecord {
	out := make([]FrameRecord, len(seqs))
	for i, s := range seqs {
		out[i] = FrameRecord{SeqNum: s, ArrivalIndex: i}
	}
	return out
}

func TestAnalyze_Empty(t *testing.T) {
	a := Analyze(nil)

	assert.Equal(t, a.Total, 0)
	assert.Equal(t, a.Unique, 0)
	assert.Equal(t, a.Duplicates, 0)
	assert.Equal(t, a.OutOfOrder, 0)
	assert.Equal(t, a.ReplicationRatio, 0.0)
	assert.Equal(t, a.EliminationEfficiency, 0.0)
}

func TestAnalyze_DuplicatesAndReordering(t *testing.T) {
	// The second arrival of 2 comes after 3: one duplicate that is also
	// out of order.
	a := Analyze(recs(1, 1, 2, 3, 2, 4))

	assert.Equal(t, a.Unique, 4)
	assert.Equal(t, a.Duplicates, 2)
	assert.Equal(t, a.Total, 6)
	assert.Equal(t, a.OutOfOrder, 1)
	assert.Equal(t, a.ReplicationRatio, 50.0)
	assert.Equal(t, a.EliminationEfficiency, 100.0/3.0)
}

func TestAnalyze_PerfectDualPath(t *testing.T) {
	// Each frame delivered exactly twice, in order.
	a := Analyze(recs(1, 1, 2, 2, 3, 3))

	assert.Equal(t, a.Unique, 3)
	assert.Equal(t, a.Duplicates, 3)
	assert.Equal(t, a.Total, a.Unique+a.Duplicates)
	assert.Equal(t, a.OutOfOrder, 0)
	assert.Equal(t, a.ReplicationRatio, 100.0)
	assert.Equal(t, a.EliminationEfficiency, 50.0)
}

func TestAnalyze_DuplicateMovesMarkerBackwards(t *testing.T) {
	// After the late re-delivery of 1, frame 2 is not out of order
	// relative to the marker, but 1 itself was.
	a := Analyze(recs(1, 2, 3, 1, 2))

	assert.Equal(t, a.Unique, 3)
	assert.Equal(t, a.Duplicates, 2)
	assert.Equal(t, a.OutOfOrder, 1)
}

func TestAnalyze_SequenceZero(t *testing.T) {
	// Sequence number 0 is valid and must not trip the initial marker.
	a := Analyze(recs(0, 1, 2))

	assert.Equal(t, a.Unique, 3)
	assert.Equal(t, a.Duplicates, 0)
	assert.Equal(t, a.OutOfOrder, 0)
}

func rtagPayload(streamID uint16, seq uint32) []byte {
	buf := make([]byte, 8, 16)
	binary.BigEndian.PutUint16(buf[0:2], RTagEtherType)
	binary.BigEndian.PutUint16(buf[2:4], streamID)
	binary.BigEndian.PutUint32(buf[4:8], seq)
	return append(buf, []byte("payload")...)
}

func TestParseRTag(t *testing.T) {
	stream, seq, ok := ParseRTag(rtagPayload(7, 4242))
	assert.Assert(t, ok)
	assert.Equal(t, stream, uint16(7))
	assert.Equal(t, seq, uint32(4242))
}

func TestParseRTag_Malformed(t *testing.T) {
	_, _, ok := ParseRTag([]byte{0xf1, 0xc1, 0x00})
	assert.Assert(t, !ok)

	_, _, ok = ParseRTag([]byte{0x08, 0x00, 0, 0, 0, 0, 0, 1})
	assert.Assert(t, !ok)

	_, _, ok = ParseRTag(nil)
	assert.Assert(t, !ok)
}

func TestFromPayloads_SkipsMalformed(t *testing.T) {
	payloads := [][]byte{
		rtagPayload(1, 10),
		[]byte("not a tagged frame"),
		rtagPayload(1, 11),
		{0xf1},
		rtagPayload(1, 11),
	}

	records, skipped := FromPayloads(payloads)
	assert.Equal(t, skipped, 2)
	assert.Equal(t, len(records), 3)
	assert.Equal(t, records[2].ArrivalIndex, 2)

	a := Analyze(records)
	assert.Equal(t, a.Unique, 2)
	assert.Equal(t, a.Duplicates, 1)
}
