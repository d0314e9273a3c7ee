// Package sequence classifies a replicated frame stream into unique,
// duplicate, and out-of-order frames, the basis of FRER (IEEE 802.1CB)
// elimination reporting.
package sequence

import "encoding/binary"

// RTagEtherType is the IEEE 802.1CB redundancy tag EtherType.
const RTagEtherType = 0xF1C1

// rtagLen covers EtherType (2) + stream ID (2) + sequence number (4).
const rtagLen = 8

// FrameRecord is one received frame of a replicated stream, in arrival order.
type FrameRecord struct {
	SeqNum       uint32
	ArrivalIndex int
}

// Analysis summarizes a replicated stream. The JSON field names are
// consumed by the report tooling and must not change.
type Analysis struct {
	Total      int `json:"total_packets"`
	Unique     int `json:"unique_packets"`
	Duplicates int `json:"duplicates"`
	OutOfOrder int `json:"out_of_order"`
	// ReplicationRatio is duplicates/unique as a percentage; under
	// perfect dual-path delivery every frame arrives exactly twice,
	// giving 100.
	ReplicationRatio float64 `json:"replication_ratio"`
	// EliminationEfficiency is duplicates/total as a percentage: every
	// duplicate counts as a frame the elimination stage correctly
	// discarded.
	EliminationEfficiency float64 `json:"elimination_efficiency"`
}

// Analyze classifies records in arrival order.
//
// A frame is a duplicate when its sequence number was seen before, and
// out-of-order when its sequence number is lower than the previous
// arrival's. The previous-arrival marker advances on every record, so a
// late re-delivery of an old frame both counts as a duplicate and moves
// the marker backwards; that is deliberate, it models genuinely
// out-of-order re-delivery rather than a strictly-increasing check.
func Analyze(records []FrameRecord) Analysis {
	seen := make(map[uint32]struct{}, len(records))
	duplicates := 0
	outOfOrder := 0
	prev := int64(-1)

	for _, rec := range records {
		if _, ok := seen[rec.SeqNum]; ok {
			duplicates++
		} else {
			seen[rec.SeqNum] = struct{}{}
		}
		if int64(rec.SeqNum) < prev {
			outOfOrder++
		}
		prev = int64(rec.SeqNum)
	}

	unique := len(seen)
	total := unique + duplicates

	replication := 0.0
	if unique > 0 {
		replication = float64(duplicates) / float64(unique) * 100
	}
	elimination := 0.0
	if total > 0 {
		elimination = float64(duplicates) / float64(total) * 100
	}

	return Analysis{
		Total:                 total,
		Unique:                unique,
		Duplicates:            duplicates,
		OutOfOrder:            outOfOrder,
		ReplicationRatio:      replication,
		EliminationEfficiency: elimination,
	}
}

// ParseRTag extracts the stream ID and sequence number from a captured
// payload carrying a redundancy tag. ok is false when the payload is too
// short or does not start with the R-TAG EtherType.
func ParseRTag(payload []byte) (streamID uint16, seqNum uint32, ok bool) {
	if len(payload) < rtagLen {
		return 0, 0, false
	}
	if binary.BigEndian.Uint16(payload[0:2]) != RTagEtherType {
		return 0, 0, false
	}
	return binary.BigEndian.Uint16(payload[2:4]), binary.BigEndian.Uint32(payload[4:8]), true
}

// FromPayloads parses a capture's payloads in arrival order, skipping
// entries without a valid redundancy tag. A corrupt entry must not
// invalidate the rest of the capture; the skipped count is returned so
// the caller can log it.
func FromPayloads(payloads [][]byte) (records []FrameRecord, skipped int) {
	for _, payload := range payloads {
		_, seq, ok := ParseRTag(payload)
		if !ok {
			skipped++
			continue
		}
		records = append(records, FrameRecord{
			SeqNum:       seq,
			ArrivalIndex: len(records),
		})
	}
	return records, skipped
}
