package eventsink

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/royalbidz/bidcore/core"
)

// Record is the journal envelope around one event. Seq is the journal's
// own write counter (global across auctions), distinct from an auction's
// bid sequence.
type Record struct {
	Seq        uint64     `json:"seq"`
	RecordedAt time.Time  `json:"recorded_at"`
	Event      core.Event `json:"event"`
}

// Journal appends every published event as a CBOR-encoded Record to an
// io.Writer. It is the durable hand-off point for the surrounding app's
// persistence layer; the engine itself stays storage-agnostic.
//
// Journal swallows encode errors at publish time (the processor must not
// stall on a slow disk) and surfaces the first one via Err.
type Journal struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	now func() time.Time
	seq uint64
	err error
}

// NewJournal returns a journal writing to w.
func NewJournal(w io.Writer) *Journal {
	return &Journal{
		enc: cbor.NewEncoder(w),
		now: time.Now,
	}
}

func (j *Journal) Publish(ev core.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	j.seq++
	rec := Record{
		Seq:        j.seq,
		RecordedAt: j.now(),
		Event:      ev,
	}
	if err := j.enc.Encode(rec); err != nil {
		j.err = fmt.Errorf("journal write failed at seq %d: %w", j.seq, err)
	}
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// ReadJournal decodes a journal stream back into records, for replay by a
// downstream consumer. Reads until EOF; verifies there are no sequence
// gaps.
func ReadJournal(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)
	records := make([]Record, 0)
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("journal decode failed after %d records: %w", len(records), err)
		}
		if want := uint64(len(records) + 1); rec.Seq != want {
			return records, fmt.Errorf("journal sequence gap: want %d, got %d", want, rec.Seq)
		}
		records = append(records, rec)
	}
}
