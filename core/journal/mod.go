// Package journal persists the progress of the side effects handled by the
// executor in a key/value database, so that an operator can inspect what the
// executor did after a restart.
//
// The journal is an observer of the notifications of the side effects: every
// status event and bid request updates the record of the side effect.
package journal

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/executor"
	"go.dedis.ch/executor/core/sfx"
	"go.dedis.ch/executor/core/store/kv"
	"golang.org/x/xerrors"
)

var bucketName = []byte("executor-journal")

// Record is the persisted state of a side effect.
type Record struct {
	SfxID     string    `json:"sfxId"`
	XtxID     string    `json:"xtxId"`
	Target    string    `json:"target"`
	Status    string    `json:"status"`
	Height    uint64    `json:"height,omitempty"`
	Bids      int       `json:"bids"`
	LastBid   string    `json:"lastBid,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Journal is the persistent list of records.
//
// - implements core.Observer
type Journal struct {
	db     kv.DB
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a journal on top of the database.
func New(db kv.DB) *Journal {
	return &Journal{
		db:     db,
		logger: executor.Logger.With().Str("role", "journal").Logger(),
		now:    time.Now,
	}
}

// NotifyCallback implements core.Observer. It applies the event and logs the
// failures as the notifier cannot handle them.
func (j *Journal) NotifyCallback(event interface{}) {
	err := j.Apply(event)
	if err != nil {
		j.logger.Err(err).Msg("failed to update journal")
	}
}

// Apply updates the record concerned by the event. Unknown events are ignored.
func (j *Journal) Apply(event interface{}) error {
	switch evt := event.(type) {
	case sfx.StatusEvent:
		return j.update(evt.SfxID, func(r *Record) {
			r.XtxID = evt.XtxID
			r.Target = evt.Target
			r.Status = evt.Status.String()
			r.Height = evt.Height
		})
	case sfx.BidRequest:
		return j.update(evt.SfxID, func(r *Record) {
			r.XtxID = evt.XtxID
			r.Target = evt.Target
			r.Bids++
			r.LastBid = evt.Amount.String()

			if r.Status == "" {
				r.Status = sfx.Bidding.String()
			}
		})
	default:
		return nil
	}
}

// Get returns the record of the side effect.
func (j *Journal) Get(sfxID string) (Record, error) {
	var record Record

	err := j.db.View(bucketName, func(b kv.Bucket) error {
		data := b.Get([]byte(sfxID))
		if data == nil {
			return xerrors.Errorf("record '%s' not found", sfxID)
		}

		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return record, xerrors.Errorf("failed to read: %v", err)
	}

	return record, nil
}

// All returns the records sorted by side effect identifier. The list is empty
// when nothing has been recorded yet.
func (j *Journal) All() ([]Record, error) {
	records := []Record{}

	err := j.db.View(bucketName, func(b kv.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			var record Record

			err := json.Unmarshal(v, &record)
			if err != nil {
				return xerrors.Errorf("record '%s': %v", k, err)
			}

			records = append(records, record)

			return nil
		})
	})

	if xerrors.Is(err, kv.ErrBucketNotFound) {
		return records, nil
	}

	if err != nil {
		return nil, xerrors.Errorf("failed to read: %v", err)
	}

	sort.Slice(records, func(i, k int) bool {
		return records[i].SfxID < records[k].SfxID
	})

	return records, nil
}

func (j *Journal) update(sfxID string, fn func(*Record)) error {
	err := j.db.Update(bucketName, func(b kv.Bucket) error {
		record := Record{SfxID: sfxID}

		data := b.Get([]byte(sfxID))
		if data != nil {
			err := json.Unmarshal(data, &record)
			if err != nil {
				return xerrors.Errorf("failed to decode: %v", err)
			}
		}

		fn(&record)
		record.UpdatedAt = j.now()

		data, err := json.Marshal(record)
		if err != nil {
			return xerrors.Errorf("failed to encode: %v", err)
		}

		return b.Set([]byte(sfxID), data)
	})

	if err != nil {
		return xerrors.Errorf("failed to write '%s': %v", sfxID, err)
	}

	return nil
}
