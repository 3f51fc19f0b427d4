package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/viniciushammett/go-weblog-analyzer/internal/report"
)

// Scan is a saved scan: the file summary and the threats found in it.
type Scan struct {
	ID       uint64    `json:"id"`
	Filename string    `json:"filename"`
	ScanDate time.Time `json:"scan_date"`
	report.Summary
	Threats []report.Threat `json:"threats"`
}

// ScanHeader is the list view of a scan.
type ScanHeader struct {
	ID            uint64    `json:"id"`
	Filename      string    `json:"filename"`
	ScanDate      time.Time `json:"scan_date"`
	TotalRequests int       `json:"total_requests"`
	ErrorRate     float64   `json:"error_rate"`
	ThreatCount   int       `json:"threat_count"`
}

// SaveScan stores a scan under the next sequence id.
func (s *Store) SaveScan(filename string, sum report.Summary, threats []report.Threat) (uint64, error) {
	if threats == nil {
		threats = []report.Threat{}
	}
	var id uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bScans)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq
		j, err := json.Marshal(Scan{ID: id, Filename: filename, ScanDate: s.now().UTC(), Summary: sum, Threats: threats})
		if err != nil {
			return err
		}
		return b.Put(itob(id), j)
	})
	if err != nil {
		return 0, fmt.Errorf("save scan: %w", err)
	}
	return id, nil
}

// ListScans returns headers, newest first.
func (s *Store) ListScans() ([]ScanHeader, error) {
	out := []ScanHeader{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bScans).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var sc Scan
			if err := json.Unmarshal(v, &sc); err != nil {
				return fmt.Errorf("scan %d: %w", btoi(k), err)
			}
			out = append(out, ScanHeader{
				ID: sc.ID, Filename: sc.Filename, ScanDate: sc.ScanDate,
				TotalRequests: sc.TotalRequests, ErrorRate: sc.ErrorRate, ThreatCount: len(sc.Threats),
			})
		}
		return nil
	})
	return out, err
}

func (s *Store) GetScan(id uint64) (Scan, error) {
	var sc Scan
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bScans).Get(itob(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &sc)
	})
	return sc, err
}

// DeleteScan removes one scan. Deleting an unknown id is ErrNotFound.
func (s *Store) DeleteScan(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bScans)
		if b.Get(itob(id)) == nil {
			return ErrNotFound
		}
		return b.Delete(itob(id))
	})
}

// ClearScans drops all history and restarts ids at 1.
func (s *Store) ClearScans() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bScans); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bScans)
		return err
	})
}

// EachScan walks full scans oldest first until fn returns false.
func (s *Store) EachScan(fn func(Scan) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bScans).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var sc Scan
			if err := json.Unmarshal(v, &sc); err != nil {
				return fmt.Errorf("scan %d: %w", btoi(k), err)
			}
			if !fn(sc) {
				break
			}
		}
		return nil
	})
}
