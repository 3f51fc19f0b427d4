package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Server log statuses.
const (
	LogWarning = "warning"
	LogSafe    = "safe"
)

type Server struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	IPv4      string    `json:"ipv4,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ServerLog struct {
	ID        uint64    `json:"id"`
	ServerID  string    `json:"server_id"`
	Status    string    `json:"status"`
	Content   string    `json:"log_content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) CreateServer(ownerID, name, ipv4 string) (Server, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(ownerID) == "" {
		return Server{}, fmt.Errorf("create server: owner and name are required: %w", ErrInvalid)
	}
	srv := Server{ID: uuid.NewString(), OwnerID: ownerID, Name: name, IPv4: ipv4, CreatedAt: s.now().UTC()}
	err := s.db.Update(func(tx *bolt.Tx) error {
		j, err := json.Marshal(srv)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bServers).Put([]byte(srv.ID), j); err != nil {
			return err
		}
		_, err = tx.Bucket(bServerLogs).CreateBucketIfNotExists([]byte(srv.ID))
		return err
	})
	if err != nil {
		return Server{}, fmt.Errorf("create server: %w", err)
	}
	return srv, nil
}

func (s *Store) GetServer(id string) (Server, error) {
	var srv Server
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bServers).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &srv)
	})
	return srv, err
}

// ListServersByOwner returns the owner's servers, oldest first.
func (s *Store) ListServersByOwner(ownerID string) ([]Server, error) {
	out := []Server{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bServers).ForEach(func(_, v []byte) error {
			var srv Server
			if err := json.Unmarshal(v, &srv); err != nil {
				return err
			}
			if srv.OwnerID == ownerID {
				out = append(out, srv)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteServer removes the server and all of its logs.
func (s *Store) DeleteServer(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bServers)
		if b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		logs := tx.Bucket(bServerLogs)
		if logs.Bucket([]byte(id)) != nil {
			return logs.DeleteBucket([]byte(id))
		}
		return nil
	})
}

// PutServerLog appends a log to an existing server.
func (s *Store) PutServerLog(serverID, status, content string) (ServerLog, error) {
	l := ServerLog{ServerID: serverID, Status: status, Content: content, CreatedAt: s.now().UTC()}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bServers).Get([]byte(serverID)) == nil {
			return ErrNotFound
		}
		b, err := tx.Bucket(bServerLogs).CreateBucketIfNotExists([]byte(serverID))
		if err != nil {
			return err
		}
		if l.ID, err = b.NextSequence(); err != nil {
			return err
		}
		j, err := json.Marshal(l)
		if err != nil {
			return err
		}
		return b.Put(itob(l.ID), j)
	})
	if err != nil {
		return ServerLog{}, err
	}
	return l, nil
}

// ListServerLogs returns the server's logs, newest first.
func (s *Store) ListServerLogs(serverID string) ([]ServerLog, error) {
	out := []ServerLog{}
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bServers).Get([]byte(serverID)) == nil {
			return ErrNotFound
		}
		b := tx.Bucket(bServerLogs).Bucket([]byte(serverID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var l ServerLog
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			out = append(out, l)
		}
		return nil
	})
	return out, err
}

// ServerStats summarizes a server's analyzed logs.
type ServerStats struct {
	TotalLogs          int            `json:"total_logs"`
	WarningCount       int            `json:"warning_count"`
	SafeCount          int            `json:"safe_count"`
	WarningPercentage  float64        `json:"warning_percentage"`
	SafePercentage     float64        `json:"safe_percentage"`
	StatusDistribution map[string]int `json:"status_distribution"`
	WarningLogs        []ServerLog    `json:"warning_logs"`
}

// StatsFor computes stats over logs ordered newest first; WarningLogs keeps
// the latest 10 warnings.
func StatsFor(logs []ServerLog) ServerStats {
	st := ServerStats{TotalLogs: len(logs), StatusDistribution: map[string]int{}, WarningLogs: []ServerLog{}}
	for _, l := range logs {
		st.StatusDistribution[l.Status]++
		switch strings.ToLower(l.Status) {
		case LogWarning:
			st.WarningCount++
			if len(st.WarningLogs) < 10 {
				st.WarningLogs = append(st.WarningLogs, l)
			}
		case LogSafe:
			st.SafeCount++
		}
	}
	if st.TotalLogs > 0 {
		st.WarningPercentage = pct(st.WarningCount, st.TotalLogs)
		st.SafePercentage = pct(st.SafeCount, st.TotalLogs)
	}
	return st
}

func pct(n, total int) float64 {
	v := float64(n) / float64(total) * 100
	return float64(int64(v*100+0.5)) / 100
}
