package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Fullname     string    `json:"fullname"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUser stores a user with a fresh id. Usernames are unique.
func (s *Store) CreateUser(username, fullname string, hash []byte) (User, error) {
	u := User{ID: uuid.NewString(), Username: username, Fullname: fullname, PasswordHash: hash, CreatedAt: s.now().UTC()}
	err := s.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bUsernames)
		if names.Get([]byte(username)) != nil {
			return ErrConflict
		}
		j, err := json.Marshal(u)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bUsers).Put([]byte(u.ID), j); err != nil {
			return err
		}
		return names.Put([]byte(username), []byte(u.ID))
	})
	if err != nil {
		return User{}, fmt.Errorf("create user %s: %w", username, err)
	}
	return u, nil
}

func (s *Store) GetUserByName(username string) (User, error) {
	var u User
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bUsernames).Get([]byte(username))
		if id == nil {
			return ErrNotFound
		}
		v := tx.Bucket(bUsers).Get(id)
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &u)
	})
	return u, err
}
