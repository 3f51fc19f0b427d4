// Package auth registers users, verifies passwords and guards the API with
// bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/viniciushammett/go-weblog-analyzer/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("username already exists")
	ErrMissingFields      = errors.New("username and password are required")
)

type UserStore interface {
	CreateUser(username, fullname string, hash []byte) (store.User, error)
	GetUserByName(username string) (store.User, error)
}

type Users struct {
	store UserStore
	jwt   *JWT
	cost  int
}

func NewUsers(s UserStore, j *JWT) *Users {
	return &Users{store: s, jwt: j, cost: bcrypt.DefaultCost}
}

// Session is returned on login. Token is empty when no JWT secret is set.
type Session struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

// Register creates a user; fullname defaults to the username.
func (u *Users) Register(username, password, fullname string) (store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return store.User{}, ErrMissingFields
	}
	if fullname == "" {
		fullname = username
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}
	usr, err := u.store.CreateUser(username, fullname, hash)
	if errors.Is(err, store.ErrConflict) {
		return store.User{}, ErrUserExists
	}
	return usr, err
}

func (u *Users) Login(username, password string) (Session, error) {
	usr, err := u.store.GetUserByName(strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	tok, err := u.jwt.Issue(usr.ID, usr.Username)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{UserID: usr.ID, Username: usr.Username, Token: tok}, nil
}
