package backend

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrUserExists is returned when registering a taken username
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned for an unknown user or wrong password
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound is returned when a user id is unknown
	ErrUserNotFound = errors.New("user not found")
)

// argon2id parameters
const (
	hashTime    = 1
	hashMemory  = 64 * 1024
	hashThreads = 4
	hashKeyLen  = 32
	saltLen     = 16
)

// User is a registered account
type User struct {
	ID        int64
	Username  string
	Email     string
	CreatedAt time.Time

	salt []byte
	hash []byte
}

// Users is an in-memory user table. Usernames are case-insensitive.
type Users struct {
	mu     sync.RWMutex
	byName map[string]*User
	byID   map[int64]*User
	nextID int64
}

// NewUsers creates an empty user table
func NewUsers() *Users {
	return &Users{
		byName: make(map[string]*User),
		byID:   make(map[int64]*User),
		nextID: 1,
	}
}

// Register creates a user with the given password
func (u *Users) Register(username, password, email string) (*User, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash := hashPassword(password, salt)

	u.mu.Lock()
	defer u.mu.Unlock()

	key := strings.ToLower(username)
	if _, ok := u.byName[key]; ok {
		return nil, ErrUserExists
	}

	user := &User{
		ID:        u.nextID,
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
		salt:      salt,
		hash:      hash,
	}
	u.byName[key] = user
	u.byID[user.ID] = user
	u.nextID++
	return user, nil
}

// Authenticate checks a username and password
func (u *Users) Authenticate(username, password string) (*User, error) {
	u.mu.RLock()
	user, ok := u.byName[strings.ToLower(username)]
	u.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare(hashPassword(password, user.salt), user.hash) != 1 {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns the user with id
func (u *Users) Get(id int64) (*User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	user, ok := u.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashKeyLen)
}
