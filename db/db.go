package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"gochat/models"
)

var (
	ErrNoRows       = errors.New("no rows found")
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidInput = errors.New("invalid username or email")
)

// Store keeps registered users and their contact lists in SQLite. It is the
// authentication collaborator of the routing core: the server consults it
// for login and presence, never for message delivery.
type Store struct {
	conn *sql.DB
}

func New(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	store := &Store{conn: conn}
	if err := store.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			email TEXT NOT NULL,
			password TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OFFLINE',
			last_online TEXT,
			last_offline TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner INTEGER NOT NULL,
			contact INTEGER NOT NULL,
			UNIQUE(owner, contact)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_owner ON contacts(owner)`,
	}

	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// RegisterUser creates a user with a bcrypt-hashed password and returns the
// assigned id. The username and email are validated first.
func (s *Store) RegisterUser(username, email, password string) (int64, error) {
	if !models.IsValidUsername(username) || !models.IsValidEmail(email) {
		return 0, ErrInvalidInput
	}

	exists, err := s.UserExists(username)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	res, err := s.conn.Exec(
		"INSERT INTO users (username, email, password) VALUES (?, ?, ?)",
		username, email, string(hashed),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Authenticate checks credentials and returns the user id. The second result
// is false for an unknown username or a wrong password; the error is
// reserved for store failures.
func (s *Store) Authenticate(username, password string) (int64, bool, error) {
	var id int64
	var hashedPassword string
	err := s.conn.QueryRow(
		"SELECT id, password FROM users WHERE username = ?", username,
	).Scan(&id, &hashedPassword)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) != nil {
		return 0, false, nil
	}
	return id, true, nil
}

func (s *Store) UserExists(username string) (bool, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUser loads a profile, contacts included.
func (s *Store) GetUser(id int64) (*models.UserProfile, error) {
	user := &models.UserProfile{ID: id}
	var statusStr string
	err := s.conn.QueryRow(
		"SELECT username, email, status FROM users WHERE id = ?", id,
	).Scan(&user.Username, &user.Email, &statusStr)
	if err == sql.ErrNoRows {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	user.Status = models.ParseStatus(statusStr)

	rows, err := s.conn.Query("SELECT contact FROM contacts WHERE owner = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var contactID int64
		if err := rows.Scan(&contactID); err != nil {
			return nil, err
		}
		user.Contacts = append(user.Contacts, contactID)
	}

	return user, rows.Err()
}

// SetStatus records a presence change. Going online touches last_online,
// going offline touches last_offline.
func (s *Store) SetStatus(id int64, status models.UserStatus) error {
	now := time.Now().UTC().Format(time.RFC3339)

	var res sql.Result
	var err error
	switch status {
	case models.StatusOnline:
		res, err = s.conn.Exec(
			"UPDATE users SET status = ?, last_online = ? WHERE id = ?",
			status.String(), now, id,
		)
	case models.StatusOffline:
		res, err = s.conn.Exec(
			"UPDATE users SET status = ?, last_offline = ? WHERE id = ?",
			status.String(), now, id,
		)
	default:
		res, err = s.conn.Exec(
			"UPDATE users SET status = ? WHERE id = ?",
			status.String(), id,
		)
	}
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

// Contact methods
func (s *Store) AddContact(owner, contact int64) error {
	_, err := s.conn.Exec("INSERT INTO contacts (owner, contact) VALUES (?, ?)", owner, contact)
	return err
}

func (s *Store) RemoveContact(owner, contact int64) error {
	res, err := s.conn.Exec("DELETE FROM contacts WHERE owner = ? AND contact = ?", owner, contact)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}
