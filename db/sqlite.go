// Package db è lo store locale delle credenziali di sessione, su
// SQLite. Il socket e il client REST leggono il token da qui.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteManager struct {
	db *sql.DB
}

// NewSQLiteManager apre (o crea) il database di sessione
func NewSQLiteManager(path string) (*SQLiteManager, error) {
	database, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Verifica la connessione
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, err
	}

	return &SQLiteManager{db: database}, nil
}

// Inizializza le tabelle necessarie
func (m *SQLiteManager) InitTables() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("errore nella creazione della tabella credentials: %w", err)
	}
	return nil
}

// SaveToken salva (o sostituisce) il token di autenticazione
func (m *SQLiteManager) SaveToken(token string) error {
	_, err := m.db.Exec(
		"INSERT INTO credentials (name, value, updated_at) VALUES ('token', ?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		token, time.Now().UTC(),
	)
	return err
}

// GetToken restituisce il token salvato, o stringa vuota se assente
func (m *SQLiteManager) GetToken() string {
	var token string
	err := m.db.QueryRow("SELECT value FROM credentials WHERE name = 'token'").Scan(&token)
	if err != nil {
		return ""
	}
	return token
}

// DeleteToken elimina il token (logout)
func (m *SQLiteManager) DeleteToken() error {
	_, err := m.db.Exec("DELETE FROM credentials WHERE name = 'token'")
	return err
}

// Chiude la connessione al database
func (m *SQLiteManager) Close() error {
	return m.db.Close()
}
