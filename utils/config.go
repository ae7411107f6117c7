package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Configurazione del backend remoto
type BackendConfig struct {
	APIURL    string `json:"apiUrl"`
	SocketURL string `json:"socketUrl"`
}

// Configurazione del server locale
type ServerConfig struct {
	Port int `json:"port"`
}

// Configurazione dei percorsi di persistenza
type StorageConfig struct {
	SQLitePath   string `json:"sqlitePath"`
	SnapshotPath string `json:"snapshotPath"`
}

// Configurazione completa
type Config struct {
	Backend       BackendConfig `json:"backend"`
	Server        ServerConfig  `json:"server"`
	Storage       StorageConfig `json:"storage"`
	CurrentUserID string        `json:"currentUserId"`
}

// Carica la configurazione dal file, con eventuali override da variabili
// d'ambiente (anche da un file .env se presente)
func LoadConfig(filePath string) (*Config, error) {
	// Il file .env è opzionale
	_ = godotenv.Load()

	config := &Config{
		Backend: BackendConfig{
			APIURL:    "https://api.loopin.app",
			SocketURL: "wss://socket.loopin.app/ws",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Storage: StorageConfig{
			SQLitePath:   "loopin.db",
			SnapshotPath: "chat_snapshot.db",
		},
	}

	file, err := os.Open(filePath)
	if err == nil {
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("errore nella decodifica del file di configurazione: %v", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("errore nell'apertura del file di configurazione: %v", err)
	}

	if v := os.Getenv("LOOPIN_API_URL"); v != "" {
		config.Backend.APIURL = v
	}
	if v := os.Getenv("LOOPIN_SOCKET_URL"); v != "" {
		config.Backend.SocketURL = v
	}
	if v := os.Getenv("LOOPIN_USER_ID"); v != "" {
		config.CurrentUserID = v
	}
	if v := os.Getenv("LOOPIN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("LOOPIN_PORT non valida: %v", err)
		}
		config.Server.Port = port
	}

	return config, nil
}
