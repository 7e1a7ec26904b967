package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gcfg "github.com/gigapi/gigapi-config/config"
	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/spf13/viper"
)

// Settings gathers the gigapi settings shared with the host process and the ZOOMVIEW_* settings
// of the view engine
type Settings struct {
	Port       int
	FlightPort int
	RootDir    string
	Mode       string

	DBPath        string
	MaxConns      int
	DefaultNbv    int
	PrefetchQueue int
	QueryTimeout  time.Duration
	LogLevel      string
}

// Load initializes the gigapi config and reads the ZOOMVIEW_* environment
func Load() (*Settings, error) {
	gcfg.InitConfig("")
	s := &Settings{
		Port:       gcfg.Config.Port,
		FlightPort: gcfg.Config.FlightSqlPort,
		RootDir:    GetRootDir(),
		Mode:       gcfg.Config.Gigapi.Mode,
	}
	v := viper.New()
	v.SetEnvPrefix("ZOOMVIEW")
	v.AutomaticEnv()
	applyEnv(v, s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func applyEnv(v *viper.Viper, s *Settings) {
	v.SetDefault("db_path", filepath.Join(s.RootDir, "zoomview.duckdb"))
	v.SetDefault("max_conns", 4)
	v.SetDefault("default_nbv", 100)
	v.SetDefault("prefetch_queue", 16)
	v.SetDefault("query_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")

	s.DBPath = v.GetString("db_path")
	s.MaxConns = v.GetInt("max_conns")
	s.DefaultNbv = v.GetInt("default_nbv")
	s.PrefetchQueue = v.GetInt("prefetch_queue")
	s.QueryTimeout = v.GetDuration("query_timeout")
	s.LogLevel = v.GetString("log_level")
}

func (s *Settings) Validate() error {
	switch {
	case s.MaxConns <= 0:
		return core.ErrInvalidInput.New(fmt.Sprintf("ZOOMVIEW_MAX_CONNS %d must be positive", s.MaxConns))
	case s.DefaultNbv <= 0:
		return core.ErrInvalidInput.New(fmt.Sprintf("ZOOMVIEW_DEFAULT_NBV %d must be positive", s.DefaultNbv))
	case s.PrefetchQueue <= 0:
		return core.ErrInvalidInput.New(fmt.Sprintf("ZOOMVIEW_PREFETCH_QUEUE %d must be positive", s.PrefetchQueue))
	case s.QueryTimeout <= 0:
		return core.ErrInvalidInput.New("ZOOMVIEW_QUERY_TIMEOUT must be positive")
	}
	return nil
}

// GetRootDir returns DATA_DIR, the gigapi root or ./data
func GetRootDir() string {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir != "" {
		return dataDir
	}
	dataDir = gcfg.Config.Gigapi.Root
	if dataDir != "" {
		return dataDir
	}
	return "./data"
}
