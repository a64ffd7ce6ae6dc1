package database

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	// DriverMySQL selects the go-sql-driver/mysql driver
	DriverMySQL = "mysql"
	// DriverSQLite selects the mattn/go-sqlite3 driver
	DriverSQLite = "sqlite3"
)

// DatabaseConfig holds the configuration parameters for database connection
type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver" yaml:"driver"`
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"password"`
	Database     string        `mapstructure:"database" yaml:"database"`
	Path         string        `mapstructure:"path" yaml:"path"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// SetDefaults fills in zero values
func (dc *DatabaseConfig) SetDefaults() {
	if dc.Driver == "" {
		dc.Driver = DriverSQLite
	}
	if dc.Driver == DriverMySQL && dc.Port == 0 {
		dc.Port = 3306
	}
	if dc.Driver == DriverSQLite && dc.Path == "" {
		dc.Path = "cafe-pos.db"
	}
	if dc.Timeout <= 0 {
		dc.Timeout = 30 * time.Second
	}
	if dc.MaxOpenConns == 0 {
		dc.MaxOpenConns = 10
	}
	if dc.MaxIdleConns == 0 {
		dc.MaxIdleConns = 5
	}
}

// Validate checks if the database configuration has all required parameters
func (dc *DatabaseConfig) Validate() error {
	var errs []error

	switch dc.Driver {
	case DriverMySQL:
		if dc.Host == "" {
			errs = append(errs, errors.New("host is required"))
		}
		if dc.Port <= 0 || dc.Port > 65535 {
			errs = append(errs, errors.New("port must be between 1 and 65535"))
		}
		if dc.Username == "" {
			errs = append(errs, errors.New("username is required"))
		}
		if dc.Database == "" {
			errs = append(errs, errors.New("database name is required"))
		}
	case DriverSQLite:
		if dc.Path == "" {
			errs = append(errs, errors.New("path is required for sqlite3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported driver %q (use %s or %s)", dc.Driver, DriverMySQL, DriverSQLite))
	}

	if len(errs) > 0 {
		return fmt.Errorf("database configuration validation failed: %v", errs)
	}
	return nil
}

// DSN returns the Data Source Name for the configured driver
func (dc *DatabaseConfig) DSN() string {
	if dc.Driver == DriverSQLite {
		return dc.Path + "?_foreign_keys=on&_busy_timeout=5000"
	}

	cfg := mysql.NewConfig()
	cfg.User = dc.Username
	cfg.Passwd = dc.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
	cfg.DBName = dc.Database
	cfg.Timeout = dc.Timeout
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// Target describes the connection target for logs without credentials
func (dc *DatabaseConfig) Target() string {
	if dc.Driver == DriverSQLite {
		return dc.Path
	}
	return fmt.Sprintf("%s:%d/%s", dc.Host, dc.Port, dc.Database)
}
