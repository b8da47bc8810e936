package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DBConfig accepts either a full DSN or discrete postgres parts.
type DBConfig struct {
	DSN    string `envconfig:"LEARNHUB_DB_DSN"`
	Driver string `envconfig:"LEARNHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LEARNHUB_DB_HOST"`
	Port     int    `envconfig:"LEARNHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"LEARNHUB_DB_USER"`
	Password string `envconfig:"LEARNHUB_DB_PASSWORD"`
	Name     string `envconfig:"LEARNHUB_DB_NAME"`
	SSLMode  string `envconfig:"LEARNHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEARNHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEARNHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// OperationTimeout bounds every transaction started through db.Client.WithTx.
	OperationTimeout time.Duration `envconfig:"LEARNHUB_DB_OPERATION_TIMEOUT" default:"5s"`
	// SlowQuery is the duration above which a statement is logged as a warning. Zero disables it.
	SlowQuery time.Duration `envconfig:"LEARNHUB_DB_SLOW_QUERY" default:"200ms"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

func (db *DBConfig) resolveDSN() error {
	switch {
	case db.DSN != "":
		return nil
	case db.IsSQLite():
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: DBDriverPostgres,
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
	}
	if db.Password != "" {
		dsn.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
