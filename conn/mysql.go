package conn

import (
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"viajeia-backend/config"
)

func mysqlDSN(cfg *config.Config, name string) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// NewMySQL abre una nueva conexión a MySQL, creando la base de datos si no existe.
func NewMySQL(cfg *config.Config) (*sql.DB, error) {
	// Ensure database exists by connecting without DB and creating it if needed
	adminDB, err := sql.Open("mysql", mysqlDSN(cfg, ""))
	if err != nil {
		return nil, err
	}
	if err := adminDB.Ping(); err != nil {
		adminDB.Close()
		return nil, err
	}
	if _, err := adminDB.Exec("CREATE DATABASE IF NOT EXISTS `" + cfg.DBName + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"); err != nil {
		adminDB.Close()
		return nil, err
	}
	adminDB.Close()

	db, err := sql.Open("mysql", mysqlDSN(cfg, cfg.DBName))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
