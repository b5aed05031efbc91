package models

import (
	"database/sql"
	"fmt"

	"DigitalHuman-server/config"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// OpenDB 打开 MySQL 连接（原生 sql.DB + GORM）并自动建表
func OpenDB(cfg config.MySQLConfig, log *zap.Logger) (*sql.DB, *gorm.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn: db,
	}), &gorm.Config{})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("GORM 初始化失败: %w", err)
	}

	if err := Migrate(gormDB); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("数据库连接成功 (Native SQL + GORM)")
	return db, gormDB, nil
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&TaskRecord{}, &DigitalHuman{}); err != nil {
		return fmt.Errorf("自动建表失败: %w", err)
	}
	return nil
}
