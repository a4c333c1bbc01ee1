package ipclass

import (
	"context"
	"database/sql"
	"fmt"
	"net/netip"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL 驱动
	_ "github.com/lib/pq"              // PostgreSQL 驱动
)

const (
	createBlocksTableMySQL = `
		CREATE TABLE IF NOT EXISTS reserved_blocks (
			prefix VARCHAR(49) PRIMARY KEY,
			description TEXT,
			rfc VARCHAR(32),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB;`

	createBlocksTablePostgres = `
		CREATE TABLE IF NOT EXISTS reserved_blocks (
			prefix VARCHAR(49) PRIMARY KEY,
			description TEXT,
			rfc VARCHAR(32),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`
)

// SQLBlockStorage 是地址块注册表的 SQL 实现
type SQLBlockStorage struct {
	db         *sql.DB
	driverName string
}

// SQLConfig 存储 SQL 连接配置
type SQLConfig struct {
	DriverName      string
	DataSourceName  string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewSQLBlockStorage 创建一个新的 SQL 存储
func NewSQLBlockStorage(ctx context.Context, config SQLConfig) (*SQLBlockStorage, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 验证驱动名称
	if config.DriverName != "mysql" && config.DriverName != "postgres" {
		return nil, fmt.Errorf("%w: %s (支持: mysql, postgres)", ErrUnsupportedDriver, config.DriverName)
	}

	db, err := sql.Open(config.DriverName, config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %v", err)
	}

	// 设置连接池参数
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %v", err)
	}

	storage, err := NewSQLBlockStorageFromDB(ctx, db, config.DriverName)
	if err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// NewSQLBlockStorageFromDB 基于已有的数据库连接创建 SQL 存储并初始化表结构
// 连接的生命周期由返回的存储接管
func NewSQLBlockStorageFromDB(ctx context.Context, db *sql.DB, driverName string) (*SQLBlockStorage, error) {
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("%w: %s (支持: mysql, postgres)", ErrUnsupportedDriver, driverName)
	}

	storage := &SQLBlockStorage{
		db:         db,
		driverName: driverName,
	}

	if err := storage.initTables(ctx); err != nil {
		return nil, err
	}

	return storage, nil
}

// initTables 创建必要的数据库表
func (s *SQLBlockStorage) initTables(ctx context.Context) error {
	createSQL := createBlocksTableMySQL
	if s.driverName == "postgres" {
		createSQL = createBlocksTablePostgres
	}

	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("创建 reserved_blocks 表失败: %v", err)
	}
	return nil
}

// dialect 按驱动选择语句
func (s *SQLBlockStorage) dialect(mysqlSQL, postgresSQL string) string {
	if s.driverName == "postgres" {
		return postgresSQL
	}
	return mysqlSQL
}

// Close 关闭数据库连接
func (s *SQLBlockStorage) Close() error {
	return s.db.Close()
}

// AddBlock 实现 BlockStorage 接口
func (s *SQLBlockStorage) AddBlock(ctx context.Context, b Block) error {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return err
	}

	if !b.Prefix.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidPrefix, b.Prefix)
	}
	prefix := b.Prefix.Masked().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %v", err)
	}
	defer tx.Rollback()

	var count int
	checkSQL := s.dialect(
		"SELECT COUNT(*) FROM reserved_blocks WHERE prefix = ?",
		"SELECT COUNT(*) FROM reserved_blocks WHERE prefix = $1",
	)
	if err := tx.QueryRowContext(ctx, checkSQL, prefix).Scan(&count); err != nil {
		return fmt.Errorf("检查地址块是否存在失败: %v", err)
	}

	if count > 0 {
		return fmt.Errorf("%w: %s", ErrBlockExists, prefix)
	}

	insertSQL := s.dialect(
		"INSERT INTO reserved_blocks (prefix, description, rfc) VALUES (?, ?, ?)",
		"INSERT INTO reserved_blocks (prefix, description, rfc) VALUES ($1, $2, $3)",
	)
	if _, err := tx.ExecContext(ctx, insertSQL, prefix, b.Description, b.RFC); err != nil {
		return fmt.Errorf("添加地址块失败: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %v", err)
	}

	return nil
}

// RemoveBlock 实现 BlockStorage 接口
func (s *SQLBlockStorage) RemoveBlock(ctx context.Context, prefix string) error {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %v", err)
	}
	defer tx.Rollback()

	var count int
	checkSQL := s.dialect(
		"SELECT COUNT(*) FROM reserved_blocks WHERE prefix = ?",
		"SELECT COUNT(*) FROM reserved_blocks WHERE prefix = $1",
	)
	if err := tx.QueryRowContext(ctx, checkSQL, prefix).Scan(&count); err != nil {
		return fmt.Errorf("检查地址块是否存在失败: %v", err)
	}

	if count == 0 {
		return fmt.Errorf("%w: %s", ErrBlockNotFound, prefix)
	}

	deleteSQL := s.dialect(
		"DELETE FROM reserved_blocks WHERE prefix = ?",
		"DELETE FROM reserved_blocks WHERE prefix = $1",
	)
	if _, err := tx.ExecContext(ctx, deleteSQL, prefix); err != nil {
		return fmt.Errorf("移除地址块失败: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %v", err)
	}

	return nil
}

// HasBlock 实现 BlockStorage 接口
func (s *SQLBlockStorage) HasBlock(ctx context.Context, prefix string) (bool, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var count int
	query := s.dialect(
		"SELECT COUNT(*) FROM reserved_blocks WHERE prefix = ?",
		"SELECT COUNT(*) FROM reserved_blocks WHERE prefix = $1",
	)
	if err := s.db.QueryRowContext(ctx, query, prefix).Scan(&count); err != nil {
		return false, fmt.Errorf("检查地址块是否存在失败: %v", err)
	}

	return count > 0, nil
}

// GetBlocks 实现 BlockStorage 接口
func (s *SQLBlockStorage) GetBlocks(ctx context.Context) ([]Block, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := "SELECT prefix, description, rfc FROM reserved_blocks ORDER BY prefix"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("获取地址块列表失败: %v", err)
	}
	defer rows.Close()

	var blocks []Block
	for rows.Next() {
		var prefix string
		var desc, rfc sql.NullString
		if err := rows.Scan(&prefix, &desc, &rfc); err != nil {
			return nil, fmt.Errorf("读取地址块失败: %v", err)
		}

		p, err := netip.ParsePrefix(prefix)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPrefix, prefix, err)
		}

		blocks = append(blocks, Block{
			Prefix:      p.Masked(),
			Description: desc.String,
			RFC:         rfc.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代结果集失败: %v", err)
	}

	return blocks, nil
}

// BlockCount 实现 BlockStorage 接口
func (s *SQLBlockStorage) BlockCount(ctx context.Context) (int, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int
	query := "SELECT COUNT(*) FROM reserved_blocks"
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("获取地址块数量失败: %v", err)
	}

	return count, nil
}
