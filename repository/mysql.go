package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go-monopoly/entities"

	_ "github.com/go-sql-driver/mysql"
)

const createSettlements = `CREATE TABLE IF NOT EXISTS settlements (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	game_id VARCHAR(64) NOT NULL,
	winner VARCHAR(64) NOT NULL,
	players INT NOT NULL,
	total_usdt DOUBLE NOT NULL,
	payouts TEXT NOT NULL,
	ended_at DATETIME NOT NULL
)`

// SettlementRepo 结算历史，只追加
type SettlementRepo struct {
	db *sql.DB
}

func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("MySQL 打开失败: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("MySQL 连接失败: %w", err)
	}
	return db, nil
}

func NewSettlementRepo(db *sql.DB) *SettlementRepo {
	return &SettlementRepo{db: db}
}

func (r *SettlementRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSettlements); err != nil {
		return fmt.Errorf("创建 settlements 表失败: %w", err)
	}
	return nil
}

func (r *SettlementRepo) Save(ctx context.Context, s entities.Settlement) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO settlements (game_id, winner, players, total_usdt, payouts, ended_at) VALUES (?, ?, ?, ?, ?, ?)",
		s.GameID, s.Winner, s.Players, s.TotalUSDT, s.Payouts, s.EndedAt)
	if err != nil {
		return fmt.Errorf("写入结算记录失败: %w", err)
	}
	return nil
}

// Recent 最近 limit 局，按结束时间倒序
func (r *SettlementRepo) Recent(ctx context.Context, limit int) ([]entities.Settlement, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT game_id, winner, players, total_usdt, payouts, ended_at FROM settlements ORDER BY ended_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("查询结算记录失败: %w", err)
	}
	defer rows.Close()

	var out []entities.Settlement
	for rows.Next() {
		var s entities.Settlement
		if err := rows.Scan(&s.GameID, &s.Winner, &s.Players, &s.TotalUSDT, &s.Payouts, &s.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
