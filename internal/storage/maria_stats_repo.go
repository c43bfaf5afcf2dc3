package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MariaStatsRepo реализует StatsRepo для базы данных MariaDB/MySQL.
// Использует таблицу player_stats для хранения накопленных счётчиков.
type MariaStatsRepo struct {
	db *sql.DB
}

// NewMariaStatsRepo создает новый репозиторий статистики для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
//
// Возвращает:
//
//	*MariaStatsRepo - экземпляр репозитория
//	error - ошибка при подключении или создании таблицы
func NewMariaStatsRepo(dsn string) (*MariaStatsRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaStatsRepo{db: db}

	// Создаем таблицу, если она не существует
	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

// createTable создает таблицу player_stats, если она не существует.
func (r *MariaStatsRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS player_stats (
			user_id    BIGINT UNSIGNED PRIMARY KEY,
			kills      BIGINT UNSIGNED NOT NULL DEFAULT 0,
			deaths     BIGINT UNSIGNED NOT NULL DEFAULT 0,
			shots      BIGINT UNSIGNED NOT NULL DEFAULT 0,
			updated_at TIMESTAMP       DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE       CURRENT_TIMESTAMP,
			INDEX idx_kills (kills)
		) ENGINE=InnoDB
	`

	_, err := r.db.Exec(query)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы player_stats: %w", err)
	}

	return nil
}

// Apply прибавляет дельту к счётчикам игрока.
// Использует INSERT ... ON DUPLICATE KEY UPDATE с аддитивным обновлением.
func (r *MariaStatsRepo) Apply(ctx context.Context, userID uint64, delta StatsDelta) error {
	// Валидация входных данных
	if userID == 0 {
		return fmt.Errorf("недействительный userID: %d", userID)
	}

	query := `
		INSERT INTO player_stats (user_id, kills, deaths, shots)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			kills  = kills  + VALUES(kills),
			deaths = deaths + VALUES(deaths),
			shots  = shots  + VALUES(shots),
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query, userID, delta.Kills, delta.Deaths, delta.Shots)
	if err != nil {
		return fmt.Errorf("ошибка записи статистики для пользователя %d: %w", userID, err)
	}

	return nil
}

// Load загружает статистику игрока из базы данных.
func (r *MariaStatsRepo) Load(ctx context.Context, userID uint64) (PlayerStats, bool, error) {
	// Валидация входных данных
	if userID == 0 {
		return PlayerStats{}, false, fmt.Errorf("недействительный userID: %d", userID)
	}

	query := `SELECT user_id, kills, deaths, shots FROM player_stats WHERE user_id = ?`

	var s PlayerStats
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.Kills, &s.Deaths, &s.Shots)

	if err == sql.ErrNoRows {
		// Записи нет - игрок ещё не играл
		return PlayerStats{}, false, nil
	}

	if err != nil {
		return PlayerStats{}, false, fmt.Errorf("ошибка загрузки статистики для пользователя %d: %w", userID, err)
	}

	return s, true, nil
}

// Delete удаляет статистику игрока.
func (r *MariaStatsRepo) Delete(ctx context.Context, userID uint64) error {
	// Валидация входных данных
	if userID == 0 {
		return fmt.Errorf("недействительный userID: %d", userID)
	}

	query := `DELETE FROM player_stats WHERE user_id = ?`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления статистики для пользователя %d: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("статистика для пользователя %d не найдена", userID)
	}

	return nil
}

// BatchApply прибавляет дельты нескольких игроков в одной транзакции.
// Это оптимизация для периодического сброса буфера тик-драйвера.
func (r *MariaStatsRepo) BatchApply(ctx context.Context, deltas map[uint64]StatsDelta) error {
	if len(deltas) == 0 {
		return nil // Нечего сохранять
	}

	// Начинаем транзакцию
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	// Подготавливаем запрос
	query := `
		INSERT INTO player_stats (user_id, kills, deaths, shots)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			kills  = kills  + VALUES(kills),
			deaths = deaths + VALUES(deaths),
			shots  = shots  + VALUES(shots),
			updated_at = CURRENT_TIMESTAMP
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	// Выполняем запросы для каждой дельты
	for userID, delta := range deltas {
		// Валидация каждой записи
		if userID == 0 {
			return fmt.Errorf("недействительный userID в batch: %d", userID)
		}

		_, err = stmt.ExecContext(ctx, userID, delta.Kills, delta.Deaths, delta.Shots)
		if err != nil {
			return fmt.Errorf("ошибка записи статистики для пользователя %d в batch: %w", userID, err)
		}
	}

	// Фиксируем транзакцию
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	return nil
}

// Top возвращает лучших игроков по фрагам.
func (r *MariaStatsRepo) Top(ctx context.Context, limit int) ([]PlayerStats, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT user_id, kills, deaths, shots
		FROM player_stats
		ORDER BY kills DESC, deaths ASC, user_id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса таблицы лидеров: %w", err)
	}
	defer rows.Close()

	var result []PlayerStats
	for rows.Next() {
		var s PlayerStats
		if err := rows.Scan(&s.UserID, &s.Kills, &s.Deaths, &s.Shots); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки таблицы лидеров: %w", err)
		}
		result = append(result, s)
	}

	return result, rows.Err()
}

// Close закрывает соединение с базой данных.
func (r *MariaStatsRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
