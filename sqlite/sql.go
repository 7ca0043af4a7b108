package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/hoshinonyaruko/snakeplus/structs"
)

var ErrUnknownOption = errors.New("unknown option")

// 存储键与浏览器版本保持一致
const (
	keyBestClassic = "snakeplus_best_classic"
	keyBestNoWalls = "snakeplus_best_nowalls"
	keySound       = "snakeplus_sound"
	keyHaptics     = "snakeplus_haptics"
	keyDpad        = "snakeplus_dpad"
	keyContrast    = "snakeplus_contrast"
	keyMode        = "snakeplus_mode"
)

const createSettingsTableSQL = `
CREATE TABLE IF NOT EXISTS Settings (
    Key TEXT PRIMARY KEY,
    Value TEXT
);
`

func executeSQL(db *sql.DB, sqlStatement string) {
	_, err := db.Exec(sqlStatement)
	if err != nil {
		log.Fatalf("Error executing SQL statement: %s\n%s", sqlStatement, err)
	}
}

func InitializeDatabase(db *sql.DB) {
	executeSQL(db, createSettingsTableSQL)
}

// Store is a flat key-value view over the Settings table. Absent keys read
// as their documented defaults; the last writer wins.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT Value FROM Settings WHERE Key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO Settings (Key, Value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// BestKey returns the storage key of the best score for mode.
func BestKey(mode structs.Mode) string {
	if mode == structs.Wrapping {
		return keyBestNoWalls
	}
	return keyBestClassic
}

// GetBest 读取最高分，不存在或无法解析时为0
func (s *Store) GetBest(mode structs.Mode) (int, error) {
	v, ok, err := s.get(BestKey(mode))
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *Store) SetBest(mode structs.Mode, score int) error {
	return s.set(BestKey(mode), strconv.Itoa(score))
}

// Best implements snake.ScoreKeeper.
func (s *Store) Best(mode structs.Mode) int {
	n, err := s.GetBest(mode)
	if err != nil {
		log.Printf("load best score for %s: %v", mode, err)
	}
	return n
}

// SaveBest implements snake.ScoreKeeper. 写入失败只记录日志，不影响游戏
func (s *Store) SaveBest(mode structs.Mode, score int) {
	if err := s.SetBest(mode, score); err != nil {
		log.Printf("save best score for %s: %v", mode, err)
	}
}

func (s *Store) GetBool(key string, fallback bool) (bool, error) {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return fallback, err
	}
	return v == "1", nil
}

func (s *Store) SetBool(key string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return s.set(key, v)
}

func optionKey(name string) (string, error) {
	switch name {
	case "sound":
		return keySound, nil
	case "haptics":
		return keyHaptics, nil
	case "dpad":
		return keyDpad, nil
	case "contrast":
		return keyContrast, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOption, name)
}

// LoadOptions reads all option flags, falling back to structs.DefaultOptions.
func (s *Store) LoadOptions() (structs.Options, error) {
	opts := structs.DefaultOptions()
	var err error
	if opts.Sound, err = s.GetBool(keySound, opts.Sound); err != nil {
		return opts, err
	}
	if opts.Haptics, err = s.GetBool(keyHaptics, opts.Haptics); err != nil {
		return opts, err
	}
	if opts.Dpad, err = s.GetBool(keyDpad, opts.Dpad); err != nil {
		return opts, err
	}
	if opts.Contrast, err = s.GetBool(keyContrast, opts.Contrast); err != nil {
		return opts, err
	}
	return opts, nil
}

// SetOption stores one flag by its short name: sound, haptics, dpad or contrast.
func (s *Store) SetOption(name string, value bool) error {
	key, err := optionKey(name)
	if err != nil {
		return err
	}
	return s.SetBool(key, value)
}

// GetMode 返回上次使用的模式，默认 Classic
func (s *Store) GetMode() (structs.Mode, error) {
	v, ok, err := s.get(keyMode)
	if err != nil || !ok {
		return structs.Walled, err
	}
	if v == structs.Wrapping.ID() {
		return structs.Wrapping, nil
	}
	return structs.Walled, nil
}

func (s *Store) SetMode(mode structs.Mode) error {
	return s.set(keyMode, mode.ID())
}
