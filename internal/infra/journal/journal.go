package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
)

// FileName 是 journal 在状态目录下的文件名。
const FileName = "journal.db"

// Store 把每次 apply 的文件操作追加记录到 SQLite（只追加，不回放、不回滚）。
//
// 约束：
// - dry-run：不打开 journal
// - 同一个 Store 只被执行器单线程使用
type Store struct {
	db    *sql.DB
	runID int64
}

// Entry 是一条已执行（或执行失败）的文件操作。
type Entry struct {
	Src       string
	Dst       string
	Status    string
	Sources   []string
	Duplicate bool
	ErrorCode string
	ErrorMsg  string
	At        time.Time
}

// Run 是一次调用的概要。
type Run struct {
	ID         int64
	UUID       string // 与 report.json 的 run_id 相同
	Action     string
	Source     string
	Target     string
	StartedAt  time.Time
	FinishedAt time.Time // 未结束时为零值
	Cancelled  bool
}

var ErrNoRun = errors.New("journal: 尚未开始 run")

// Open 打开（必要时创建）dir/journal.db。
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("打开 journal 失败：%w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化 journal 失败：%w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		action TEXT NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		cancelled INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		src TEXT NOT NULL,
		dst TEXT NOT NULL,
		status TEXT NOT NULL,
		sources TEXT,
		duplicate INTEGER NOT NULL DEFAULT 0,
		error_code TEXT,
		error_msg TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actions_src ON actions(src);
	CREATE INDEX IF NOT EXISTS idx_actions_dst ON actions(dst);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginRun 开始一次新的 run；之后的 Record 都归属于它。
// r.UUID 为空时自动生成；r.ID/FinishedAt/Cancelled 被忽略。
func (s *Store) BeginRun(r Run) (int64, error) {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	res, err := s.db.Exec(
		`INSERT INTO runs (uuid, action, source, target, started_at) VALUES (?, ?, ?, ?, ?)`,
		r.UUID, r.Action, r.Source, r.Target, formatTime(r.StartedAt),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.runID = id
	return id, nil
}

// Record 追加一条操作记录。
func (s *Store) Record(e Entry) error {
	if s.runID == 0 {
		return ErrNoRun
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO actions (run_id, src, dst, status, sources, duplicate, error_code, error_msg, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, e.Src, e.Dst, e.Status, strings.Join(e.Sources, ","), e.Duplicate,
		e.ErrorCode, e.ErrorMsg, formatTime(e.At),
	)
	return err
}

// FinishRun 记录结束时间与是否被用户取消。
func (s *Store) FinishRun(finishedAt time.Time, cancelled bool) error {
	if s.runID == 0 {
		return ErrNoRun
	}
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, cancelled = ? WHERE id = ?`,
		formatTime(finishedAt), cancelled, s.runID,
	)
	return err
}

// Runs 按开始顺序返回全部 run。
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, uuid, action, source, target, started_at, finished_at, cancelled FROM runs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UUID, &r.Action, &r.Source, &r.Target, &started, &finished, &r.Cancelled); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			r.FinishedAt = parseTime(finished.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Entries 按写入顺序返回某次 run 的全部记录。
func (s *Store) Entries(runID int64) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT src, dst, status, sources, duplicate, error_code, error_msg, at
		 FROM actions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                        Entry
			sources, errCode, errMsg sql.NullString
			at                       string
		)
		if err := rows.Scan(&e.Src, &e.Dst, &e.Status, &sources, &e.Duplicate, &errCode, &errMsg, &at); err != nil {
			return nil, err
		}
		if sources.String != "" {
			e.Sources = strings.Split(sources.String, ",")
		}
		e.ErrorCode = errCode.String
		e.ErrorMsg = errMsg.String
		e.At = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
