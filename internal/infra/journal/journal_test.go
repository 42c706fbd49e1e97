package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_RecordAndReadBack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".autorename")

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer s.Close()

	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	id, err := s.BeginRun(Run{UUID: "run-1", Action: "rename", Source: "/photos", Target: "/photos", StartedAt: start})
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	if err := s.Record(Entry{Src: "/photos/a.jpg", Dst: "/photos/2021.jpg", Status: "renamed", Sources: []string{"exif_original", "filename"}}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(Entry{Src: "/photos/b.jpg", Dst: "/photos/DUPLICATE_b.jpg", Status: "failed", Duplicate: true, ErrorCode: "target_conflict", ErrorMsg: "exists"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.FinishRun(start.Add(time.Second), false); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	entries, err := s.Entries(id)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d", len(entries))
	}
	if entries[0].Src != "/photos/a.jpg" || len(entries[0].Sources) != 2 || entries[0].Sources[1] != "filename" {
		t.Fatalf("第一条记录不符合预期：%+v", entries[0])
	}
	if !entries[1].Duplicate || entries[1].ErrorCode != "target_conflict" {
		t.Fatalf("第二条记录不符合预期：%+v", entries[1])
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].UUID != "run-1" || !runs[0].StartedAt.Equal(start) || !runs[0].FinishedAt.Equal(start.Add(time.Second)) {
		t.Fatalf("run 概要不符合预期：%+v", runs)
	}

	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("期望 journal 文件存在：%v", err)
	}
}

func TestStore_AppendsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if _, err := s.BeginRun(Run{Action: "copy", Source: "/a", Target: "/b", StartedAt: time.Now()}); err != nil {
			t.Fatalf("BeginRun: %v", err)
		}
		if err := s.FinishRun(time.Now(), i == 1); err != nil {
			t.Fatalf("FinishRun: %v", err)
		}
		s.Close()
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer s.Close()
	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].Cancelled || !runs[1].Cancelled || runs[0].UUID == "" || runs[0].UUID == runs[1].UUID {
		t.Fatalf("期望两次 run 依次追加，实际 %+v", runs)
	}
}

func TestStore_RecordWithoutRun(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer s.Close()
	if err := s.Record(Entry{Src: "a", Dst: "b", Status: "renamed"}); !errors.Is(err, ErrNoRun) {
		t.Fatalf("期望 ErrNoRun，实际 %v", err)
	}
}
