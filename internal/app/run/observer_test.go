package run

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/autorename/internal/config"
	"github.com/John-Robertt/autorename/internal/domain"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	action     string
	phases     []string
	items      []domain.FileResult
	progress   int
	lastDone   int
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig, action string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
	o.action = action
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnProgress(phase string, done, total int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress++
	if done > o.lastDone {
		o.lastDone = done
	}
}

func (o *recordObserver) OnItemDone(idx, total int, res domain.FileResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, res)
}

func TestExecuteWithObserver_EmitsPhaseAndItemEvents(t *testing.T) {
	root := t.TempDir()
	writeMedia(t, root, "a.jpg", "a")
	writeMedia(t, root, "b.jpg", "b")
	writeMedia(t, root, "c.mp4", "c")

	obs := &recordObserver{}
	rr := ExecuteWithObserver(context.Background(), effFor(root, root), Options{
		Action: domain.ActionRename,
		Collector: fakeCollector{
			"a.jpg": dt(2021, 6, 5, 10, 0, 0),
			"b.jpg": dt(2021, 6, 5, 11, 0, 0),
			"c.mp4": dt(2021, 6, 5, 12, 0, 0),
		},
	}, obs)

	if rr.Summary.Renamed != 3 {
		t.Fatalf("期望 3 个 renamed：summary=%+v items=%+v", rr.Summary, rr.Items)
	}
	if obs.startCalls != 1 || obs.action != domain.ActionRename {
		t.Fatalf("OnStart 不符合预期：calls=%d action=%q", obs.startCalls, obs.action)
	}
	wantPhases := []string{"scan", "extract", "resolve", "exec"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if obs.progress != 3 || obs.lastDone != 3 {
		t.Fatalf("进度事件不符合预期：calls=%d lastDone=%d", obs.progress, obs.lastDone)
	}
	if len(obs.items) != 3 {
		t.Fatalf("期望 3 个条目事件，实际 %d", len(obs.items))
	}
	for _, it := range obs.items {
		if it.Status != domain.FileStatusRenamed || filepath.Dir(it.Dst) != root {
			t.Fatalf("条目事件不符合预期：%+v", it)
		}
	}
}

func TestExecuteWithObserver_DryRunHasNoExecPhase(t *testing.T) {
	root := t.TempDir()
	writeMedia(t, root, "a.jpg", "a")

	obs := &recordObserver{}
	_ = ExecuteWithObserver(context.Background(), effFor(root, root), Options{
		Action:    domain.ActionDryRun,
		Collector: fakeCollector{"a.jpg": dt(2021, 6, 5, 10, 0, 0)},
	}, obs)

	wantPhases := []string{"scan", "extract", "resolve"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if len(obs.items) != 1 || obs.items[0].Status != domain.FileStatusPlanned {
		t.Fatalf("dry-run 条目事件不符合预期：%+v", obs.items)
	}
}
