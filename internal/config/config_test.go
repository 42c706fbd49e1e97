package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// noEnv 让测试不受宿主环境变量影响。
func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) LookupEnv {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadEffective_DefaultsToCwd(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Source != cwd || eff.Target != cwd {
		t.Fatalf("期望 source=target=cwd，实际 %q / %q", eff.Source, eff.Target)
	}
	if eff.Concurrency != DefaultConcurrency || !eff.Journal || eff.Location != time.Local {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.AppendOriginalName || eff.FileCreationTime || eff.XMPSidecar || eff.Recursive || eff.Interactive {
		t.Fatalf("可选行为默认应关闭：%+v", eff)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("没有配置文件时 ConfigPath 应为空：%q", eff.ConfigPath)
	}
}

func TestLoadEffective_ConfigFileInCwdProvidesSource(t *testing.T) {
	cwd := t.TempDir()
	mkdir(t, filepath.Join(cwd, "photos"))
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"source":"photos","target":"sorted","recursive":true,"concurrency":99,"exclude_dirs":["tmp"]}`))

	eff, err := LoadEffective(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Source != filepath.Join(cwd, "photos") {
		t.Fatalf("source 不符合预期：%q", eff.Source)
	}
	if eff.Target != filepath.Join(cwd, "sorted") {
		t.Fatalf("target 不符合预期：%q", eff.Target)
	}
	if !eff.Recursive || eff.Concurrency != MaxConcurrency || len(eff.ExcludeDirs) != 1 {
		t.Fatalf("字段不符合预期：%+v", eff)
	}
}

func TestLoadEffective_Precedence(t *testing.T) {
	cwd := t.TempDir()
	src := filepath.Join(cwd, "src")
	mkdir(t, src)
	writeFile(t, filepath.Join(src, FileName), []byte(`{"append_original_name":true,"xmp_sidecar":true,"file_creation_time":false,"timezone":"Asia/Tokyo"}`))
	writeFile(t, filepath.Join(cwd, DotEnvName), []byte("AUTORENAME_FILE_CREATION_TIME=true\nAUTORENAME_TIMEZONE=UTC\nAUTORENAME_XMP_SIDECAR=false\n"))

	// 进程环境变量覆盖 .env；CLI 覆盖一切。
	env := envMap(map[string]string{"AUTORENAME_XMP_SIDECAR": "true"})
	eff, err := LoadEffective(cwd, CLIArgs{Source: "src", Append: false, AppendSet: true}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.AppendOriginalName {
		t.Fatalf("CLI --append=false 应覆盖配置文件")
	}
	if !eff.FileCreationTime {
		t.Fatalf(".env 应覆盖配置文件")
	}
	if !eff.XMPSidecar {
		t.Fatalf("进程环境变量应覆盖 .env")
	}
	if eff.Location != time.UTC {
		t.Fatalf("期望 UTC，实际 %v", eff.Location)
	}
	if eff.ConfigPath != filepath.Join(src, FileName) {
		t.Fatalf("ConfigPath 不符合预期：%q", eff.ConfigPath)
	}
}

func TestLoadEffective_TargetFromEnvRelativeToCwd(t *testing.T) {
	cwd := t.TempDir()
	env := envMap(map[string]string{"AUTORENAME_TARGET": "out", "AUTORENAME_CONCURRENCY": "0"})

	eff, err := LoadEffective(cwd, CLIArgs{}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Target != filepath.Join(cwd, "out") {
		t.Fatalf("target 不符合预期：%q", eff.Target)
	}
	if eff.Concurrency != 1 {
		t.Fatalf("并发应截断到 1，实际 %d", eff.Concurrency)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cwd := t.TempDir()

	cases := []struct {
		name string
		cli  CLIArgs
		env  LookupEnv
		prep func(t *testing.T)
	}{
		{name: "missing source", cli: CLIArgs{Source: "nope"}, env: noEnv},
		{name: "bad bool", env: envMap(map[string]string{"AUTORENAME_APPEND": "maybe"})},
		{name: "bad concurrency", env: envMap(map[string]string{"AUTORENAME_CONCURRENCY": "many"})},
		{name: "bad timezone", env: envMap(map[string]string{"AUTORENAME_TIMEZONE": "Mars/Olympus"})},
		{name: "bad json", env: noEnv, prep: func(t *testing.T) {
			writeFile(t, filepath.Join(cwd, FileName), []byte(`{`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.prep != nil {
				tc.prep(t)
				defer os.Remove(filepath.Join(cwd, FileName))
			}
			_, err := LoadEffective(cwd, tc.cli, tc.env)
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func mkdir(t *testing.T, p string) {
	t.Helper()
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
