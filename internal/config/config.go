package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/John-Robertt/autorename/internal/domain"
)

const (
	// FileName 是可选的 JSON 配置文件名。
	FileName = "autorename.json"
	// DotEnvName 是 cwd 下可选的 .env 文件名。
	DotEnvName = ".env"
	// EnvPrefix 是环境变量前缀。
	EnvPrefix = "AUTORENAME_"
)

// ErrCodeInvalid 表示配置无法读取/解析，或字段不合法。
const ErrCodeInvalid = domain.ErrCodeConfigInvalid

const (
	// DefaultConcurrency 是提取阶段并发的内置默认值。
	DefaultConcurrency = 4
	MaxConcurrency     = 32
)

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --append=false 必须能覆盖 config 里的 true。
type CLIArgs struct {
	Source string
	Target string

	Interactive    bool
	InteractiveSet bool

	Append    bool
	AppendSet bool

	FileCreation    bool
	FileCreationSet bool

	XMPSidecar    bool
	XMPSidecarSet bool

	Recursive    bool
	RecursiveSet bool

	LogFile    string
	LogFileSet bool
}

// FileConfig 对应 autorename.json 的解析结构。
type FileConfig struct {
	Source             string   `json:"source"`
	Target             string   `json:"target"`
	Interactive        *bool    `json:"interactive"`
	AppendOriginalName *bool    `json:"append_original_name"`
	FileCreationTime   *bool    `json:"file_creation_time"`
	XMPSidecar         *bool    `json:"xmp_sidecar"`
	Recursive          *bool    `json:"recursive"`
	ExcludeDirs        []string `json:"exclude_dirs"`
	Extensions         []string `json:"extensions"`
	Concurrency        int      `json:"concurrency"`
	Journal            *bool    `json:"journal"`
	LogFile            string   `json:"log_file"`
	Timezone           string   `json:"timezone"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Source string
	Target string

	Interactive        bool
	AppendOriginalName bool
	FileCreationTime   bool
	XMPSidecar         bool
	Recursive          bool

	ExcludeDirs []string
	Extensions  []string
	Concurrency int
	Journal     bool
	LogFile     string
	Location    *time.Location

	// ConfigPath 是实际读取到的配置文件；没有则为空。
	ConfigPath string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s：%q 无效：%v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s：%q 无效", e.Code, e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LookupEnv 与 os.LookupEnv 同签名，测试时可替换。
type LookupEnv func(key string) (string, bool)

// LoadEffective 发现并读取配置，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 source：尝试读取 <source>/autorename.json（可选）
// 2) CLI 未提供 source：尝试读取 <cwd>/autorename.json（可选）；其中的 source 生效，缺省为 cwd
//
// 覆盖优先级（固定）：CLI > 进程环境变量 > <cwd>/.env > 配置文件 > 默认值。
// CLI/环境变量里的相对路径相对 cwd；配置文件里的相对路径相对配置文件所在目录。
func LoadEffective(cwd string, cli CLIArgs, lookup LookupEnv) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotenvPath := filepath.Join(cwdAbs, DotEnvName)
	dotenv, err := readDotEnv(dotenvPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: dotenvPath, Err: err}
	}
	env := layeredEnv{lookup: lookup, dotenv: dotenv, dotenvPath: dotenvPath}

	var (
		cfgDir string
		source string
	)
	if strings.TrimSpace(cli.Source) != "" {
		source = absCleanFrom(cwdAbs, cli.Source)
		cfgDir = source
	} else {
		cfgDir = cwdAbs
	}

	cfgPath := filepath.Join(cfgDir, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		cfgPath = ""
	}
	if source == "" {
		source = cwdAbs
		if strings.TrimSpace(fc.Source) != "" {
			source = absCleanFrom(cfgDir, fc.Source)
		}
	}

	return merge(cwdAbs, cfgDir, cfgPath, source, cli, env, fc)
}

func merge(cwd, cfgDir, cfgPath, source string, cli CLIArgs, env layeredEnv, fc FileConfig) (EffectiveConfig, error) {
	if err := checkDir(source); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: source, Err: err}
	}

	eff := EffectiveConfig{
		Source:      source,
		Target:      source,
		Journal:     true,
		Concurrency: DefaultConcurrency,
		ExcludeDirs: append([]string(nil), fc.ExcludeDirs...),
		Extensions:  append([]string(nil), fc.Extensions...),
		ConfigPath:  cfgPath,
	}

	// target：CLI > env > config > source
	switch {
	case strings.TrimSpace(cli.Target) != "":
		eff.Target = absCleanFrom(cwd, cli.Target)
	case env.has("TARGET"):
		v, _ := env.get("TARGET")
		eff.Target = absCleanFrom(cwd, v)
	case strings.TrimSpace(fc.Target) != "":
		eff.Target = absCleanFrom(cfgDir, fc.Target)
	}

	var err error
	if eff.Interactive, err = pickBool(cli.Interactive, cli.InteractiveSet, env, "INTERACTIVE", fc.Interactive, false); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.AppendOriginalName, err = pickBool(cli.Append, cli.AppendSet, env, "APPEND", fc.AppendOriginalName, false); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.FileCreationTime, err = pickBool(cli.FileCreation, cli.FileCreationSet, env, "FILE_CREATION_TIME", fc.FileCreationTime, false); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.XMPSidecar, err = pickBool(cli.XMPSidecar, cli.XMPSidecarSet, env, "XMP_SIDECAR", fc.XMPSidecar, false); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.Recursive, err = pickBool(cli.Recursive, cli.RecursiveSet, env, "RECURSIVE", fc.Recursive, false); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.Journal, err = pickBool(false, false, env, "JOURNAL", fc.Journal, true); err != nil {
		return EffectiveConfig{}, err
	}

	// concurrency：env > config > 默认；超出 [1, 32] 截断。
	if fc.Concurrency != 0 {
		eff.Concurrency = fc.Concurrency
	}
	if v, ok := env.get("CONCURRENCY"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: env.where("CONCURRENCY"), Err: err}
		}
		eff.Concurrency = n
	}
	eff.Concurrency = clamp(eff.Concurrency, 1, MaxConcurrency)

	// log_file：CLI > env > config
	switch {
	case cli.LogFileSet:
		eff.LogFile = absCleanFrom(cwd, cli.LogFile)
	case env.has("LOG_FILE"):
		v, _ := env.get("LOG_FILE")
		eff.LogFile = absCleanFrom(cwd, v)
	case strings.TrimSpace(fc.LogFile) != "":
		eff.LogFile = absCleanFrom(cfgDir, fc.LogFile)
	}

	// timezone：env > config > Local
	tz := strings.TrimSpace(fc.Timezone)
	tzWhere := cfgPath
	if v, ok := env.get("TIMEZONE"); ok {
		tz = strings.TrimSpace(v)
		tzWhere = env.where("TIMEZONE")
	}
	loc, err := loadLocation(tz)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: tzWhere, Err: err}
	}
	eff.Location = loc

	return eff, nil
}

func pickBool(cliVal, cliSet bool, env layeredEnv, key string, fileVal *bool, def bool) (bool, error) {
	if cliSet {
		return cliVal, nil
	}
	if v, ok := env.get(key); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, &Error{Code: ErrCodeInvalid, Path: env.where(key), Err: fmt.Errorf("%s%s 不是布尔值：%q", EnvPrefix, key, v)}
		}
		return b, nil
	}
	if fileVal != nil {
		return *fileVal, nil
	}
	return def, nil
}

func loadLocation(tz string) (*time.Location, error) {
	switch tz {
	case "", "Local", "local":
		return time.Local, nil
	default:
		return time.LoadLocation(tz)
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func checkDir(p string) error {
	fi, err := os.Stat(p)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("不是目录")
	}
	return nil
}

// layeredEnv：进程环境变量优先，其次 .env。
type layeredEnv struct {
	lookup     LookupEnv
	dotenv     map[string]string
	dotenvPath string
}

func (e layeredEnv) get(key string) (string, bool) {
	if v, ok := e.lookup(EnvPrefix + key); ok {
		return v, true
	}
	v, ok := e.dotenv[EnvPrefix+key]
	return v, ok
}

func (e layeredEnv) has(key string) bool {
	v, ok := e.get(key)
	return ok && strings.TrimSpace(v) != ""
}

// where 返回某个键实际来自哪里（错误信息用）。
func (e layeredEnv) where(key string) string {
	if _, ok := e.lookup(EnvPrefix + key); ok {
		return "env:" + EnvPrefix + key
	}
	return e.dotenvPath
}

func readDotEnv(path string) (map[string]string, error) {
	m, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return m, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
