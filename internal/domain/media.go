package domain

import "strings"

// MediaKind 决定哪些时间来源会被尝试（视频永远不读 EXIF）。
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindImage
	KindVideo
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

var kindByExt = map[string]MediaKind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".arw":  KindImage,
	".dng":  KindImage,
	".heic": KindImage,
	".heif": KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".mov":  KindVideo,
	".mp4":  KindVideo,
	".m4v":  KindVideo,
}

// KindOf 按扩展名（大小写不敏感）判断媒体类型；不认识的扩展名返回 KindUnknown。
func KindOf(ext string) MediaKind {
	return kindByExt[strings.ToLower(ext)]
}

// MediaFile 描述一次扫描得到的媒体文件（只做 stat，不读内容）。
//
// 不变量：
// - AbsPath 必须是 clean + absolute
// - RelPath 相对扫描根目录，是稳定排序的依据
type MediaFile struct {
	AbsPath string
	RelPath string
	Base    string // filename without ext
	Ext     string // 原始大小写，例如 ".JPG"
	Kind    MediaKind
	Size    int64
}
