package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/log"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultDumpPattern 匹配目录下所有 JSON 导出文件。
const DefaultDumpPattern = "**/*.json"

// DumpFile 是本地目录中的一个导出文件。
type DumpFile struct {
	Path     string
	Language model.Language
}

// FindDumps 在 root 下按 doublestar 模式查找导出文件。
// 语言取自相对路径的第一级目录（en/、ar/ 或 english/、arabic/），无法识别时使用 fallback；
// fallback 为空时跳过该文件。
func FindDumps(root, pattern string, fallback model.Language) ([]DumpFile, error) {
	if pattern == "" {
		pattern = DefaultDumpPattern
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("无效的匹配模式 %q: %w", pattern, err)
	}

	files := make([]DumpFile, 0, len(matches))
	for _, rel := range matches {
		lang := fallback
		if first, _, ok := strings.Cut(rel, "/"); ok {
			if l, err := model.ParseLanguage(first); err == nil {
				lang = l
			}
		}
		if lang == "" {
			log.Warnf("[Pipeline] 无法确定 %s 的语言，跳过", rel)
			continue
		}
		files = append(files, DumpFile{Path: filepath.Join(root, filepath.FromSlash(rel)), Language: lang})
	}
	return files, nil
}

// LoadDumpFile 读取并解析本地导出文件。
func LoadDumpFile(path string) (model.QADump, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.QADump{}, err
	}
	defer f.Close()
	dump, err := DecodeDump(f)
	if err != nil {
		return model.QADump{}, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return dump, nil
}

// IngestDir 导入 root 下的全部导出文件，单个文件失败时继续处理其余文件并返回第一个错误。
func (p *Processor) IngestDir(ctx context.Context, root, pattern string, fallback model.Language) (Stats, error) {
	files, err := FindDumps(root, pattern, fallback)
	if err != nil {
		return Stats{}, err
	}

	var total Stats
	var firstErr error
	for _, f := range files {
		dump, err := LoadDumpFile(f.Path)
		if err == nil {
			var s Stats
			s, err = p.Ingest(ctx, f.Language, dump.Data, nil)
			total.Documents += s.Documents
			total.Skipped += s.Skipped
			total.Chunks += s.Chunks
		}
		if err != nil {
			log.Errorf("[Pipeline] 导入 %s 失败: %v", f.Path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		log.Infof("[Pipeline] 已导入 %s (%s)", f.Path, f.Language)
	}
	return total, firstErr
}
