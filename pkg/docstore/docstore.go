package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/iWorld-y/product_radar/pkg/model"
)

// Key 叙事文档的唯一地址
type Key struct {
	ProductID int
	Language  model.Language
	RunDate   string // YYYYMMDD
}

// Document 已落盘的叙事文档
type Document struct {
	Key     Key
	Path    string
	Content string
}

// idPattern 文件名以产品 ID 开头: "<id>-<safe_name>.md"
var idPattern = regexp.MustCompile(`^(\d+)-`)

// Store 基于文件系统的文档存储。
// 每个 worker 写各自不相交的 key，因此并发写是安全的。
type Store struct {
	root string
}

// NewStore 创建文档存储，root 为输出根目录
func NewStore(root string) *Store {
	return &Store{root: root}
}

// dir 某次运行某语言的文档目录
func (s *Store) dir(lang model.Language, runDate string) string {
	return filepath.Join(s.root, "toolify_analysis_"+runDate, string(lang), "markdown_files")
}

// DocPath 文档的完整路径
func (s *Store) DocPath(key Key, productName string) string {
	return filepath.Join(s.dir(key.Language, key.RunDate),
		fmt.Sprintf("%d-%s.md", key.ProductID, SafeName(productName)))
}

// Exists 指定 key 的文档是否已存在
func (s *Store) Exists(key Key, productName string) bool {
	_, err := os.Stat(s.DocPath(key, productName))
	return err == nil
}

// Put 原子写入文档：先写临时文件再 rename，避免读到半成品
func (s *Store) Put(key Key, productName, content string) (string, error) {
	dir := s.dir(key.Language, key.RunDate)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建文档目录失败: %w", err)
	}

	path := s.DocPath(key, productName)
	tmp, err := os.CreateTemp(dir, ".doc-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	return path, nil
}

// List 列出某语言某次运行的全部文档。
// 文件名解析不出 ID 的文件进入第二个返回值，上报而不静默丢弃。
func (s *Store) List(lang model.Language, runDate string) ([]Document, []string, error) {
	dir := s.dir(lang, runDate)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("读取文档目录失败: %w", err)
	}

	var docs []Document
	var unparsable []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}

		m := idPattern.FindStringSubmatch(name)
		if m == nil {
			unparsable = append(unparsable, name)
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			unparsable = append(unparsable, name)
			continue
		}

		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("读取文档失败 [%s]: %w", name, err)
		}

		docs = append(docs, Document{
			Key:     Key{ProductID: id, Language: lang, RunDate: runDate},
			Path:    path,
			Content: string(content),
		})
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Key.ProductID < docs[j].Key.ProductID
	})
	return docs, unparsable, nil
}

// SafeName 产品名转安全文件名片段，非字母数字统一替换为下划线
func SafeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
