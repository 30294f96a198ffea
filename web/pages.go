package web

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	PageHello    = "hello.html"
	PageNotFound = "404.html"
)

//go:embed static/*.html
var embeddedPages embed.FS

var ErrInvalidPage = errors.New("invalid page name")

type pageItem struct {
	body     []byte
	expireAt time.Time
}

// Store 提供页面内容：优先读取 DocRoot，缺失时回退到内置页面。
// 内容按 TTL 缓存，同一页面的并发未命中只读取一次磁盘。
type Store struct {
	mu    sync.RWMutex
	root  string
	ttl   time.Duration
	items map[string]pageItem
	sf    singleflight.Group
}

func NewStore(root string, ttl time.Duration) *Store {
	return &Store{
		root:  root,
		ttl:   ttl,
		items: make(map[string]pageItem),
	}
}

// Get 返回页面内容，返回的切片只读
func (s *Store) Get(name string) ([]byte, error) {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPage, name)
	}

	s.mu.RLock()
	it, ok := s.items[name]
	s.mu.RUnlock()
	if ok && time.Now().Before(it.expireAt) {
		return it.body, nil
	}

	v, err, _ := s.sf.Do(name, func() (interface{}, error) {
		body, err := s.load(name)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.ttl > 0 {
			s.items[name] = pageItem{body: body, expireAt: time.Now().Add(s.ttl)}
		}
		s.mu.Unlock()
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Store) load(name string) ([]byte, error) {
	s.mu.RLock()
	root := s.root
	s.mu.RUnlock()

	if root != "" {
		body, err := os.ReadFile(filepath.Join(root, name))
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取页面 %s 失败: %w", name, err)
		}
	}

	body, err := embeddedPages.ReadFile(path.Join("static", name))
	if err != nil {
		return nil, fmt.Errorf("页面不存在 %s: %w", name, err)
	}
	return body, nil
}

// Reset 更新目录和缓存时间并清空缓存
func (s *Store) Reset(root string, ttl time.Duration) {
	s.mu.Lock()
	s.root = root
	s.ttl = ttl
	s.items = make(map[string]pageItem)
	s.mu.Unlock()
}

// Invalidate 清空缓存
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.items = make(map[string]pageItem)
	s.mu.Unlock()
}

// Root 返回当前页面目录
func (s *Store) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}
