package web

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEmbeddedFallback(t *testing.T) {
	s := NewStore("", time.Minute)

	hello, err := s.Get(PageHello)
	require.NoError(t, err)
	assert.Contains(t, string(hello), "Hello!")

	notFound, err := s.Get(PageNotFound)
	require.NoError(t, err)
	assert.Contains(t, string(notFound), "Oops!")

	_, err = s.Get("missing.html")
	assert.Error(t, err)
}

func TestStoreRejectsPaths(t *testing.T) {
	s := NewStore(t.TempDir(), time.Minute)
	for _, name := range []string{"", "../etc/passwd", "a/b.html", ".."} {
		_, err := s.Get(name)
		assert.ErrorIs(t, err, ErrInvalidPage, name)
	}
}

func TestStoreDocRootAndCache(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, PageHello)
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	s := NewStore(dir, time.Hour)
	body, err := s.Get(PageHello)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(body))

	// 缓存未过期，磁盘变更不可见
	require.NoError(t, os.WriteFile(file, []byte("v2"), 0o644))
	body, err = s.Get(PageHello)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(body))

	s.Invalidate()
	body, err = s.Get(PageHello)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(body))

	// DocRoot 中缺失的页面回退到内置页面
	body, err = s.Get(PageNotFound)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Oops!")
}

func TestStoreZeroTTLDisablesCache(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, PageHello)
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	s := NewStore(dir, 0)
	_, err := s.Get(PageHello)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, []byte("b"), 0o644))
	body, err := s.Get(PageHello)
	require.NoError(t, err)
	assert.Equal(t, "b", string(body))
}

func TestStoreReset(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PageHello), []byte("custom"), 0o644))

	s := NewStore("", time.Hour)
	body, err := s.Get(PageHello)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Hello!")

	s.Reset(dir, time.Hour)
	assert.Equal(t, dir, s.Root())
	body, err = s.Get(PageHello)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(body))
}

func TestStoreConcurrentGet(t *testing.T) {
	s := NewStore("", time.Minute)
	var wg sync.WaitGroup
	for _i := 0; _i < 32; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := s.Get(PageHello)
			assert.NoError(t, err)
			assert.NotEmpty(t, body)
		}()
	}
	wg.Wait()
}
