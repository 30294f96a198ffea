package buffer

import "sync"

// 按尺寸分组的读缓冲池，连接处理器每次读取请求时借用
var pools sync.Map // map[int]*sync.Pool

func poolFor(size int) *sync.Pool {
	if p, ok := pools.Load(size); ok {
		return p.(*sync.Pool)
	}
	p, _ := pools.LoadOrStore(size, &sync.Pool{
		New: func() any {
			b := make([]byte, size)
			return &b
		},
	})
	return p.(*sync.Pool)
}

// GetBuffer 返回长度为 size 的已清零缓冲区
func GetBuffer(size int) *[]byte {
	if size <= 0 {
		b := []byte{}
		return &b
	}
	bp := poolFor(size).Get().(*[]byte)
	clear(*bp)
	return bp
}

func PutBuffer(bp *[]byte) {
	if bp == nil || len(*bp) == 0 {
		return
	}
	poolFor(len(*bp)).Put(bp)
}
