package handler

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/qist/tpserve/logger"
	"github.com/qist/tpserve/utils/buffer"
	"github.com/qist/tpserve/web"
	"github.com/segmentio/ksuid"
)

var (
	getPrefix   = []byte("GET / HTTP/1.1\r\n")
	sleepPrefix = []byte("GET /sleep HTTP/1.1\r\n")
)

const (
	StatusOK          = "HTTP/1.1 200 OK"
	StatusNotFound    = "HTTP/1.1 404 NOT FOUND"
	StatusServerError = "HTTP/1.1 500 INTERNAL SERVER ERROR"
)

// Options 可热更新的处理参数
type Options struct {
	BufferSize int           // 单次读取请求的字节数
	SleepDelay time.Duration // /sleep 请求的延迟
}

// Route 是对请求缓冲区的路由结果
type Route struct {
	Status string
	Page   string
	Sleep  bool
}

// ConnHandler 处理单个 TCP 连接，Serve 作为工作池任务执行
type ConnHandler struct {
	pages *web.Store
	opts  atomic.Pointer[Options]
	sleep func(time.Duration)
}

func NewConnHandler(pages *web.Store, opts Options) *ConnHandler {
	h := &ConnHandler{
		pages: pages,
		sleep: time.Sleep,
	}
	h.Update(opts)
	return h
}

// Update 替换处理参数，对之后开始的连接生效
func (h *ConnHandler) Update(opts Options) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 512
	}
	if opts.SleepDelay < 0 {
		opts.SleepDelay = 0
	}
	h.opts.Store(&opts)
}

func (h *ConnHandler) Options() Options {
	return *h.opts.Load()
}

// Pages 返回页面存储
func (h *ConnHandler) Pages() *web.Store {
	return h.pages
}

// Match 按字面前缀匹配请求
func Match(request []byte) Route {
	switch {
	case bytes.HasPrefix(request, getPrefix):
		return Route{Status: StatusOK, Page: web.PageHello}
	case bytes.HasPrefix(request, sleepPrefix):
		return Route{Status: StatusOK, Page: web.PageHello, Sleep: true}
	default:
		return Route{Status: StatusNotFound, Page: web.PageNotFound}
	}
}

// BuildResponse 组装状态行、content-length 头和正文
func BuildResponse(status string, body []byte) []byte {
	resp := make([]byte, 0, len(status)+len(body)+32)
	resp = append(resp, status...)
	resp = append(resp, "\r\ncontent-length:"...)
	resp = strconv.AppendInt(resp, int64(len(body)), 10)
	resp = append(resp, "\r\n\r\n"...)
	resp = append(resp, body...)
	return resp
}

// Serve 读取请求、选择页面、写回响应并关闭连接。
// 所有 I/O 错误只记录日志，不会中断 worker。
func (h *ConnHandler) Serve(conn net.Conn) {
	start := time.Now()
	id := ksuid.New().String()
	remote := "-"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	defer conn.Close()

	opts := h.Options()
	bp := buffer.GetBuffer(opts.BufferSize)
	defer buffer.PutBuffer(bp)

	n, err := conn.Read(*bp)
	if err != nil && n == 0 {
		if !errors.Is(err, io.EOF) {
			logger.LogPrintf("❌ [%s] [%s] 读取请求失败: %v", id, remote, err)
		}
		return
	}
	request := (*bp)[:n]

	route := Match(request)
	if route.Sleep {
		h.sleep(opts.SleepDelay)
	}

	status := route.Status
	body, err := h.pages.Get(route.Page)
	if err != nil {
		logger.LogPrintf("❌ [%s] [%s] 读取页面失败: %v", id, remote, err)
		status, body = StatusServerError, nil
	}

	if _, err := conn.Write(BuildResponse(status, body)); err != nil {
		logger.LogPrintf("❌ [%s] [%s] 写入响应失败: %v", id, remote, err)
		return
	}

	logger.LogConnection(id, remote, requestLine(request), status, len(body), time.Since(start))
}

func requestLine(request []byte) string {
	if i := bytes.Index(request, []byte("\r\n")); i >= 0 {
		request = request[:i]
	}
	if len(request) > 128 {
		request = request[:128]
	}
	return string(request)
}
