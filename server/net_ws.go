package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"officegame/protocol"
)

const (
	writeWait    = 5 * time.Second
	readWait     = 60 * time.Second
	maxFrameSize = 1 << 20 // 1MB
)

// nextConnID 连接层分配的自增 id，在进程内唯一
var nextConnID atomic.Uint64

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	metrics *Metrics
}

func NewClientConn(ws *websocket.Conn, m *Metrics) *ClientConn {
	return &ClientConn{
		ws:      ws,
		send:    make(chan []byte, 64),
		done:    make(chan struct{}),
		metrics: m,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
// 广播是尽力而为的：慢连接不允许拖住注册表协程
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case <-c.done:
	case c.send <- b:
	default:
		if c.metrics != nil {
			c.metrics.IncSendDropped()
		}
	}
}

// Close 关闭底层连接并结束写协程，可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息，按 type 分发为注册表事件。
// 读泵退出（连接断开）即提交离场事件。
func (c *ClientConn) readPump(reg *Registry, id string) {
	defer c.ws.Close()
	defer reg.PostDisconnect(id)
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readWait))

		var env protocol.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			Log.Debugf("丢弃无法解析的消息: conn=%s err=%v", id, err)
			continue
		}
		switch env.Type {
		case protocol.TypeJoin:
			var msg protocol.Join
			if json.Unmarshal(payload, &msg) == nil {
				reg.PostJoin(id, c, msg)
			}
		case protocol.TypeMove:
			var msg protocol.Move
			if json.Unmarshal(payload, &msg) == nil {
				reg.PostMove(id, msg)
			}
		case protocol.TypeLocation:
			var msg protocol.Location
			if json.Unmarshal(payload, &msg) == nil {
				reg.PostLocation(id, msg)
			}
		case protocol.TypeUpdate:
			var msg protocol.Update
			if json.Unmarshal(payload, &msg) == nil {
				reg.PostUpdate(id, msg)
			}
		default:
			Log.Debugf("未知消息类型 %q: conn=%s", env.Type, id)
		}
	}
}

// HandleWS WebSocket 接入：升级连接、分配连接 id、启动读写泵
func HandleWS(reg *Registry, cfg Config) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			Log.Warnf("WS 升级失败: %v", err)
			return
		}
		id := fmt.Sprintf("player-%d", nextConnID.Add(1))
		client := NewClientConn(ws, reg.Metrics())
		go client.writePump()
		go client.readPump(reg, id)
	}
}
