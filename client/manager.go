package client

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"officegame/protocol"
)

const (
	// sendMinInterval 位置上报的最小间隔，渲染帧率再高也不会超发
	sendMinInterval = 50 * time.Millisecond

	defaultMaxRetries    = 10
	defaultRetryDelay    = time.Second
	defaultMaxRetryDelay = 5 * time.Second
)

// Events 在场事件回调，由上层游戏状态/UI 订阅。
// 回调与引发它的状态变更同步、有序。
type Events interface {
	Connected(playerID string)
	RemoteJoined(p protocol.Player)
	RemoteLeft(id, name string)
	Error(message string)
	Disconnected()
}

// NopEvents 全空实现，订阅方可按需嵌入只覆盖关心的回调
type NopEvents struct{}

func (NopEvents) Connected(string)             {}
func (NopEvents) RemoteJoined(protocol.Player) {}
func (NopEvents) RemoteLeft(string, string)    {}
func (NopEvents) Error(string)                 {}
func (NopEvents) Disconnected()                {}

// wsConn 管理器对底层连接的全部要求，*websocket.Conn 天然满足，
// 测试用内存桩替换
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

func dialWS(url string) (wsConn, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Manager 客户端连接管理器：独占一条到服务端的 WebSocket，
// 节流出站状态上报，并把入站事件映射为远端代理的创建/更新/销毁。
// 显式构造、按值注入，不做进程级单例。
type Manager struct {
	url    string
	events Events
	log    *zap.SugaredLogger

	dial          func(url string) (wsConn, error)
	now           func() time.Time // 测试注入时钟
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	maxRetries    int

	mu        sync.Mutex
	conn      wsConn
	connected bool
	closing   bool // 显式断开后为真，压制自动重连
	rejected  bool // 容量拒绝后为真，不再重连
	cancel    chan struct{}
	playerID  string
	location  string
	proxies   map[string]*RemotePlayer
	lastSend  time.Time
	join      protocol.Join // 重连成功后重发
}

// NewManager 构造管理器。ev/log 允许为空。
// url 形如 ws://host:3001/ws
func NewManager(url string, ev Events, log *zap.SugaredLogger) *Manager {
	if ev == nil {
		ev = NopEvents{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		url:           url,
		events:        ev,
		log:           log,
		dial:          dialWS,
		now:           time.Now,
		retryDelay:    defaultRetryDelay,
		maxRetryDelay: defaultMaxRetryDelay,
		maxRetries:    defaultMaxRetries,
		proxies:       make(map[string]*RemotePlayer),
	}
}

// Connect 建连并发送入场消息。已连接时为空操作。
// 首次建连在调用方协程内按退避重试，上限 maxRetries。
func (m *Manager) Connect(name, sprite, location string, x, y float64) error {
	m.mu.Lock()
	if m.connected || m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	m.closing = false
	m.rejected = false
	m.cancel = make(chan struct{})
	m.location = location
	m.join = protocol.Join{
		Type:     protocol.TypeJoin,
		Name:     name,
		Sprite:   sprite,
		X:        x,
		Y:        y,
		Location: location,
	}
	cancel := m.cancel
	m.mu.Unlock()

	return m.dialLoop(cancel)
}

// dialLoop 按退避重试建连：1s 起步，翻倍封顶 5s，最多 maxRetries 次
func (m *Manager) dialLoop(cancel <-chan struct{}) error {
	delay := m.retryDelay
	var lastErr error
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		conn, err := m.dial(m.url)
		if err == nil {
			return m.attach(conn)
		}
		lastErr = err
		m.log.Warnf("建连失败（第 %d/%d 次）: %v", attempt, m.maxRetries, err)
		select {
		case <-cancel:
			return errors.New("connect cancelled")
		case <-time.After(delay):
		}
		delay *= 2
		if delay > m.maxRetryDelay {
			delay = m.maxRetryDelay
		}
	}
	return lastErr
}

// attach 挂接新连接：发 join、标记已连接、拉起读循环
func (m *Manager) attach(conn wsConn) error {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		conn.Close()
		return errors.New("connect cancelled")
	}
	m.conn = conn
	m.connected = true
	data, err := json.Marshal(m.join)
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		m.conn = nil
		m.connected = false
		m.mu.Unlock()
		conn.Close()
		return err
	}
	m.mu.Unlock()

	go m.readLoop(conn)
	return nil
}

// readLoop 逐帧读入站消息直到连接断开
func (m *Manager) readLoop(conn wsConn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDrop(conn)
			return
		}
		m.route(data)
	}
}

// handleDrop 传输层断开：显式 Disconnect 的旧连接静默退出，
// 其余情况通知上层并转入后台自动重连
func (m *Manager) handleDrop(conn wsConn) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.connected = false
	rejected := m.rejected
	cancel := m.cancel
	m.mu.Unlock()

	m.events.Disconnected()
	if rejected {
		return
	}
	// 断线期间不缓存任何上报，重连后的快照负责重新对齐。
	// 代理的清理留给持有方显式调用 Clear。
	go func() {
		if err := m.dialLoop(cancel); err != nil {
			m.log.Warnf("自动重连放弃: %v", err)
		}
	}()
}

// route 入站事件到代理生命周期的映射
func (m *Manager) route(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.log.Debugf("丢弃无法解析的消息: %v", err)
		return
	}
	switch env.Type {
	case protocol.TypeSnapshot:
		var msg protocol.Snapshot
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		m.mu.Lock()
		m.playerID = msg.ID
		for _, p := range msg.Players {
			// 只物化同房间的玩家，且不重复建
			if p.ID == msg.ID || p.Location != m.location {
				continue
			}
			if _, ok := m.proxies[p.ID]; ok {
				continue
			}
			m.proxies[p.ID] = newRemotePlayer(p)
		}
		id := m.playerID
		m.mu.Unlock()
		m.events.Connected(id)

	case protocol.TypeJoined:
		var msg protocol.Joined
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		m.mu.Lock()
		if msg.ID == m.playerID || msg.Location != m.location {
			m.mu.Unlock()
			return
		}
		if _, ok := m.proxies[msg.ID]; ok {
			m.mu.Unlock()
			return
		}
		m.proxies[msg.ID] = newRemotePlayer(msg.Player)
		m.mu.Unlock()
		m.events.RemoteJoined(msg.Player)

	case protocol.TypeMoved:
		var msg protocol.Moved
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		m.mu.Lock()
		p := m.proxies[msg.ID]
		m.mu.Unlock()
		// 不在本房间视野内的 moved 直接忽略，绝不借此创建代理
		if p != nil {
			p.setTarget(msg.X, msg.Y)
		}

	case protocol.TypeLocationChanged:
		var msg protocol.LocationChanged
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		// 对方离开了本房间视野，无论去了哪都销毁代理
		m.mu.Lock()
		p, ok := m.proxies[msg.ID]
		if ok {
			delete(m.proxies, msg.ID)
		}
		m.mu.Unlock()
		if ok {
			m.events.RemoteLeft(msg.ID, p.Name())
		}

	case protocol.TypeUpdated:
		var msg protocol.Updated
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		m.mu.Lock()
		p := m.proxies[msg.ID]
		m.mu.Unlock()
		if p != nil {
			p.applyUpdate(msg.Player)
		}

	case protocol.TypeLeft:
		var msg protocol.Left
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		m.mu.Lock()
		delete(m.proxies, msg.ID)
		m.mu.Unlock()
		m.events.RemoteLeft(msg.ID, msg.Name)

	case protocol.TypeError:
		var msg protocol.Error
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		m.mu.Lock()
		m.connected = false
		m.rejected = true
		m.mu.Unlock()
		m.log.Warnf("服务端拒绝: %s", msg.Message)
		m.events.Error(msg.Message)

	default:
		m.log.Debugf("未知消息类型 %q", env.Type)
	}
}

// SendPosition 位置上报。未连接时为空操作；
// 距上次发送不足 50ms 的调用直接丢弃，出站频率与帧率解耦。
func (m *Manager) SendPosition(x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected || m.conn == nil {
		return
	}
	now := m.now()
	if now.Sub(m.lastSend) < sendMinInterval {
		return
	}
	m.lastSend = now
	m.writeLocked(protocol.Move{Type: protocol.TypeMove, X: x, Y: y})
}

// SendLocationChange 切换房间：旧房间的可见性规则随之失效，
// 先销毁全部代理、更新本地房间，再上报
func (m *Manager) SendLocationChange(location string) {
	m.mu.Lock()
	m.proxies = make(map[string]*RemotePlayer)
	m.location = location
	m.join.Location = location // 重连重发的 join 也要指向新房间
	connected := m.connected && m.conn != nil
	if connected {
		m.writeLocked(protocol.Location{Type: protocol.TypeLocation, Location: location})
	}
	m.mu.Unlock()
}

// SendUpdate 上报公开字段的部分更新。未连接时为空操作。
func (m *Manager) SendUpdate(upd protocol.Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected || m.conn == nil {
		return
	}
	upd.Type = protocol.TypeUpdate
	m.writeLocked(upd)
}

// writeLocked 持锁序列化并写出。写失败只记日志，
// 断开由读循环统一感知处理。
func (m *Manager) writeLocked(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Errorf("出站消息序列化失败: %v", err)
		return
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.log.Debugf("出站写失败: %v", err)
	}
}

// Disconnect 主动断开：取消未完成的重连、关闭连接、销毁全部代理。
// 可重复调用。
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	if m.cancel != nil {
		close(m.cancel)
		m.cancel = nil
	}
	conn := m.conn
	m.conn = nil
	m.connected = false
	m.proxies = make(map[string]*RemotePlayer)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Clear 等同 Disconnect，语义上供持有场景在退出时做整体清理
func (m *Manager) Clear() { m.Disconnect() }

// IsConnected 当前是否在线
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// PlayerID 服务端分配的自身连接 id（快照到达后可用）
func (m *Manager) PlayerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerID
}

// Player 按 id 取远端代理
func (m *Manager) Player(id string) (*RemotePlayer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proxies[id]
	return p, ok
}

// Players 当前房间内全部远端代理的副本
func (m *Manager) Players() []*RemotePlayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*RemotePlayer, 0, len(m.proxies))
	for _, p := range m.proxies {
		out = append(out, p)
	}
	return out
}

// StepAll 渲染帧驱动：对全部代理做一次插值
func (m *Manager) StepAll() {
	for _, p := range m.Players() {
		p.Step()
	}
}
