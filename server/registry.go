package server

import (
	"encoding/json"
	"time"

	"officegame/protocol"
)

// outbound 是注册表对连接的全部要求：非阻塞投递与关闭。
// 生产环境由 *ClientConn 实现，测试用录制桩替换。
type outbound interface {
	Enqueue(b []byte)
	Close()
}

// PlayerRecord 服务端权威的在场记录，按连接 id 索引。
// lastSeen 与 conn 永不序列化。
type PlayerRecord struct {
	ID          string
	Name        string
	X, Y        float64
	Location    string
	Sprite      string
	CareerPath  string
	CareerLevel string

	lastSeen time.Time
	conn     outbound
}

// public 摘出可广播的公开字段
func (p *PlayerRecord) public() protocol.Player {
	return protocol.Player{
		ID:          p.ID,
		Name:        p.Name,
		X:           p.X,
		Y:           p.Y,
		Location:    p.Location,
		Sprite:      p.Sprite,
		CareerPath:  p.CareerPath,
		CareerLevel: p.CareerLevel,
	}
}

type eventKind int

const (
	evJoin eventKind = iota
	evMove
	evLocation
	evUpdate
	evDisconnect
	evAdminSet
	evAdminGet
)

// event 入站事件的统一载体，由注册表协程逐条消化
type event struct {
	kind eventKind
	id   string

	conn outbound // evJoin
	join protocol.Join
	move protocol.Move
	loc  protocol.Location
	upd  protocol.Update

	// evAdminSet：热更新；evAdminGet：读当前配置
	maxPlayers *int
	timeout    *time.Duration
	reply      chan Config
}

// Registry 在场注册表：谁在线、在哪、长什么样。
// 所有对 players 表的读写都发生在 Run 协程内，单写者，无锁。
// 处理器必须保持 O(在线人数) 且少分配，慢处理器会拖住后续事件。
type Registry struct {
	cfg     Config
	players map[string]*PlayerRecord
	events  chan event
	metrics *Metrics

	now func() time.Time // 测试注入时钟
}

// NewRegistry 显式构造（不做单例），由组合根持有
func NewRegistry(cfg Config) *Registry {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.PlayerTimeout / 2
	}
	return &Registry{
		cfg:     cfg,
		players: make(map[string]*PlayerRecord),
		events:  make(chan event, 256),
		metrics: &Metrics{},
		now:     time.Now,
	}
}

// Metrics 暴露给 /metrics 端点
func (r *Registry) Metrics() *Metrics { return r.metrics }

// Run 驱动注册表事件循环：入站事件与超时清扫在同一协程内交替执行。
// 清扫剔除与同连接在途消息之间谁先到谁生效，两边都收敛到“记录不存在”。
func (r *Registry) Run(stop <-chan struct{}) {
	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()
	for {
		select {
		case <-stop:
			return
		case ev := <-r.events:
			r.dispatch(ev)
		case <-sweep.C:
			r.sweepExpired(r.now())
		}
	}
}

func (r *Registry) dispatch(ev event) {
	switch ev.kind {
	case evJoin:
		r.handleJoin(ev.id, ev.conn, ev.join)
	case evMove:
		r.handleMove(ev.id, ev.move)
	case evLocation:
		r.handleLocation(ev.id, ev.loc)
	case evUpdate:
		r.handleUpdate(ev.id, ev.upd)
	case evDisconnect:
		r.handleDisconnect(ev.id)
	case evAdminSet:
		if ev.maxPlayers != nil {
			r.cfg.MaxPlayers = *ev.maxPlayers
		}
		if ev.timeout != nil {
			r.cfg.PlayerTimeout = *ev.timeout
		}
	case evAdminGet:
		ev.reply <- r.cfg
	}
}

// PostJoin 入场与离场事件不允许丢（通道有容量，阻塞写保证送达）
func (r *Registry) PostJoin(id string, conn outbound, msg protocol.Join) {
	r.events <- event{kind: evJoin, id: id, conn: conn, join: msg}
}

// PostMove 位置上报拥塞时丢弃，保证事件循环不被网络读拖住
func (r *Registry) PostMove(id string, msg protocol.Move) {
	select {
	case r.events <- event{kind: evMove, id: id, move: msg}:
	default:
		r.metrics.IncEventDropped()
	}
}

func (r *Registry) PostLocation(id string, msg protocol.Location) {
	r.events <- event{kind: evLocation, id: id, loc: msg}
}

func (r *Registry) PostUpdate(id string, msg protocol.Update) {
	select {
	case r.events <- event{kind: evUpdate, id: id, upd: msg}:
	default:
		r.metrics.IncEventDropped()
	}
}

func (r *Registry) PostDisconnect(id string) {
	r.events <- event{kind: evDisconnect, id: id}
}

// ApplyConfig 管理端热更新，转入注册表协程执行
func (r *Registry) ApplyConfig(maxPlayers *int, timeout *time.Duration) {
	r.events <- event{kind: evAdminSet, maxPlayers: maxPlayers, timeout: timeout}
}

// ConfigSnapshot 读取当前生效配置（经注册表协程，避免脏读）
func (r *Registry) ConfigSnapshot() Config {
	reply := make(chan Config, 1)
	r.events <- event{kind: evAdminGet, reply: reply}
	return <-reply
}

// handleJoin 容量内建档并回快照，容量外回错误并断开
func (r *Registry) handleJoin(id string, conn outbound, msg protocol.Join) {
	if len(r.players) >= r.cfg.MaxPlayers {
		b, _ := json.Marshal(protocol.Error{Type: protocol.TypeError, Message: "Server is full"})
		conn.Enqueue(b)
		conn.Close()
		r.metrics.IncRejected()
		Log.Warnf("入场被拒（已满员 %d）: %s (%s)", r.cfg.MaxPlayers, msg.Name, id)
		return
	}

	now := r.now()
	rec := &PlayerRecord{
		ID:          id,
		Name:        msg.Name,
		X:           msg.X,
		Y:           msg.Y,
		Location:    msg.Location,
		Sprite:      msg.Sprite,
		CareerPath:  msg.CareerPath,
		CareerLevel: msg.CareerLevel,
		lastSeen:    now,
		conn:        conn,
	}

	// 先收集其他在线玩家，再入表，快照不含自己
	others := make([]protocol.Player, 0, len(r.players))
	for _, p := range r.players {
		others = append(others, p.public())
	}
	r.players[id] = rec
	r.metrics.SetPlayers(len(r.players))
	r.metrics.IncJoins()

	if b, err := json.Marshal(protocol.Snapshot{Type: protocol.TypeSnapshot, ID: id, Players: others}); err == nil {
		conn.Enqueue(b)
	}
	r.broadcast(id, protocol.Joined{Type: protocol.TypeJoined, Player: rec.public()})
	Log.Infof("玩家入场: %s (%s) 房间=%s 在线=%d", msg.Name, id, msg.Location, len(r.players))
}

// handleMove 未知 id 静默丢弃（可能与断开竞态）。不校验速度与边界。
func (r *Registry) handleMove(id string, msg protocol.Move) {
	p, ok := r.players[id]
	if !ok {
		r.metrics.IncUnknownDropped()
		return
	}
	p.X, p.Y = msg.X, msg.Y
	p.lastSeen = r.now()
	r.broadcast(id, protocol.Moved{Type: protocol.TypeMoved, ID: id, X: msg.X, Y: msg.Y})
}

// handleLocation 换房间。广播只通知“离开”，不会告知目的房间“到达”，
// 再次可见依赖下一次快照。
// TODO: 若要修补该协议缺口，这里在 location_changed 之后
// 补发一条 joined 等价广播即可，但前端也要同步改动。
func (r *Registry) handleLocation(id string, msg protocol.Location) {
	p, ok := r.players[id]
	if !ok {
		r.metrics.IncUnknownDropped()
		return
	}
	p.Location = msg.Location
	p.lastSeen = r.now()
	r.broadcast(id, protocol.LocationChanged{Type: protocol.TypeLocationChanged, ID: id, Location: msg.Location})
}

// handleUpdate 指针字段按携带与否合并，之后广播全量公开记录
func (r *Registry) handleUpdate(id string, msg protocol.Update) {
	p, ok := r.players[id]
	if !ok {
		r.metrics.IncUnknownDropped()
		return
	}
	if msg.X != nil {
		p.X = *msg.X
	}
	if msg.Y != nil {
		p.Y = *msg.Y
	}
	if msg.Location != nil {
		p.Location = *msg.Location
	}
	if msg.CareerPath != nil {
		p.CareerPath = *msg.CareerPath
	}
	if msg.CareerLevel != nil {
		p.CareerLevel = *msg.CareerLevel
	}
	p.lastSeen = r.now()
	r.broadcast(id, protocol.Updated{Type: protocol.TypeUpdated, Player: p.public()})
}

func (r *Registry) handleDisconnect(id string) {
	p, ok := r.players[id]
	if !ok {
		return
	}
	delete(r.players, id)
	r.metrics.SetPlayers(len(r.players))
	p.conn.Close()
	r.broadcast(id, protocol.Left{Type: protocol.TypeLeft, ID: id, Name: p.Name})
	Log.Infof("玩家离场: %s (%s) 在线=%d", p.Name, id, len(r.players))
}

// sweepExpired 按 lastSeen 剔除超时记录，与显式断开走同一条 left 广播
func (r *Registry) sweepExpired(now time.Time) {
	for id, p := range r.players {
		if now.Sub(p.lastSeen) <= r.cfg.PlayerTimeout {
			continue
		}
		delete(r.players, id)
		r.metrics.SetPlayers(len(r.players))
		r.metrics.IncEvicted()
		p.conn.Close()
		r.broadcast(id, protocol.Left{Type: protocol.TypeLeft, ID: id, Name: p.Name})
		Log.Infof("玩家超时剔除: %s (%s)", p.Name, id)
	}
}

// broadcast 发给 except 之外的所有连接。尽力而为：不重试、不确认。
func (r *Registry) broadcast(except string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		Log.Errorf("广播序列化失败: %v", err)
		return
	}
	for id, p := range r.players {
		if id == except {
			continue
		}
		p.conn.Enqueue(b)
	}
	r.metrics.IncBroadcasts()
}
