package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics 在场服务的运行指标（用于监控与调试）
type Metrics struct {
	Joins          int64 // 成功入场数
	Rejected       int64 // 容量拒绝数
	Evicted        int64 // 超时剔除数
	Broadcasts     int64 // 广播次数
	SendDropped    int64 // 发送队列满被丢弃的帧数
	EventDropped   int64 // 事件通道满被丢弃的入站事件数
	UnknownDropped int64 // 引用未知连接被静默丢弃的消息数
	Players        int64 // 当前在线人数
}

func (m *Metrics) IncJoins()          { atomic.AddInt64(&m.Joins, 1) }
func (m *Metrics) IncRejected()       { atomic.AddInt64(&m.Rejected, 1) }
func (m *Metrics) IncEvicted()        { atomic.AddInt64(&m.Evicted, 1) }
func (m *Metrics) IncBroadcasts()     { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *Metrics) IncSendDropped()    { atomic.AddInt64(&m.SendDropped, 1) }
func (m *Metrics) IncEventDropped()   { atomic.AddInt64(&m.EventDropped, 1) }
func (m *Metrics) IncUnknownDropped() { atomic.AddInt64(&m.UnknownDropped, 1) }
func (m *Metrics) SetPlayers(n int)   { atomic.StoreInt64(&m.Players, int64(n)) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"joins":           atomic.LoadInt64(&m.Joins),
		"rejected":        atomic.LoadInt64(&m.Rejected),
		"evicted":         atomic.LoadInt64(&m.Evicted),
		"broadcasts":      atomic.LoadInt64(&m.Broadcasts),
		"send_dropped":    atomic.LoadInt64(&m.SendDropped),
		"event_dropped":   atomic.LoadInt64(&m.EventDropped),
		"unknown_dropped": atomic.LoadInt64(&m.UnknownDropped),
		"players":         atomic.LoadInt64(&m.Players),
	}
}

// HandleMetrics 输出在场服务的运行指标
// GET /metrics
func HandleMetrics(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reg.Metrics().Snapshot())
	}
}
