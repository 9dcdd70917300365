package server

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config 在场服务的运行参数。容量与超时可被 /admin/config 热更新，
// 清扫周期在启动时固定为超时的一半。
type Config struct {
	MaxPlayers    int           // 同时在线上限
	PlayerTimeout time.Duration // 超过该时长无任何消息则按离场处理
	SweepInterval time.Duration // 超时清扫周期（默认 PlayerTimeout/2）
	AllowedOrigin string        // 额外放行的 Origin（完整形式，如 https://game.example.com）
}

// DefaultConfig 与前端约定一致的默认值：20 人、30 秒超时
func DefaultConfig() Config {
	return Config{
		MaxPlayers:    20,
		PlayerTimeout: 30 * time.Second,
		SweepInterval: 15 * time.Second,
	}
}

// LoadConfig 读取环境变量覆盖默认值：
//
//	OFFICE_MAX_PLAYERS     同时在线上限
//	OFFICE_PLAYER_TIMEOUT  超时秒数
//	OFFICE_ALLOWED_ORIGIN  额外放行的来源
//
// 非法取值回退默认并记录告警
func LoadConfig() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("OFFICE_MAX_PLAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPlayers = n
		} else if Log != nil {
			Log.Warnf("OFFICE_MAX_PLAYERS 取值非法: %q，使用默认 %d", v, cfg.MaxPlayers)
		}
	}
	if v := os.Getenv("OFFICE_PLAYER_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PlayerTimeout = time.Duration(n) * time.Second
		} else if Log != nil {
			Log.Warnf("OFFICE_PLAYER_TIMEOUT 取值非法: %q，使用默认 %s", v, cfg.PlayerTimeout)
		}
	}
	cfg.SweepInterval = cfg.PlayerTimeout / 2
	cfg.AllowedOrigin = os.Getenv("OFFICE_ALLOWED_ORIGIN")
	return cfg
}

// originChecker 构造 WebSocket 升级时的 Origin 校验：
// 放行本机与局域网地址（按本地网卡推导），外加配置里的显式来源。
// 非浏览器客户端没有 Origin 头，直接放行。
func originChecker(cfg Config) func(r *http.Request) bool {
	local := localHosts()
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if cfg.AllowedOrigin != "" && origin == cfg.AllowedOrigin {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := u.Hostname()
		if host == "localhost" || host == r.Host || host+":"+u.Port() == r.Host {
			return true
		}
		_, ok := local[host]
		return ok
	}
}

// localHosts 枚举本地网卡地址，作为同一局域网联机时的放行集合
func localHosts() map[string]struct{} {
	hosts := map[string]struct{}{
		"localhost": {},
		"127.0.0.1": {},
		"::1":       {},
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return hosts
	}
	for _, addr := range addrs {
		if ipn, ok := addr.(*net.IPNet); ok {
			hosts[ipn.IP.String()] = struct{}{}
		}
	}
	return hosts
}
