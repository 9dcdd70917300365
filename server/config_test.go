package server

import (
	"net/http"
	"testing"
	"time"
)

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	t.Setenv("OFFICE_MAX_PLAYERS", "")
	t.Setenv("OFFICE_PLAYER_TIMEOUT", "")
	cfg := LoadConfig()
	if cfg.MaxPlayers != 20 || cfg.PlayerTimeout != 30*time.Second || cfg.SweepInterval != 15*time.Second {
		t.Fatalf("默认配置不对: %+v", cfg)
	}

	t.Setenv("OFFICE_MAX_PLAYERS", "8")
	t.Setenv("OFFICE_PLAYER_TIMEOUT", "10")
	cfg = LoadConfig()
	if cfg.MaxPlayers != 8 || cfg.PlayerTimeout != 10*time.Second || cfg.SweepInterval != 5*time.Second {
		t.Fatalf("环境变量覆盖未生效: %+v", cfg)
	}

	// 非法取值回退默认
	t.Setenv("OFFICE_MAX_PLAYERS", "zero")
	cfg = LoadConfig()
	if cfg.MaxPlayers != 20 {
		t.Fatalf("非法取值应回退默认: %d", cfg.MaxPlayers)
	}
}

func TestOriginChecker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigin = "https://game.example.com"
	check := originChecker(cfg)

	req := func(origin, host string) *http.Request {
		r, _ := http.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = host
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	cases := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"无 Origin 的非浏览器客户端", "", "localhost:3001", true},
		{"本机", "http://localhost:3000", "localhost:3001", true},
		{"回环地址", "http://127.0.0.1:3000", "localhost:3001", true},
		{"显式放行的来源", "https://game.example.com", "localhost:3001", true},
		{"同 Host", "http://game.lan:3001", "game.lan:3001", true},
		{"陌生来源", "https://evil.example.com", "localhost:3001", false},
	}
	for _, tc := range cases {
		if got := check(req(tc.origin, tc.host)); got != tc.want {
			t.Errorf("%s: origin=%q got %v, 期望 %v", tc.name, tc.origin, got, tc.want)
		}
	}
}
