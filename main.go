package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"officegame/server"
)

// office-game 多人在场服务入口：启动 HTTP + WebSocket 服务与在场注册表
func main() {
	var addr string
	flag.StringVar(&addr, "addr", ":3001", "server listen address, e.g. :3001")
	flag.Parse()
	// 使用第三方 zap 日志库写入 officegame.log（带滚动）
	if err := server.InitLogger("officegame.log"); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	cfg := server.LoadConfig()
	reg := server.NewRegistry(cfg)
	stop := make(chan struct{})
	go reg.Run(stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS(reg, cfg))
	// 前后端分离：将 / 映射到 web 目录的静态资源
	mux.Handle("/", http.FileServer(http.Dir("web")))
	// 管理与监控接口
	mux.HandleFunc("/admin/config", server.HandleAdminConfig(reg))
	mux.HandleFunc("/metrics", server.HandleMetrics(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		server.Log.Infof("office-game presence listening on %s; max=%d timeout=%s", addr, cfg.MaxPlayers, cfg.PlayerTimeout)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")
	close(stop)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
