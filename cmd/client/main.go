package main

import (
	"flag"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jopatk123/myweb-realtime/internal/config"
	"github.com/jopatk123/myweb-realtime/internal/logger"
	"github.com/jopatk123/myweb-realtime/internal/ui"
)

func main() {
	serverAddr := flag.String("server", "", "服务器地址（host:port，覆盖配置文件）")
	flag.Parse()

	// TUI 占用标准输出，日志写入文件
	if err := logger.Init(); err != nil {
		log.Printf("初始化日志失败: %v", err)
	}
	defer logger.Close()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Printf("加载配置失败，使用默认配置: %v", err)
		cfg = config.Default()
	}
	if *serverAddr != "" {
		cfg.Client.ServerURL = fmt.Sprintf("ws://%s/ws", *serverAddr)
		cfg.Client.APIBase = fmt.Sprintf("http://%s/api", *serverAddr)
	}

	app := ui.NewApp(cfg)
	model := ui.NewModel(app)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("启动客户端时出错: %v", err)
	}
}
