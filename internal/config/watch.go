package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"khquant/internal/logger"
)

// Watch 监听配置文件变化并在风控参数更新时回调，供 live/simulate
// 模式在不重启的情况下收紧风控。回测不使用（参数在运行内冻结）。
func Watch(path string, onRisk func(RiskConfig)) error {
	if onRisk == nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	var mu sync.Mutex
	v.OnConfigChange(func(evt fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()
		cfg, err := Load(path)
		if err != nil {
			logger.Warnf("配置热更新失败，保留旧风控参数: %v", err)
			return
		}
		logger.Infof("风控参数热更新: position_limit=%.2f order_limit=%d loss_limit=%.2f",
			cfg.Risk.PositionLimit, cfg.Risk.OrderLimit, cfg.Risk.LossLimit)
		onRisk(cfg.Risk)
	})
	v.WatchConfig()
	return nil
}
