// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package svc

import (
	cachex "algojudge/internal/common/cache"
	"algojudge/internal/config"
	"algojudge/internal/service"

	"github.com/zeromicro/go-zero/core/logx"
)

type ServiceContext struct {
	Config       config.Config
	Cache        cachex.Cache
	JudgeService *service.Service
}

func NewServiceContext(c config.Config) *ServiceContext {
	return &ServiceContext{
		Config: c,
		Cache:  newCache(c),
	}
}

func newCache(c config.Config) cachex.Cache {
	addr := c.Redis.Addr()
	if addr == "" {
		return nil
	}
	redisConfig := cachex.DefaultRedisConfig()
	redisConfig.Addr = addr
	redisConfig.Password = c.Redis.Password
	redisConfig.DB = c.Redis.DB
	cacheClient, err := cachex.NewRedisCacheWithConfig(redisConfig)
	if err != nil {
		logx.Errorf("init redis cache failed: %v", err)
		return nil
	}
	return cacheClient
}
