// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package main

import (
	"context"
	"flag"
	"time"

	"algojudge/internal/common/mq"
	"algojudge/internal/common/storage"
	"algojudge/internal/config"
	"algojudge/internal/handler"
	"algojudge/internal/logic"
	"algojudge/internal/problemdata"
	"algojudge/internal/repository"
	"algojudge/internal/sandbox"
	"algojudge/internal/sandbox/engine"
	"algojudge/internal/sandbox/profile"
	"algojudge/internal/service"
	"algojudge/internal/svc"
	"algojudge/internal/workspace"
	"algojudge/pkg/utils/logger"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/proc"
	"github.com/zeromicro/go-zero/rest"
)

var configFile = flag.String("f", "etc/judge.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)
	config.ApplyEnvOverrides(&c)
	config.ApplyDefaults(&c)
	if err := config.Validate(&c); err != nil {
		logx.Errorf("invalid config: %v", err)
		return
	}
	if err := logger.Init(logger.Config{Level: c.Log.Level, Format: c.Log.Format}); err != nil {
		logx.Errorf("init logger failed: %v", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	server := rest.MustNewServer(c.RestConf)
	defer server.Stop()

	svcCtx := svc.NewServiceContext(c)
	if svcCtx.Cache == nil {
		logx.Error("redis cache is not configured")
		return
	}
	defer func() {
		_ = svcCtx.Cache.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(storage.MinIOConfig{
		Endpoint:  c.Storage.Endpoint,
		AccessKey: c.Storage.AccessKey,
		SecretKey: c.Storage.SecretKey,
		Region:    c.Storage.Region,
		UseSSL:    c.Storage.UseSSL,
		Bucket:    c.Storage.Bucket,
	})
	if err != nil {
		logx.Errorf("init object storage failed: %v", err)
		return
	}

	paths := engine.NewPathMap([]engine.Mapping{
		{ContainerRoot: c.Judge.TempDir, HostRoot: c.Judge.TempDirHost},
		{ContainerRoot: c.Judge.ProblemDir, HostRoot: c.Judge.ProblemDirHost},
	})
	eng := engine.NewDockerEngine(c.Sandbox.ToEngineConfig(), paths)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err = eng.Ping(pingCtx)
	cancelPing()
	if err != nil {
		logx.Errorf("sandbox runtime is unavailable: %v", err)
		return
	}

	workspaces, err := workspace.NewManager(c.Judge.TempDir)
	if err != nil {
		logx.Errorf("init workspace manager failed: %v", err)
		return
	}

	testData, err := problemdata.NewCachedProvider(c.Judge.ProblemDir, c.Storage.Bucket, objStorage, svcCtx.Cache, c.Judge.LockWait)
	if err != nil {
		logx.Errorf("init test data provider failed: %v", err)
		return
	}

	mqClient, err := mq.NewKafkaQueue(c.Kafka.ToMQConfig())
	if err != nil {
		logx.Errorf("init kafka failed: %v", err)
		return
	}
	defer func() {
		_ = mqClient.Stop()
		_ = mqClient.Close()
	}()

	progress := repository.NewRedisProgressPublisher(svcCtx.Cache, c.Judge.StatusTTL)
	results := repository.NewMQResultPublisher(mqClient, svcCtx.Cache, c.Kafka.ProduceTopic, c.Judge.ResultMarkerTTL)

	registry := profile.NewRegistry(c.Language.Languages)
	worker, err := sandbox.NewWorker(eng, registry, progress, c.Sandbox.CompileTimeout, c.Sandbox.WallGrace)
	if err != nil {
		logx.Errorf("init sandbox worker failed: %v", err)
		return
	}

	judgeSvc, err := service.NewService(service.Config{
		Workspaces:     workspaces,
		Worker:         worker,
		TestData:       testData,
		Progress:       progress,
		Results:        results,
		JudgeTimeout:   c.Worker.JudgeTimeout,
		MaxSourceBytes: c.Judge.MaxSourceKb << 10,
	})
	if err != nil {
		logx.Errorf("init judge service failed: %v", err)
		return
	}
	svcCtx.JudgeService = judgeSvc

	limiter := mq.NewTokenLimiter(c.Worker.PoolSize)
	consumer := logic.NewJudgeConsumerLogic(context.Background(), svcCtx)
	err = mqClient.Subscribe(context.Background(), c.Kafka.ConsumeTopic, consumer.HandleMessage, &mq.SubscribeOptions{
		ConsumerGroup:   c.Kafka.ConsumerGroup,
		MaxRetries:      c.Kafka.MaxRetries,
		RetryDelay:      c.Kafka.RetryDelay,
		DeadLetterTopic: c.Kafka.DeadLetter,
		MessageTTL:      c.Kafka.MessageTTL,
	}, limiter)
	if err != nil {
		logx.Errorf("subscribe kafka failed: %v", err)
		return
	}
	if err := mqClient.Start(); err != nil {
		logx.Errorf("start kafka consumer failed: %v", err)
		return
	}
	proc.AddShutdownListener(func() {
		_ = mqClient.Stop()
	})

	handler.RegisterHandlers(server, svcCtx)

	logx.Infof("starting server at %s:%d...", c.Host, c.Port)
	server.Start()
}
