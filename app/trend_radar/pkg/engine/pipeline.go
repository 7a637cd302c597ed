package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
)

// Stage 流水线中的一个阶段；InitErr 不为空时该阶段被跳过
type Stage struct {
	Name    string
	Run     func(ctx context.Context) (Stats, error)
	InitErr error
}

// StageResult 单个阶段的运行结果
type StageResult struct {
	Name     string
	Duration time.Duration
	Stats
	Skipped bool
	Err     error
}

// Summary 一次运行的汇总
type Summary struct {
	RunID    string
	Stages   []StageResult
	Duration time.Duration
	// Aborted 有阶段返回错误，后续阶段未执行
	Aborted bool
}

// Failed 有阶段被跳过或出错时为 true，进程应以非零状态退出
func (s Summary) Failed() bool {
	for _, r := range s.Stages {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Observer 记录阶段耗时和计数
type Observer interface {
	ObserveStage(stage, status string, d time.Duration, succeeded, failed int)
	ObserveRun(status string, d time.Duration)
}

// Pipeline 按顺序执行各阶段
type Pipeline struct {
	stages   []Stage
	observer Observer
}

// NewPipeline observer 可以为 nil
func NewPipeline(observer Observer, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, observer: observer}
}

func (p *Pipeline) Run(ctx context.Context) Summary {
	sum := Summary{RunID: uuid.NewString()}
	log := logger.Log.WithField("run_id", sum.RunID)
	start := time.Now()
	log.Info("流水线开始运行")

	for _, stage := range p.stages {
		res := p.runStage(ctx, log, stage)
		sum.Stages = append(sum.Stages, res)
		if res.Err != nil && !res.Skipped {
			sum.Aborted = true
			log.WithField("stage", stage.Name).Error("阶段失败，中止本次运行")
			break
		}
	}

	sum.Duration = time.Since(start)
	status := "success"
	if sum.Failed() {
		status = "failure"
	}
	if p.observer != nil {
		p.observer.ObserveRun(status, sum.Duration)
	}
	log.WithField("status", status).Infof("流水线运行结束，总耗时 %s", sum.Duration.Round(time.Millisecond))
	return sum
}

func (p *Pipeline) runStage(ctx context.Context, log *logrus.Entry, stage Stage) (res StageResult) {
	res.Name = stage.Name
	log = log.WithField("stage", stage.Name)

	if stage.InitErr != nil {
		res.Skipped = true
		res.Err = fmt.Errorf("%w: %v", ErrStageInit, stage.InitErr)
		log.Errorf("阶段初始化失败，跳过: %v", stage.InitErr)
		p.observe(res)
		return res
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("stage %s panicked: %v", stage.Name, r)
			log.Errorf("阶段发生 panic: %v\n%s", r, debug.Stack())
		}
		res.Duration = time.Since(start)
		log.WithFields(logrus.Fields{
			"succeeded": res.Succeeded,
			"failed":    res.Failed,
		}).Infof("阶段结束，耗时 %s", res.Duration.Round(time.Millisecond))
		p.observe(res)
	}()

	log.Info("阶段开始")
	res.Stats, res.Err = stage.Run(ctx)
	if res.Err != nil {
		log.Errorf("阶段出错: %v", res.Err)
	}
	return res
}

func (p *Pipeline) observe(res StageResult) {
	if p.observer == nil {
		return
	}
	status := "success"
	switch {
	case res.Skipped:
		status = "skipped"
	case res.Err != nil:
		status = "error"
	}
	p.observer.ObserveStage(res.Name, status, res.Duration, res.Succeeded, res.Failed)
}
