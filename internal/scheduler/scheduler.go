// Package scheduler — реестр периодических фоновых задач агента
// (опрос уведомлений и т.п.). Регистрация явная, из bootstrap-кода main,
// никогда — побочным эффектом импорта.
//
// Интервал не может быть чаще минимума: точное время срабатывания не
// гарантируется, тикер может запаздывать — код задач не должен полагаться
// на расписание.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ritmofit/internal/kv"
	"github.com/ritmofit/internal/logger"
)

// MinInterval — минимальный период фоновой задачи (15 минут).
const MinInterval = 15 * time.Minute

// runTimeout ограничивает один запуск тела задачи.
const runTimeout = 5 * time.Minute

// Result — явный исход запуска задачи. Паника или ошибка тела задачи
// превращаются в ResultFailure, никогда не выпадают из планировщика.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Task — периодическая задача.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Status — состояние задачи для диагностики.
type Status struct {
	Registered bool      `json:"registered"`
	Interval   string    `json:"interval,omitempty"`
	LastRunAt  time.Time `json:"last_run_at,omitzero"`
	LastResult Result    `json:"last_result,omitempty"`
}

type running struct {
	task   Task
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	lastRunAt  time.Time
	lastResult Result
}

// Scheduler — реестр задач. flags — kv-хранилище для диагностического
// флага "регистрация запрашивалась"; флаг не авторитетен, IsRegistered
// всегда смотрит в живой реестр.
type Scheduler struct {
	mu    sync.Mutex
	flags kv.Store
	tasks map[string]*running
}

func New(flags kv.Store) *Scheduler {
	return &Scheduler{flags: flags, tasks: make(map[string]*running)}
}

func flagKey(name string) string { return "bg:" + name + ":requested" }

// Register ставит задачу в реестр и запускает её цикл. Идемпотентна:
// повторная регистрация того же имени — no-op без ошибки.
func (s *Scheduler) Register(ctx context.Context, t Task) error {
	if t.Name == "" || t.Run == nil {
		return fmt.Errorf("scheduler: task needs a name and a body")
	}
	if t.Interval < MinInterval {
		t.Interval = MinInterval
	}
	s.mu.Lock()
	if _, ok := s.tasks[t.Name]; ok {
		s.mu.Unlock()
		logger.Debugf("scheduler: task %s already registered", t.Name)
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	r := &running{task: t, cancel: cancel, done: make(chan struct{})}
	s.tasks[t.Name] = r
	s.mu.Unlock()

	if s.flags != nil {
		if err := s.flags.Set(ctx, flagKey(t.Name), "true"); err != nil {
			logger.Errorf("scheduler: persist registration flag %s: %v", t.Name, err)
		}
	}
	go s.loop(loopCtx, r)
	logger.Infof("scheduler: task %s registered, interval %s", t.Name, t.Interval)
	return nil
}

// Unregister снимает задачу и дожидается остановки цикла. Безопасна для
// незарегистрированного имени.
func (s *Scheduler) Unregister(ctx context.Context, name string) {
	s.mu.Lock()
	r, ok := s.tasks[name]
	delete(s.tasks, name)
	s.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	<-r.done
	if s.flags != nil {
		if err := s.flags.Delete(ctx, flagKey(name)); err != nil {
			logger.Errorf("scheduler: clear registration flag %s: %v", name, err)
		}
	}
	logger.Infof("scheduler: task %s unregistered", name)
}

// IsRegistered опрашивает живой реестр (не сохранённый флаг).
func (s *Scheduler) IsRegistered(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

// Status возвращает состояние задачи.
func (s *Scheduler) Status(name string) Status {
	s.mu.Lock()
	r, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return Status{Registered: false}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Registered: true,
		Interval:   r.task.Interval.String(),
		LastRunAt:  r.lastRunAt,
		LastResult: r.lastResult,
	}
}

// RunNow немедленно выполняет тело задачи с тем же маппингом исхода, что и
// по тику. Возвращает false, если задача не зарегистрирована.
func (s *Scheduler) RunNow(ctx context.Context, name string) (Result, bool) {
	s.mu.Lock()
	r, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return ResultFailure, false
	}
	return s.runOnce(ctx, r), true
}

// Close снимает все задачи (graceful shutdown).
func (s *Scheduler) Close() {
	s.mu.Lock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	s.mu.Unlock()
	for _, name := range names {
		s.Unregister(context.Background(), name)
	}
}

func (s *Scheduler) loop(ctx context.Context, r *running) {
	defer close(r.done)
	ticker := time.NewTicker(r.task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, r)
		}
	}
}

// runOnce выполняет тело задачи и отображает исход в явный Result.
// Паника тела восстанавливается: необработанный сбой фоновой задачи не
// должен ронять процесс или цикл.
func (s *Scheduler) runOnce(ctx context.Context, r *running) (res Result) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("scheduler: task %s panicked: %v", r.task.Name, p)
			res = ResultFailure
		}
		r.mu.Lock()
		r.lastRunAt = time.Now()
		r.lastResult = res
		r.mu.Unlock()
	}()
	if err := r.task.Run(runCtx); err != nil {
		logger.Errorf("scheduler: task %s failed: %v", r.task.Name, err)
		return ResultFailure
	}
	return ResultSuccess
}
