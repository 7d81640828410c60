// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежедневный тик сверки,
// часовой heartbeat на случай пропущенного запуска и еженедельная
// проверка сохранности леджера.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"nullvpn.ru/vpn-bot/internal/reconcile"
)

// Auditor — проверка сохранности леджера по всем аккаунтам.
type Auditor interface {
	AuditAll(ctx context.Context) ([]int64, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	engine   *reconcile.Engine
	auditor  Auditor
	tickSpec string
}

// NewScheduler создаёт планировщик задач в часовом поясе tz.
func NewScheduler(engine *reconcile.Engine, auditor Auditor, tickSpec, tz string) *Scheduler {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.WithError(err).Warnf("Не удалось загрузить таймзону %s, используем UTC+3", tz)
		loc = time.FixedZone("MSK", 3*60*60)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		engine:   engine,
		auditor:  auditor,
		tickSpec: tickSpec,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Ежедневный тик сверки
	s.cron.AddFunc(s.tickSpec, func() {
		log.Info("[CRON] Ежедневный тик сверки")
		if err := s.engine.RunTick(ctx, time.Now()); err != nil {
			log.WithError(err).Error("[CRON] Ошибка тика сверки")
		}
	})

	// Heartbeat: раз в час проверяем, не пропущен ли запуск (простой
	// процесса, упавший тик). Сколько бы дней ни было пропущено,
	// догоняющий запуск один — движок сам схлопывает пропуски.
	s.cron.AddFunc("15 * * * *", func() {
		need, err := s.engine.NeedsCatchUp(ctx, time.Now())
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка проверки пропущенных запусков")
			return
		}
		if !need {
			return
		}
		log.Info("[CRON] Обнаружен пропущенный запуск, догоняем")
		if err := s.engine.RunTick(ctx, time.Now()); err != nil {
			log.WithError(err).Error("[CRON] Ошибка догоняющего тика")
		}
	})

	// Еженедельная проверка инварианта леджера
	s.cron.AddFunc("0 5 * * 1", func() {
		log.Info("[CRON] Проверка сохранности леджера")
		broken, err := s.auditor.AuditAll(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка проверки леджера")
			return
		}
		if len(broken) > 0 {
			log.WithField("accounts", broken).Error("[CRON] Найдены расхождения леджера")
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен")
}

// Stop останавливает планировщик, дождавшись активных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
