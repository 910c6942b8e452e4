package app

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/pkg/metrics"
	"go.uber.org/zap"
)

const (
	MetricSystemCPU = "system_cpuuse"
	MetricSystemMem = "system_memuse"

	auditRetention = 365 * 24 * time.Hour
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ErrUnknownJob is returned by RunJobNow for unregistered names
var ErrUnknownJob = errors.New("unknown job")

type job struct {
	name  string
	spec  string
	run   func()
	entry cron.EntryID
}

// JobStatus describes a registered maintenance job
type JobStatus struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	if loc == nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	a.registerJob("system_monitor", "@every 30s", func() {
		go a.SchedSystemMonitorTask()
	})
	a.registerJob("audit_cleanup", "@daily", a.SchedClearAuditLogs)
	a.registerJob("rating_expiry", "@hourly", a.SchedExpireRatings)

	a.sched.Start()
}

func (a *Application) registerJob(name, spec string, fn func()) {
	id, err := a.sched.AddFunc(spec, fn)
	if err != nil {
		zap.S().Errorf("init job %s error %s", name, err.Error())
		return
	}
	a.jobsMu.Lock()
	defer a.jobsMu.Unlock()
	a.jobs = append(a.jobs, &job{name: name, spec: spec, run: fn, entry: id})
}

// Jobs lists registered jobs with their schedule state
func (a *Application) Jobs() []JobStatus {
	a.jobsMu.RLock()
	defer a.jobsMu.RUnlock()
	out := make([]JobStatus, 0, len(a.jobs))
	for _, j := range a.jobs {
		st := JobStatus{Name: j.name, Spec: j.spec}
		if a.sched != nil {
			entry := a.sched.Entry(j.entry)
			st.Next = entry.Next
			st.Prev = entry.Prev
		}
		out = append(out, st)
	}
	return out
}

// RunJobNow triggers a job outside its schedule without waiting for it
func (a *Application) RunJobNow(name string) error {
	a.jobsMu.RLock()
	defer a.jobsMu.RUnlock()
	for _, j := range a.jobs {
		if j.name == name {
			go j.run()
			zap.L().Info("job triggered", zap.String("job", name))
			return nil
		}
	}
	return ErrUnknownJob
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	// Collect CPU usage
	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge(MetricSystemCPU, int64(_cpuuse[0]*100)) // Store as percentage * 100
	}

	// Collect memory usage
	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge(MetricSystemMem, int64(_meminfo.UsedPercent*100))
	}
}

// SchedClearAuditLogs drops audit entries past retention
func (a *Application) SchedClearAuditLogs() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	res := a.gormDB.Where("created_at < ?", time.Now().Add(-auditRetention)).Delete(&domain.AuditLog{})
	if res.Error != nil {
		zap.L().Error("audit log cleanup failed", zap.Error(res.Error))
		return
	}
	zap.L().Info("audit log cleanup", zap.Int64("deleted", res.RowsAffected))
}

// SchedExpireRatings removes rating links that were never answered
func (a *Application) SchedExpireRatings() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	res := a.gormDB.Where("answered_at IS NULL AND expires_at < ?", time.Now()).Delete(&domain.Rating{})
	if res.Error != nil {
		zap.L().Error("rating expiry failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		zap.L().Info("expired rating links", zap.Int64("deleted", res.RowsAffected))
	}
}
