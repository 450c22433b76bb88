package service

import (
	"context"

	"subbrute/internal/storage"
	"subbrute/internal/utils"

	"github.com/robfig/cron/v3"
)

// Scheduler re-brutes the monitored domains on a cron spec so newly appearing
// subdomains show up in the run history without manual runs.
type Scheduler struct {
	Cron  *cron.Cron
	Store *storage.Storage
	Brute *BruteService
	Spec  string
}

func NewScheduler(store *storage.Storage, brute *BruteService, spec string) *Scheduler {
	return &Scheduler{
		Cron:  cron.New(),
		Store: store,
		Brute: brute,
		Spec:  spec,
	}
}

func (s *Scheduler) Start() {
	_, err := s.Cron.AddFunc(s.Spec, func() {
		domains, err := s.Store.GetMonitoredDomains(context.Background())
		if err != nil {
			utils.Log.Error("scheduler could not load monitored domains",
				utils.Field("error", err.Error()))
			return
		}
		if len(domains) == 0 {
			return
		}
		utils.Log.Info("scheduled re-brute", utils.Field("domains", domains))
		opts := &BruteOptions{Domains: domains, Word: true}
		if _, err := s.Brute.Run(context.Background(), opts); err != nil {
			utils.Log.Error("scheduled re-brute failed", utils.Field("error", err.Error()))
		}
	})
	if err != nil {
		utils.Log.Error("invalid monitor cron spec",
			utils.Field("spec", s.Spec), utils.Field("error", err.Error()))
		return
	}
	s.Cron.Start()
	utils.Log.Info("scheduler started", utils.Field("spec", s.Spec))
}

func (s *Scheduler) Stop() {
	s.Cron.Stop()
}
