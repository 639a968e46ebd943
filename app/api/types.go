package api

import (
	"context"

	"github.com/ekaracan/newspulse/app/breaker"
	"github.com/ekaracan/newspulse/app/instability"
)

type SchedulerInterface interface {
	TriggerNow() error
}

type InstabilityInterface interface {
	Compute(ctx context.Context, country string) (*instability.Score, error)
	Anomaly(ctx context.Context, country string) (*instability.VolumeAnomaly, error)
}

var _ InstabilityInterface = (*instability.Engine)(nil)

type Handler struct {
	scheduler SchedulerInterface
	engine    InstabilityInterface
	circuits  *breaker.Registry
	countries []string
	version   string
}
