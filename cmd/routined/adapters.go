package main

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-routines/internal/scheduler"
)

// publisher is the MQTT surface the run observer needs.
type publisher interface {
	PublishJSON(topic string, v any) error
}

// mqttObserver publishes every run report to graylogic/core/routine/{id}/ran.
type mqttObserver struct {
	client publisher
	log    *logging.Logger
}

// RoutineRan implements scheduler.Observer.
func (o *mqttObserver) RoutineRan(_ context.Context, report scheduler.RunReport) {
	if err := o.client.PublishJSON(mqtt.Topics{}.RoutineRan(report.RoutineID), report); err != nil {
		o.log.Warn("failed to publish run report", "routine_id", report.RoutineID, "error", err)
	}
}

// pointWriter is the InfluxDB surface the run observer needs.
type pointWriter interface {
	WriteRoutineRun(s influxdb.RunSample)
	WriteActionResult(s influxdb.ActionSample)
}

// influxObserver writes one routine_run point per run and one
// routine_action point per action.
type influxObserver struct {
	client pointWriter
}

// RoutineRan implements scheduler.Observer.
func (o *influxObserver) RoutineRan(_ context.Context, report scheduler.RunReport) {
	o.client.WriteRoutineRun(influxdb.RunSample{
		RoutineID: report.RoutineID,
		Trigger:   report.Trigger,
		StartedAt: report.StartedAt,
		Duration:  report.Duration,
		Actions:   len(report.Results),
		Failures:  report.Failures(),
	})
	for _, res := range report.Results {
		o.client.WriteActionResult(influxdb.ActionSample{
			RoutineID: report.RoutineID,
			DeviceID:  res.DeviceID,
			Kind:      string(res.Kind),
			OK:        res.OK,
			At:        report.StartedAt,
		})
	}
}

// manualRunner is the scheduler surface run requests need.
type manualRunner interface {
	RunNow(ctx context.Context, id string) ([]scheduler.Result, error)
}

// runRequestHandler handles graylogic/core/routine/{id}/run messages. The
// payload is ignored. Runs happen off the paho callback goroutine and are
// tracked on runs so shutdown can wait for them before closing the
// activity database.
func runRequestHandler(ctx context.Context, runner manualRunner, runs *sync.WaitGroup, log *logging.Logger) mqtt.MessageHandler {
	return func(topic string, _ []byte) error {
		id, ok := mqtt.RoutineIDFromTopic(topic)
		if !ok {
			log.Debug("ignoring run request on unexpected topic", "topic", topic)
			return nil
		}
		runs.Add(1)
		go func() {
			defer runs.Done()
			if _, err := runner.RunNow(ctx, id); err != nil {
				log.Warn("mqtt run request failed", "routine_id", id, "error", err)
			}
		}()
		return nil
	}
}
