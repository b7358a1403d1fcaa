// Package mqtt connects the routines service to the Gray Logic message bus.
//
// The service publishes a run report after every routine execution and
// accepts run requests from other services:
//
//	graylogic/core/routine/{id}/ran   run report (published)
//	graylogic/core/routine/{id}/run   run request (subscribed)
//	graylogic/system/routines/status  retained online/offline status
//
// A Last Will message marks the service offline if it disappears without
// a clean Close.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllRoutineRuns(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.RoutineIDFromTopic(topic)
//	        return sched.RunNow(ctx, id)
//	    })
package mqtt
