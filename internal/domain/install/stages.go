package install

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Stage is a point in the lifecycle of one plugin step.
type Stage string

// Stages.
const (
	StagePending             Stage = "pending"
	StageBackupExisting      Stage = "backup_existing"
	StageInstallRequirements Stage = "install_requirements"
	StageDownload            Stage = "download"
	StageActivate            Stage = "activate"
	StageDone                Stage = "done"
	StageFailed              Stage = "failed"
)

// Step machine events.
const (
	EventBackup       = "BACKUP"
	EventRequirements = "REQUIREMENTS"
	EventDownload     = "DOWNLOAD"
	EventActivate     = "ACTIVATE"
	EventComplete     = "COMPLETE"
	EventFail         = "FAIL"
	EventReset        = "RESET"
)

// stepContext is the statekit context of a step machine.
type stepContext struct {
	PluginID string
}

// stepTrace collects what the machine observed while a step ran.
type stepTrace struct {
	stages   []Stage
	failedAt Stage
	err      error
}

func (t *stepTrace) recordFailure(event statekit.Event) {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		return
	}
	if stage, ok := payload["stage"].(Stage); ok {
		t.failedAt = stage
	}
	if err, ok := payload["error"].(error); ok {
		t.err = err
	}
}

// buildStepMachine constructs the state machine that orders one plugin step.
// Upgrades pass through backup_existing; fresh installs go straight to requirements.
func buildStepMachine(pluginID string, trace *stepTrace) (*statekit.Interpreter[stepContext], error) {
	machine, err := statekit.NewMachine[stepContext]("install-step").
		WithInitial("pending").
		WithContext(stepContext{PluginID: pluginID}).
		WithAction("recordFailure", func(_ *stepContext, event statekit.Event) {
			trace.recordFailure(event)
		}).
		State("pending").
		On(EventBackup).Target("backup_existing").
		On(EventRequirements).Target("install_requirements").
		On(EventFail).Target("failed").Done().
		State("backup_existing").
		On(EventRequirements).Target("install_requirements").
		On(EventFail).Target("failed").Done().
		State("install_requirements").
		On(EventDownload).Target("download").
		On(EventFail).Target("failed").Done().
		State("download").
		On(EventActivate).Target("activate").
		On(EventFail).Target("failed").Done().
		State("activate").
		On(EventComplete).Target("done").
		On(EventFail).Target("failed").Done().
		State("done").
		On(EventReset).Target("pending").Done().
		State("failed").
		OnEntry("recordFailure").
		On(EventReset).Target("pending").Done().
		Build()

	if err != nil {
		return nil, err
	}

	return statekit.NewInterpreter(machine), nil
}

// stepRun drives a step machine and records each stage it enters.
type stepRun struct {
	interp *statekit.Interpreter[stepContext]
	trace  *stepTrace
}

func newStepRun(pluginID string) (*stepRun, error) {
	trace := &stepTrace{}
	interp, err := buildStepMachine(pluginID, trace)
	if err != nil {
		return nil, fmt.Errorf("failed to build step machine: %w", err)
	}
	interp.Start()
	trace.stages = append(trace.stages, StagePending)
	return &stepRun{interp: interp, trace: trace}, nil
}

// current returns the stage the machine is in.
func (r *stepRun) current() Stage {
	return Stage(r.interp.State().Value)
}

// advance sends event and checks the machine reached want.
func (r *stepRun) advance(event string, want Stage) error {
	r.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	got := r.current()
	if got != want {
		return fmt.Errorf("illegal step transition %s on %s: now in %s", event, r.trace.last(), got)
	}
	r.trace.stages = append(r.trace.stages, got)
	return nil
}

// fail moves the machine to failed, recording the stage and cause.
func (r *stepRun) fail(stage Stage, err error) {
	r.interp.Send(statekit.Event{
		Type:    EventFail,
		Payload: map[string]interface{}{"stage": stage, "error": err},
	})
	r.trace.stages = append(r.trace.stages, r.current())
}

func (r *stepRun) stop() {
	r.interp.Stop()
}

func (t *stepTrace) last() Stage {
	if len(t.stages) == 0 {
		return StagePending
	}
	return t.stages[len(t.stages)-1]
}
