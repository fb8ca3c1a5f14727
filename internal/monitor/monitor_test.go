package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/watches"
)

func TestMonitorStartsStopped(t *testing.T) {
	env := newTestEnv()
	assert.Equal(t, StateStopped, env.mon.Status())
}

func TestStartStopLifecycle(t *testing.T) {
	env := newTestEnv()
	env.watches.watches = []watches.Watch{testWatch()}
	env.client.slotsByDay["2024-06-01"] = []resy.Slot{{Start: "2024-06-01 19:00:00"}}

	ctx := context.Background()
	env.mon.Start(ctx)
	assert.Equal(t, StateRunning, env.mon.Status())

	// a second Start is a no-op: still exactly one "Monitor started" event
	env.mon.Start(ctx)
	assert.Len(t, env.activity.byKind("system"), 1)

	waitFor(t, func() bool { return env.client.findCount() >= 1 })

	env.mon.Stop(ctx)
	assert.Equal(t, StateStopped, env.mon.Status())

	sys := env.activity.byKind("system")
	require.Len(t, sys, 2)
	assert.Equal(t, "Monitor started", sys[0].Message)
	assert.Equal(t, "Monitor stopped", sys[1].Message)

	// a second Stop changes nothing
	env.mon.Stop(ctx)
	assert.Len(t, env.activity.byKind("system"), 2)
}

func TestStoppedMonitorSchedulesNoNewCycles(t *testing.T) {
	env := newTestEnv()
	env.watches.watches = []watches.Watch{testWatch()}

	ctx := context.Background()
	env.mon.Start(ctx)
	waitFor(t, func() bool { return env.client.findCount() >= 1 })
	env.mon.Stop(ctx)

	// let any in-flight cycle drain before sampling
	time.Sleep(30 * time.Millisecond)
	settled := env.client.findCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, env.client.findCount())
}

func TestCycleErrorIsLoggedAndLoopSurvives(t *testing.T) {
	env := newTestEnv()
	env.settings.err = assert.AnError

	ctx := context.Background()
	env.mon.Start(ctx)
	waitFor(t, func() bool { return len(env.activity.byKind("error")) >= 2 })
	env.mon.Stop(ctx)

	assert.Equal(t, StateStopped, env.mon.Status())
}

func TestTriggerScanRunsOutsideCadence(t *testing.T) {
	env := newTestEnv()
	env.watches.watches = []watches.Watch{testWatch()}
	env.client.slotsByDay["2024-06-01"] = []resy.Slot{{Start: "2024-06-01 19:00:00"}}

	require.Equal(t, StateStopped, env.mon.Status())
	env.mon.TriggerScan(context.Background())

	waitFor(t, func() bool { return len(env.slots.all()) == 1 })
	// triggering a scan does not start the loop
	assert.Equal(t, StateStopped, env.mon.Status())
}

func TestConcurrentScansRecordSlotOnce(t *testing.T) {
	env := newTestEnv()
	env.watches.watches = []watches.Watch{testWatch()}
	env.client.slotsByDay["2024-06-01"] = []resy.Slot{{Start: "2024-06-01 19:00:00", ConfigToken: "tok1"}}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		env.mon.TriggerScan(ctx)
	}

	waitFor(t, func() bool { return env.client.findCount() >= 5 })
	assert.Len(t, env.slots.all(), 1)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
