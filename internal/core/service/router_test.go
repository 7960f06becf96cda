package service

import (
	"testing"

	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoorSensorReadyOnDiscovery(t *testing.T) {

	require := require.New(t)
	f := newRouterFixture()

	require.NoError(f.router.Handle(zwave.NodeAdded(7)))
	require.NoError(f.router.Handle(zwave.ValueChanged(7, vid(48, 0, "Sensor", zwave.Number(0)))))

	require.Len(f.publisher.sent, 1)
	n := f.publisher.sent[0]
	require.Equal(domain.CHANNEL_SENSORS, n.Channel)
	require.Equal("frontDoor", n.SensorID)
	require.Equal(fixedNow, n.Timestamp)
	require.True(n.State.Equal(zwave.String(domain.STATE_CLOSED)))
}

func TestLightWaitsForReady(t *testing.T) {

	require := require.New(t)
	f := newRouterFixture()
	on := vid(38, 0, "Level", zwave.Number(99))

	require.NoError(f.router.Handle(zwave.NodeAdded(3)))
	require.NoError(f.router.Handle(zwave.ValueChanged(3, on)))
	require.Empty(f.publisher.sent, "node not ready yet")

	require.NoError(f.router.Handle(zwave.NodeReady(3, zwave.NodeInfo{Manufacturer: "Aeotec", Product: "Dimmer"})))
	require.NoError(f.router.Handle(zwave.ValueChanged(3, on)))

	lights := f.publisher.on(domain.CHANNEL_LIGHTS)
	require.Len(lights, 1)
	require.Equal("livingRoomLight", lights[0].SensorID)
	require.True(lights[0].State.Equal(zwave.Number(99)))
}

func TestNoNotificationBeforeReady(t *testing.T) {

	f := newRouterFixture()
	for _, node := range []int{2, 3, 4, 5, 8} {
		require.NoError(t, f.router.Handle(zwave.NodeAdded(node)))
		require.NoError(t, f.router.Handle(zwave.ValueChanged(node, vid(37, 0, "Switch", zwave.Bool(true)))))
		require.NoError(t, f.router.Handle(zwave.ValueChanged(node, vid(38, 0, "Level", zwave.Number(20)))))
		require.NoError(t, f.router.Handle(zwave.NodeEvent(node, zwave.Number(255))))
	}
	assert.Empty(t, f.publisher.sent)
}

func TestDisconnectedDropsBeforeReadyCheck(t *testing.T) {

	f := newRouterFixture()
	f.connection.up.Store(false)

	require.NoError(t, f.router.Handle(zwave.NodeAdded(7)))
	require.NoError(t, f.router.Handle(zwave.ValueChanged(7, vid(48, 0, "Sensor", zwave.Number(255)))))
	assert.Empty(t, f.publisher.sent)

	attrs, err := f.registry.Attributes(7)
	require.NoError(t, err)
	assert.Len(t, attrs, 1, "value is stored even when it cannot be published")

	f.connection.up.Store(true)
	require.NoError(t, f.router.Handle(zwave.ValueChanged(7, vid(48, 0, "Sensor", zwave.Number(255)))))
	assert.Len(t, f.publisher.sent, 1)
}

func TestUnknownNodeIsAnError(t *testing.T) {

	f := newRouterFixture()
	var unknown registry.UnknownDeviceError

	err := f.router.Handle(zwave.ValueChanged(11, vid(37, 0, "Switch", zwave.Bool(true))))
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, 11, unknown.NodeID)

	assert.ErrorAs(t, f.router.Handle(zwave.ValueAdded(11, vid(37, 0, "Switch", zwave.Bool(true)))), &unknown)
	assert.ErrorAs(t, f.router.Handle(zwave.NodeReady(11, zwave.NodeInfo{})), &unknown)
	assert.Empty(t, f.registry.Snapshot(), "events must not create devices")
}

func TestUnknownNodeIsAnErrorWhileDisconnected(t *testing.T) {

	f := newRouterFixture()
	f.connection.up.Store(false)
	var unknown registry.UnknownDeviceError

	assert.ErrorAs(t, f.router.Handle(zwave.NodeEvent(12, zwave.Number(255))), &unknown)
	assert.Equal(t, 12, unknown.NodeID)
	assert.ErrorAs(t, f.router.Handle(zwave.ValueChanged(12, vid(37, 0, "Switch", zwave.Bool(true)))), &unknown)
	assert.Empty(t, f.publisher.sent)
}

func TestDoorAndMotionAreNotDeduplicated(t *testing.T) {

	require := require.New(t)
	f := newRouterFixture()

	require.NoError(f.router.Handle(zwave.NodeAdded(8)))
	require.NoError(f.router.Handle(zwave.NodeReady(8, zwave.NodeInfo{})))
	require.NoError(f.router.Handle(zwave.NodeAdded(7)))

	for i := 0; i < 2; i++ {
		require.NoError(f.router.Handle(zwave.ValueChanged(7, vid(48, 0, "Sensor", zwave.Bool(true)))))
		require.NoError(f.router.Handle(zwave.ValueChanged(8, vid(48, 0, "Sensor", zwave.Bool(true)))))
	}

	doors := 0
	for _, n := range f.publisher.on(domain.CHANNEL_SENSORS) {
		if n.SensorID == "frontDoor" {
			doors++
			require.True(n.State.Equal(zwave.String(domain.STATE_OPEN)))
		}
	}
	require.Equal(2, doors)
	require.Len(f.publisher.on(domain.CHANNEL_MOTION), 2)
}

func TestOutletIsNotDeduplicated(t *testing.T) {

	f := newRouterFixture()
	require.NoError(t, f.router.Handle(zwave.NodeAdded(2)))
	require.NoError(t, f.router.Handle(zwave.NodeReady(2, zwave.NodeInfo{})))

	require.NoError(t, f.router.Handle(zwave.ValueChanged(2, vid(37, 0, "Switch", zwave.Bool(true)))))
	require.NoError(t, f.router.Handle(zwave.ValueChanged(2, vid(37, 0, "Switch", zwave.Bool(true)))))
	require.NoError(t, f.router.Handle(zwave.ValueChanged(2, vid(50, 2, "Power", zwave.Number(3.5)))))

	outlets := f.publisher.on(domain.CHANNEL_OUTLETS)
	require.Len(t, outlets, 2, "other classes do not reach the outlet role")
	assert.True(t, outlets[1].State.Equal(zwave.String(domain.STATE_ON)))
}

func TestLightDeduplication(t *testing.T) {

	require := require.New(t)
	f := newRouterFixture()
	require.NoError(f.router.Handle(zwave.NodeAdded(5)))
	require.NoError(f.router.Handle(zwave.NodeReady(5, zwave.NodeInfo{})))

	for _, on := range []bool{true, true, false, false, true} {
		require.NoError(f.router.Handle(zwave.ValueChanged(5, vid(37, 0, "Switch", zwave.Bool(on)))))
	}

	lights := f.publisher.on(domain.CHANNEL_LIGHTS)
	require.Len(lights, 3)
	states := []string{}
	for _, n := range lights {
		states = append(states, n.State.String)
	}
	require.Equal([]string{domain.STATE_ON, domain.STATE_OFF, domain.STATE_ON}, states)
}

func TestMultiSensorComposite(t *testing.T) {

	require := require.New(t)
	f := newRouterFixture()

	require.NoError(f.router.Handle(zwave.NodeAdded(8)))
	require.NoError(f.router.Handle(zwave.ValueAdded(8, vid(49, 1, "Temperature", zwave.Number(21.5)))))
	require.NoError(f.router.Handle(zwave.ValueAdded(8, vid(49, 3, "Luminance", zwave.Number(40)))))
	require.NoError(f.router.Handle(zwave.ValueAdded(8, vid(112, 9, "Wake-up Interval", zwave.Number(3600)))))
	require.NoError(f.router.Handle(zwave.NodeReady(8, zwave.NodeInfo{})))
	require.Empty(f.publisher.sent, "added values and readiness do not publish")

	require.NoError(f.router.Handle(zwave.ValueChanged(8, vid(128, 0, "Battery Level", zwave.Number(87)))))

	var composites []domain.Notification
	for _, n := range f.publisher.on(domain.CHANNEL_SENSORS) {
		if n.IsComposite() {
			composites = append(composites, n)
		}
	}
	require.Len(composites, 1)
	c := composites[0]
	require.Equal("multiSensor", c.SensorID)
	require.Len(c.Values, 3)
	require.True(c.Values["Temperature"].Equal(zwave.Number(21.5)))
	require.True(c.Values["Luminance"].Equal(zwave.Number(40)))
	require.True(c.Values["Battery Level"].Equal(zwave.Number(87)))
	require.NotContains(c.Values, "Wake-up Interval")

	require.Len(f.publisher.on(domain.CHANNEL_MOTION), 1, "node 8 is also the motion sensor")
}

func TestValueRemovedTwice(t *testing.T) {

	f := newRouterFixture()
	require.NoError(t, f.router.Handle(zwave.NodeAdded(8)))
	require.NoError(t, f.router.Handle(zwave.ValueAdded(8, vid(49, 1, "Temperature", zwave.Number(20)))))

	assert.NoError(t, f.router.Handle(zwave.ValueRemoved(8, 49, 1, 1)))
	assert.NoError(t, f.router.Handle(zwave.ValueRemoved(8, 49, 1, 1)))

	attrs, err := f.registry.Attributes(8)
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestValueRefreshedIgnoredUntilReady(t *testing.T) {

	require := require.New(t)
	f := newRouterFixture()
	require.NoError(f.router.Handle(zwave.NodeAdded(4)))

	require.NoError(f.router.Handle(zwave.ValueRefreshed(4, vid(37, 0, "Switch", zwave.Bool(true)))))
	attrs, err := f.registry.Attributes(4)
	require.NoError(err)
	require.Empty(attrs)

	require.NoError(f.router.Handle(zwave.NodeReady(4, zwave.NodeInfo{})))
	require.NoError(f.router.Handle(zwave.ValueRefreshed(4, vid(37, 0, "Switch", zwave.Bool(true)))))
	attrs, err = f.registry.Attributes(4)
	require.NoError(err)
	require.Len(attrs, 1)
	require.Len(f.publisher.on(domain.CHANNEL_OUTLETS), 1)
}

func TestNodeReadyEnablesLightPolling(t *testing.T) {

	f := newRouterFixture()
	for _, node := range []int{2, 3, 5} {
		require.NoError(t, f.router.Handle(zwave.NodeAdded(node)))
		require.NoError(t, f.router.Handle(zwave.NodeReady(node, zwave.NodeInfo{})))
	}
	assert.Equal(t, []poll{{3, 38}, {5, 37}}, f.poller.polls)

	dev, err := f.registry.Get(3)
	require.NoError(t, err)
	assert.True(t, dev.Ready)
}

func TestNodeEventReachesOnlyClasslessRoles(t *testing.T) {

	require := require.New(t)
	f := newRouterFixture()
	require.NoError(f.router.Handle(zwave.NodeAdded(7)))
	require.NoError(f.router.Handle(zwave.NodeAdded(3)))
	require.NoError(f.router.Handle(zwave.NodeReady(3, zwave.NodeInfo{})))

	require.NoError(f.router.Handle(zwave.NodeEvent(7, zwave.Number(255))))
	require.NoError(f.router.Handle(zwave.NodeEvent(3, zwave.Number(255))))

	require.Len(f.publisher.sent, 1)
	require.Equal("frontDoor", f.publisher.sent[0].SensorID)
	require.True(f.publisher.sent[0].State.Equal(zwave.String(domain.STATE_OPEN)))
}

func TestLifecycleEventsAreLoggedOnly(t *testing.T) {

	f := newRouterFixture()
	for _, ev := range []zwave.Event{
		{Kind: zwave.EventDriverReady, HomeID: 0xcafe},
		{Kind: zwave.EventScanComplete},
		{Kind: zwave.EventControllerCommand, Message: "inclusion started"},
		{Kind: zwave.EventPollingChanged, NodeID: 3},
		{Kind: zwave.EventSceneEvent, NodeID: 9},
	} {
		assert.NoError(t, f.router.Handle(ev))
	}
	assert.Empty(t, f.publisher.sent)
	assert.Empty(t, f.registry.Snapshot())
}
