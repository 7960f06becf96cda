package zwave

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEventsTopic = "zwave/_EVENTS/ZWAVE_GATEWAY-test/"

func newTestGateway() *GatewayDriver {
	return NewGatewayDriver(GatewayOptions{Prefix: "zwave", GatewayName: "test"})
}

func nextEvent(t *testing.T, d *GatewayDriver) Event {
	t.Helper()
	select {
	case ev := <-d.Events():
		return ev
	default:
		t.Fatal("expected an event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, d *GatewayDriver) {
	t.Helper()
	select {
	case ev := <-d.Events():
		t.Fatalf("unexpected event %s", ev)
	default:
	}
}

func TestGatewaySynthesizesNodeAdded(t *testing.T) {

	require := require.New(t)
	d := newTestGateway()

	d.handleMessage(testEventsTopic+"node/node ready", []byte(`{"data":[{"id":3,"manufacturer":"Aeotec","manufacturerId":134,"productLabel":"ZW100","productType":2,"productId":100,"name":"living","loc":"downstairs"}]}`))

	ev := nextEvent(t, d)
	require.Equal(EventNodeAdded, ev.Kind)
	require.Equal(3, ev.NodeID)

	ev = nextEvent(t, d)
	require.Equal(EventNodeReady, ev.Kind)
	require.NotNil(ev.Info)
	require.Equal("Aeotec", ev.Info.Manufacturer)
	require.Equal("134", ev.Info.ManufacturerID)
	require.Equal("ZW100", ev.Info.Product)
	require.Equal("100", ev.Info.ProductID)
	require.Equal("downstairs", ev.Info.Location)

	// second event for the same node does not rediscover it
	d.handleMessage(testEventsTopic+"node/node ready", []byte(`{"data":[{"id":3}]}`))
	ev = nextEvent(t, d)
	require.Equal(EventNodeReady, ev.Kind)
	assertNoEvent(t, d)
}

func TestGatewayValueEvents(t *testing.T) {

	assert := assert.New(t)
	d := newTestGateway()

	d.handleMessage(testEventsTopic+"node/value added", []byte(`{"data":[{"id":5},{"commandClass":37,"endpoint":0,"property":"currentValue","propertyName":"currentValue","newValue":false}]}`))
	assert.Equal(EventNodeAdded, nextEvent(t, d).Kind)

	ev := nextEvent(t, d)
	assert.Equal(EventValueAdded, ev.Kind)
	assert.Equal(37, ev.ValueID.ClassID)
	assert.Equal(1, ev.ValueID.Instance)
	assert.Equal(0, ev.ValueID.Index)
	assert.True(ev.ValueID.Value.Equal(Bool(false)))

	d.handleMessage(testEventsTopic+"node/value updated", []byte(`{"data":[{"id":5},{"commandClass":49,"endpoint":0,"property":"Air temperature","propertyName":"Air temperature","newValue":21.5,"prevValue":21}]}`))
	ev = nextEvent(t, d)
	assert.Equal(EventValueChanged, ev.Kind)
	assert.Equal(1, ev.ValueID.Index)
	assert.Equal("Air temperature", ev.ValueID.Label)
	assert.True(ev.ValueID.Value.Equal(Number(21.5)))

	d.handleMessage(testEventsTopic+"node/value notification", []byte(`{"data":[{"id":5},{"commandClass":49,"endpoint":0,"property":"Air temperature","value":22}]}`))
	ev = nextEvent(t, d)
	assert.Equal(EventValueRefreshed, ev.Kind)
	assert.Equal(1, ev.ValueID.Index, "same property keeps its index")

	d.handleMessage(testEventsTopic+"node/value removed", []byte(`{"data":[{"id":5},{"commandClass":49,"endpoint":0,"property":"Air temperature"}]}`))
	ev = nextEvent(t, d)
	assert.Equal(EventValueRemoved, ev.Kind)
	assert.Equal(49, ev.ClassID)
	assert.Equal(1, ev.Index)
}

func TestGatewayPropertyKeyLabel(t *testing.T) {

	d := newTestGateway()
	d.handleMessage(testEventsTopic+"node/value updated", []byte(`{"data":[{"id":8},{"commandClass":113,"endpoint":0,"property":"Home Security","propertyKey":"Motion sensor status","propertyKeyName":"Motion sensor status","propertyName":"Home Security","newValue":8}]}`))
	nextEvent(t, d)
	ev := nextEvent(t, d)
	assert.Equal(t, "Home Security Motion sensor status", ev.ValueID.Label)
	assert.Equal(t, 1, ev.ValueID.Index)
}

func TestGatewayNodeNotification(t *testing.T) {

	d := newTestGateway()
	d.handleMessage(testEventsTopic+"node/notification", []byte(`{"data":[{"id":7},32,255]}`))
	assert.Equal(t, EventNodeAdded, nextEvent(t, d).Kind)
	ev := nextEvent(t, d)
	assert.Equal(t, EventNodeEvent, ev.Kind)
	assert.Equal(t, NoClass, ev.ClassID)
	assert.True(t, ev.Data.Equal(Number(255)))
}

func TestGatewayDoorNotificationLevels(t *testing.T) {

	assert := assert.New(t)
	d := newTestGateway()

	d.handleMessage(testEventsTopic+"node/notification", []byte(`{"data":[{"id":7},113,{"type":6,"event":22,"eventLabel":"Window/door is open"}]}`))
	assert.Equal(EventNodeAdded, nextEvent(t, d).Kind)
	ev := nextEvent(t, d)
	assert.Equal(EventNodeEvent, ev.Kind)
	assert.False(ev.Data.IsZero())

	d.handleMessage(testEventsTopic+"node/notification", []byte(`{"data":[{"id":7},113,{"type":6,"event":23,"eventLabel":"Window/door is closed"}]}`))
	ev = nextEvent(t, d)
	assert.Equal(EventNodeEvent, ev.Kind)
	assert.True(ev.Data.IsZero(), "door closed is level 0")

	d.handleMessage(testEventsTopic+"node/notification", []byte(`{"data":[{"id":8},113,{"type":7,"event":0,"eventLabel":"idle"}]}`))
	assert.Equal(EventNodeAdded, nextEvent(t, d).Kind)
	ev = nextEvent(t, d)
	assert.Equal(EventNodeEvent, ev.Kind)
	assert.True(ev.Data.IsZero(), "idle is level 0")
}

func TestGatewayUninterpretedNotification(t *testing.T) {

	d := newTestGateway()
	d.handleMessage(testEventsTopic+"node/notification", []byte(`{"data":[{"id":9},111,{"eventType":2,"dataType":1,"eventData":"1234"}]}`))
	assert.Equal(t, EventNodeAdded, nextEvent(t, d).Kind)
	ev := nextEvent(t, d)
	assert.Equal(t, EventNotification, ev.Kind, "no node event without a level")
	assert.Equal(t, 9, ev.NodeID)
	assertNoEvent(t, d)
}

func TestGatewayReplaysNodeList(t *testing.T) {

	require := require.New(t)
	d := newTestGateway()

	d.handleMessage("zwave/_CLIENTS/ZWAVE_GATEWAY-test/api/getNodes", []byte(`{"success":true,"message":"Success zwave api call","result":[
		{"id":1,"ready":true,"manufacturer":"Aeotec","values":{}},
		{"id":3,"ready":true,"manufacturer":"Aeotec","productLabel":"ZW111","values":{
			"38-0-currentValue":{"commandClass":38,"endpoint":0,"property":"currentValue","propertyName":"currentValue","label":"Current value","value":99}
		}},
		{"id":4,"ready":false,"values":[
			{"commandClass":37,"endpoint":0,"property":"currentValue","propertyName":"currentValue","value":true}
		]}
	]}`))

	ev := nextEvent(t, d)
	require.Equal(EventNodeAdded, ev.Kind)
	require.Equal(1, ev.NodeID)
	require.Equal(EventNodeReady, nextEvent(t, d).Kind)

	require.Equal(EventNodeAdded, nextEvent(t, d).Kind)
	ev = nextEvent(t, d)
	require.Equal(EventValueAdded, ev.Kind)
	require.Equal(38, ev.ValueID.ClassID)
	require.Equal(0, ev.ValueID.Index)
	require.Equal("Current value", ev.ValueID.Label)
	require.True(ev.ValueID.Value.Equal(Number(99)))
	ev = nextEvent(t, d)
	require.Equal(EventNodeReady, ev.Kind)
	require.Equal("ZW111", ev.Info.Product)

	ev = nextEvent(t, d)
	require.Equal(EventNodeAdded, ev.Kind)
	require.Equal(4, ev.NodeID)
	ev = nextEvent(t, d)
	require.Equal(EventValueAdded, ev.Kind)
	require.True(ev.ValueID.Value.Equal(Bool(true)))
	assertNoEvent(t, d)

	// a second reply, as after a reconnect, does not rediscover nodes
	d.handleMessage("zwave/_CLIENTS/ZWAVE_GATEWAY-test/api/getNodes", []byte(`{"success":true,"result":[{"id":1,"ready":true}]}`))
	require.Equal(EventNodeReady, nextEvent(t, d).Kind)
	assertNoEvent(t, d)

	d.handleMessage("zwave/_CLIENTS/ZWAVE_GATEWAY-test/api/getNodes", []byte(`{"success":false,"message":"driver not ready"}`))
	assertNoEvent(t, d)
}

func TestGatewayDriverEvents(t *testing.T) {

	assert := assert.New(t)
	d := newTestGateway()

	d.handleMessage(testEventsTopic+"driver/driver ready", []byte(`{"data":[3735928559]}`))
	ev := nextEvent(t, d)
	assert.Equal(EventDriverReady, ev.Kind)
	assert.Equal(uint32(0xdeadbeef), ev.HomeID)

	d.handleMessage(testEventsTopic+"driver/all nodes ready", []byte(`{"data":[]}`))
	assert.Equal(EventScanComplete, nextEvent(t, d).Kind)

	d.handleMessage(testEventsTopic+"driver/error", []byte(`{"data":["ack timeout"]}`))
	ev = nextEvent(t, d)
	assert.Equal(EventNotification, ev.Kind, "driver errors are not fatal")
	assert.Contains(ev.Message, "ack timeout")

	d.handleMessage(testEventsTopic+"driver/driver failed", []byte(`{"data":["serial port closed"]}`))
	ev = nextEvent(t, d)
	assert.Equal(EventDriverFailed, ev.Kind)
	assert.Equal("serial port closed", ev.Message)
}

func TestGatewayConnectionLossIsNotFatal(t *testing.T) {

	d := newTestGateway()
	d.onConnectionLost(nil, errors.New("EOF"))
	assertNoEvent(t, d)
}

func TestGatewayIgnoresForeignTopics(t *testing.T) {

	d := newTestGateway()
	d.handleMessage("zwave/_EVENTS/ZWAVE_GATEWAY-other/node/node ready", []byte(`{"data":[{"id":3}]}`))
	d.handleMessage(testEventsTopic+"node/node ready", []byte(`not json`))
	d.handleMessage(testEventsTopic+"node/node ready", []byte(`{"data":[{"id":0}]}`))
	assertNoEvent(t, d)
}

func TestGatewayDisconnectClosesEvents(t *testing.T) {

	d := newTestGateway()
	require.NoError(t, d.Disconnect())
	require.NoError(t, d.Disconnect())
	_, open := <-d.Events()
	assert.False(t, open)

	// events after disconnect are dropped
	d.handleMessage(testEventsTopic+"node/node ready", []byte(`{"data":[{"id":3}]}`))
}
