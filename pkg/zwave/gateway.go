package zwave

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	propertyCurrentValue = "currentValue"
	propertyTargetValue  = "targetValue"

	apiGetNodes = "getNodes"

	classNotification = 113

	// Access Control notification type, "Window/door is closed" event
	notificationAccessControl = 6
	notificationDoorClosed    = 23
)

// GatewayOptions configures a GatewayDriver.
type GatewayOptions struct {
	Prefix       string
	GatewayName  string
	Username     string
	Password     string
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       *zap.Logger
}

// GatewayDriver drives a Z-Wave network through the MQTT gateway API of zwave-js-ui.
//
// The gateway publishes driver events on <prefix>/_EVENTS/ZWAVE_GATEWAY-<name>/<source>/<event>
// and accepts API calls on <prefix>/_CLIENTS/ZWAVE_GATEWAY-<name>/api/<api>/set.
// zwave-js addresses values by property name; those are interned into small
// per (node, class, endpoint) indexes, currentValue always being index 0.
type GatewayDriver struct {
	opts   GatewayOptions
	client mqtt.Client
	logger *zap.Logger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	sendMu    sync.RWMutex
	closed    bool
	pollers   sync.WaitGroup
	started   atomic.Bool

	mu         sync.Mutex
	seen       map[int]bool
	indexes    map[propertyRef]int
	properties map[valueRef]propertyRef
	nextIndex  map[valueRef]int
	polls      map[pollRef]struct{}
}

type pollRef struct {
	node  int
	class int
}

type valueRef struct {
	node     int
	class    int
	endpoint int
	index    int
}

type propertyRef struct {
	node        int
	class       int
	endpoint    int
	property    string
	propertyKey string
	rawProperty any
	rawKey      any
}

type gatewayPayload struct {
	Data []json.RawMessage `json:"data"`
}

type gatewayNode struct {
	ID             int        `json:"id"`
	Manufacturer   string     `json:"manufacturer"`
	ManufacturerID flexText   `json:"manufacturerId"`
	ProductLabel   string     `json:"productLabel"`
	ProductType    flexText   `json:"productType"`
	ProductID      flexText   `json:"productId"`
	ProductDesc    string     `json:"productDescription"`
	DeviceClass    *devClass  `json:"deviceClass"`
	Name           string     `json:"name"`
	Location       string     `json:"loc"`
	Ready          bool       `json:"ready"`
	Values         nodeValues `json:"values"`
}

// nodeValues accepts the values of a getNodes reply either as a list or as an
// object keyed by value id. Any other shape decodes to no values.
type nodeValues []gatewayValueArgs

func (v *nodeValues) UnmarshalJSON(data []byte) error {
	var list []gatewayValueArgs
	if err := json.Unmarshal(data, &list); err == nil {
		*v = list
		return nil
	}
	var byID map[string]gatewayValueArgs
	if err := json.Unmarshal(data, &byID); err != nil {
		*v = nil
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	list = make([]gatewayValueArgs, 0, len(ids))
	for _, id := range ids {
		list = append(list, byID[id])
	}
	*v = list
	return nil
}

type apiReply struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Result  []json.RawMessage `json:"result"`
}

type notificationArgs struct {
	Type       *int            `json:"type"`
	Event      *int            `json:"event"`
	EventLabel string          `json:"eventLabel"`
	Label      string          `json:"label"`
	Value      json.RawMessage `json:"value"`
}

type devClass struct {
	Generic flexText `json:"generic"`
}

type gatewayValueArgs struct {
	CommandClass    int             `json:"commandClass"`
	Endpoint        int             `json:"endpoint"`
	Property        any             `json:"property"`
	PropertyKey     any             `json:"propertyKey"`
	PropertyName    string          `json:"propertyName"`
	PropertyKeyName string          `json:"propertyKeyName"`
	Label           string          `json:"label"`
	NewValue        json.RawMessage `json:"newValue"`
	Value           json.RawMessage `json:"value"`
}

type apiRequest struct {
	Args []any `json:"args"`
}

// flexText accepts a JSON string or number.
type flexText string

func (t *flexText) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*t = ""
	case string:
		*t = flexText(v)
	case float64:
		*t = flexText(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		*t = flexText(fmt.Sprint(v))
	}
	return nil
}

func NewGatewayDriver(opts GatewayOptions) *GatewayDriver {
	if opts.Prefix == "" {
		opts.Prefix = "zwave"
	}
	if opts.GatewayName == "" {
		opts.GatewayName = "zwavejs2mqtt"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &GatewayDriver{
		opts:       opts,
		logger:     opts.Logger.With(zap.String("driver", "zwave-gateway")),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		seen:       make(map[int]bool),
		indexes:    make(map[propertyRef]int),
		properties: make(map[valueRef]propertyRef),
		nextIndex:  make(map[valueRef]int),
		polls:      make(map[pollRef]struct{}),
	}
}

func (d *GatewayDriver) Connect(transport string) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(transport)
	opts.SetClientID(fmt.Sprintf("zwave2mqtt_driver_%d", rand.Intn(1000)))
	if d.opts.Username != "" && d.opts.Password != "" {
		opts.SetUsername(d.opts.Username)
		opts.SetPassword(d.opts.Password)
	}
	opts.SetOrderMatters(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(d.onConnectionLost)
	opts.SetOnConnectHandler(d.onConnect)
	d.client = mqtt.NewClient(opts)

	token := d.client.Connect()
	if !token.WaitTimeout(d.opts.Timeout) {
		return errors.New("gateway connect timed out")
	}
	if err := token.Error(); err != nil {
		return err
	}
	if err := d.sync(); err != nil {
		return err
	}
	d.started.Store(true)

	if d.opts.PollInterval > 0 {
		d.pollers.Add(1)
		go d.pollLoop()
	}
	d.logger.Info("connected to gateway", zap.String("transport", transport))
	return nil
}

// sync subscribes to gateway events and asks for the current node list, so the
// device model is rebuilt from nodes that finished their interview earlier.
func (d *GatewayDriver) sync() error {
	topics := map[string]byte{
		d.eventsTopic() + "#":        1,
		d.apiReplyTopic(apiGetNodes): 1,
	}
	token := d.client.SubscribeMultiple(topics, func(_ mqtt.Client, m mqtt.Message) {
		d.handleMessage(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(d.opts.Timeout) {
		return errors.New("gateway subscribe timed out")
	}
	if err := token.Error(); err != nil {
		return err
	}
	return d.callAPI(apiGetNodes)
}

// onConnect resubscribes after an automatic reconnect. The first connection is
// handled by Connect.
func (d *GatewayDriver) onConnect(_ mqtt.Client) {
	if !d.started.Load() {
		return
	}
	d.logger.Info("reconnected to gateway")
	go func() {
		if err := d.sync(); err != nil {
			d.logger.Error("could not resync with gateway", zap.Error(err))
		}
	}()
}

// onConnectionLost only logs: paho reconnects on its own and onConnect resyncs.
func (d *GatewayDriver) onConnectionLost(_ mqtt.Client, err error) {
	d.logger.Warn("gateway connection lost, reconnecting", zap.Error(err))
}

func (d *GatewayDriver) Disconnect() error {
	d.closeOnce.Do(func() {
		// unblock pending emits before taking the write lock
		close(d.done)
		d.sendMu.Lock()
		d.closed = true
		close(d.events)
		d.sendMu.Unlock()

		d.pollers.Wait()
		if d.client != nil {
			d.client.Disconnect(250)
		}
	})
	return nil
}

func (d *GatewayDriver) Events() <-chan Event {
	return d.events
}

func (d *GatewayDriver) SetValue(nodeID, classID, instance, index int, value Value) error {
	endpoint := max(instance-1, 0)
	valueID := map[string]any{
		"nodeId":       nodeID,
		"commandClass": classID,
		"endpoint":     endpoint,
	}
	d.mu.Lock()
	ref, known := d.properties[valueRef{node: nodeID, class: classID, endpoint: endpoint, index: index}]
	d.mu.Unlock()
	switch {
	case index == 0 || !known:
		valueID["property"] = propertyTargetValue
	default:
		valueID["property"] = ref.rawProperty
		if ref.rawKey != nil {
			valueID["propertyKey"] = ref.rawKey
		}
	}
	return d.callAPI("writeValue", valueID, value.Native())
}

func (d *GatewayDriver) EnablePoll(nodeID, classID int) error {
	d.mu.Lock()
	d.polls[pollRef{node: nodeID, class: classID}] = struct{}{}
	d.mu.Unlock()
	d.logger.Debug("poll enabled", zap.Int("node", nodeID), zap.Int("class", classID))
	return nil
}

func (d *GatewayDriver) pollLoop() {
	defer d.pollers.Done()
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.mu.Lock()
			polls := make([]pollRef, 0, len(d.polls))
			for p := range d.polls {
				polls = append(polls, p)
			}
			d.mu.Unlock()
			for _, p := range polls {
				if err := d.callAPI("refreshCCValues", p.node, p.class); err != nil {
					d.logger.Warn("poll failed", zap.Int("node", p.node), zap.Int("class", p.class), zap.Error(err))
				}
			}
		}
	}
}

func (d *GatewayDriver) callAPI(api string, args ...any) error {
	if d.client == nil || !d.client.IsConnectionOpen() {
		return errors.New("gateway not connected")
	}
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(apiRequest{Args: args})
	if err != nil {
		return err
	}
	token := d.client.Publish(d.apiTopic(api), 1, false, payload)
	if !token.WaitTimeout(d.opts.Timeout) {
		return fmt.Errorf("gateway api %s timed out", api)
	}
	return token.Error()
}

func (d *GatewayDriver) eventsTopic() string {
	return fmt.Sprintf("%s/_EVENTS/ZWAVE_GATEWAY-%s/", d.opts.Prefix, d.opts.GatewayName)
}

func (d *GatewayDriver) apiTopic(api string) string {
	return d.apiReplyTopic(api) + "/set"
}

func (d *GatewayDriver) apiReplyTopic(api string) string {
	return fmt.Sprintf("%s/_CLIENTS/ZWAVE_GATEWAY-%s/api/%s", d.opts.Prefix, d.opts.GatewayName, api)
}

func (d *GatewayDriver) handleMessage(topic string, payload []byte) {
	if topic == d.apiReplyTopic(apiGetNodes) {
		d.handleNodes(payload)
		return
	}
	rest, ok := strings.CutPrefix(topic, d.eventsTopic())
	if !ok {
		return
	}
	source, name, ok := strings.Cut(rest, "/")
	if !ok {
		return
	}
	var msg gatewayPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		d.logger.Warn("invalid gateway payload", zap.String("topic", topic), zap.Error(err))
		return
	}

	switch source {
	case "driver":
		d.handleDriverEvent(name, msg.Data)
	case "controller":
		d.emit(Event{Kind: EventControllerCommand, Message: name})
	case "node":
		if err := d.handleNodeEvent(name, msg.Data); err != nil {
			d.logger.Warn("invalid node event", zap.String("event", name), zap.Error(err))
		}
	}
}

func (d *GatewayDriver) handleDriverEvent(name string, data []json.RawMessage) {
	switch name {
	case "driver ready":
		ev := Event{Kind: EventDriverReady}
		if len(data) > 0 {
			var homeID uint32
			if json.Unmarshal(data[0], &homeID) == nil {
				ev.HomeID = homeID
			}
		}
		d.emit(ev)
	case "all nodes ready", "scan complete":
		d.emit(Event{Kind: EventScanComplete})
	case "driver failed":
		d.emit(Event{Kind: EventDriverFailed, Message: firstText(data)})
	case "error":
		d.logger.Warn("gateway driver error", zap.String("error", firstText(data)))
		d.emit(Event{Kind: EventNotification, Message: "driver error: " + firstText(data)})
	}
}

func firstText(data []json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var text string
	if json.Unmarshal(data[0], &text) == nil {
		return text
	}
	return string(data[0])
}

// handleNodes replays a getNodes reply as the events a live interview would
// have produced: node added, its values, then node ready.
func (d *GatewayDriver) handleNodes(payload []byte) {
	var reply apiReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		d.logger.Warn("invalid getNodes reply", zap.Error(err))
		return
	}
	if !reply.Success {
		d.logger.Warn("getNodes failed", zap.String("message", reply.Message))
		return
	}
	for _, raw := range reply.Result {
		var node gatewayNode
		if err := json.Unmarshal(raw, &node); err != nil {
			d.logger.Warn("invalid node in getNodes reply", zap.Error(err))
			continue
		}
		if node.ID <= 0 {
			continue
		}
		d.discover(node.ID)
		for _, args := range node.Values {
			v, err := d.valueOf(node.ID, args)
			if err != nil {
				d.logger.Warn("invalid value in getNodes reply", zap.Int("node", node.ID), zap.Error(err))
				continue
			}
			d.emit(ValueAdded(node.ID, v))
		}
		if node.Ready {
			d.emit(NodeReady(node.ID, node.info()))
		}
	}
}

func (d *GatewayDriver) handleNodeEvent(name string, data []json.RawMessage) error {
	if len(data) == 0 {
		return errors.New("missing node")
	}
	var node gatewayNode
	if err := json.Unmarshal(data[0], &node); err != nil {
		return err
	}
	if node.ID <= 0 {
		return fmt.Errorf("invalid node id %d", node.ID)
	}

	if name == "node added" {
		d.discover(node.ID)
		return nil
	}
	d.discover(node.ID)

	switch name {
	case "node ready":
		d.emit(NodeReady(node.ID, node.info()))
	case "value added", "value updated", "value notification":
		if len(data) < 2 {
			return errors.New("missing value args")
		}
		v, err := d.decodeValue(node.ID, data[1])
		if err != nil {
			return err
		}
		switch name {
		case "value added":
			d.emit(ValueAdded(node.ID, v))
		case "value updated":
			d.emit(ValueChanged(node.ID, v))
		default:
			d.emit(ValueRefreshed(node.ID, v))
		}
	case "value removed":
		if len(data) < 2 {
			return errors.New("missing value args")
		}
		var args gatewayValueArgs
		if err := json.Unmarshal(data[1], &args); err != nil {
			return err
		}
		index := d.indexOf(node.ID, args)
		d.emit(ValueRemoved(node.ID, args.CommandClass, args.Endpoint+1, index))
	case "notification":
		return d.handleNotification(node.ID, data[1:])
	default:
		d.emit(Event{Kind: EventNotification, NodeID: node.ID, Message: name})
	}
	return nil
}

// handleNotification turns a node notification into a node event carrying a
// level: 0 for idle or closed, the reported level otherwise. Payloads without a
// level are forwarded as plain notifications.
func (d *GatewayDriver) handleNotification(nodeID int, data []json.RawMessage) error {
	if len(data) == 0 {
		return errors.New("missing notification args")
	}
	class := NoClass
	if len(data) > 1 {
		if err := json.Unmarshal(data[0], &class); err != nil {
			return err
		}
	}
	last := data[len(data)-1]

	var raw any
	if err := json.Unmarshal(last, &raw); err != nil {
		return err
	}
	switch raw.(type) {
	case bool, float64, nil:
		value, err := ValueOf(raw)
		if err != nil {
			return err
		}
		d.emit(NodeEvent(nodeID, value))
		return nil
	case map[string]any:
	default:
		d.emit(Event{Kind: EventNotification, NodeID: nodeID, Message: string(last)})
		return nil
	}

	var args notificationArgs
	if err := json.Unmarshal(last, &args); err != nil {
		return err
	}
	switch {
	case class == classNotification && args.Event != nil:
		level := 255.0
		if *args.Event == 0 || (args.Type != nil && *args.Type == notificationAccessControl && *args.Event == notificationDoorClosed) {
			level = 0
		}
		d.emit(NodeEvent(nodeID, Number(level)))
	case len(args.Value) > 0:
		var value Value
		if err := json.Unmarshal(args.Value, &value); err != nil {
			return err
		}
		if value.Kind == KindString {
			d.emit(Event{Kind: EventNotification, NodeID: nodeID, Message: value.String})
			return nil
		}
		d.emit(NodeEvent(nodeID, value))
	default:
		label := args.EventLabel
		if label == "" {
			label = args.Label
		}
		d.emit(Event{Kind: EventNotification, NodeID: nodeID, Message: label})
	}
	return nil
}

func (d *GatewayDriver) discover(nodeID int) {
	d.mu.Lock()
	known := d.seen[nodeID]
	d.seen[nodeID] = true
	d.mu.Unlock()
	if !known {
		d.emit(NodeAdded(nodeID))
	}
}

func (d *GatewayDriver) decodeValue(nodeID int, data json.RawMessage) (ValueID, error) {
	var args gatewayValueArgs
	if err := json.Unmarshal(data, &args); err != nil {
		return ValueID{}, err
	}
	return d.valueOf(nodeID, args)
}

func (d *GatewayDriver) valueOf(nodeID int, args gatewayValueArgs) (ValueID, error) {
	raw := args.NewValue
	if len(raw) == 0 {
		raw = args.Value
	}
	var value Value
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			return ValueID{}, err
		}
	}
	return ValueID{
		ClassID:  args.CommandClass,
		Instance: args.Endpoint + 1,
		Index:    d.indexOf(nodeID, args),
		Label:    args.label(),
		Value:    value,
	}, nil
}

func (d *GatewayDriver) indexOf(nodeID int, args gatewayValueArgs) int {
	ref := propertyRef{
		node:        nodeID,
		class:       args.CommandClass,
		endpoint:    args.Endpoint,
		property:    fmt.Sprint(args.Property),
		rawProperty: args.Property,
		rawKey:      args.PropertyKey,
	}
	if args.PropertyKey != nil {
		ref.propertyKey = fmt.Sprint(args.PropertyKey)
	}
	lookup := ref
	lookup.rawProperty, lookup.rawKey = nil, nil

	d.mu.Lock()
	defer d.mu.Unlock()
	if index, ok := d.indexes[lookup]; ok {
		return index
	}
	index := 0
	if ref.property != propertyCurrentValue || ref.propertyKey != "" {
		counter := valueRef{node: nodeID, class: args.CommandClass, endpoint: args.Endpoint}
		d.nextIndex[counter]++
		index = d.nextIndex[counter]
	}
	d.indexes[lookup] = index
	d.properties[valueRef{node: nodeID, class: args.CommandClass, endpoint: args.Endpoint, index: index}] = ref
	return index
}

func (d *GatewayDriver) emit(ev Event) {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
	case <-d.done:
	}
}

func (a gatewayValueArgs) label() string {
	if a.Label != "" {
		return a.Label
	}
	label := a.PropertyName
	if label == "" {
		label = fmt.Sprint(a.Property)
	}
	if a.PropertyKeyName != "" {
		label = label + " " + a.PropertyKeyName
	}
	return label
}

func (n gatewayNode) info() NodeInfo {
	info := NodeInfo{
		Manufacturer:   n.Manufacturer,
		ManufacturerID: string(n.ManufacturerID),
		Product:        n.ProductLabel,
		ProductType:    string(n.ProductType),
		ProductID:      string(n.ProductID),
		Type:           n.ProductDesc,
		Name:           n.Name,
		Location:       n.Location,
	}
	if info.Type == "" && n.DeviceClass != nil {
		info.Type = string(n.DeviceClass.Generic)
	}
	return info
}

// ensure interface compliance
var _ Driver = (*GatewayDriver)(nil)
