package service

import (
	"fmt"

	"github.com/berfenger/zwave2mqtt/internal/core/classification"
	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/core/port"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"
	"go.uber.org/zap"
)

const (
	COMMAND_INSTANCE = 1
	COMMAND_INDEX    = 0
)

// DefaultCommandDispatcher resolves commands by name and issues device writes.
// Unknown names are ignored since several bridges may share the command topics.
type DefaultCommandDispatcher struct {
	Tables *classification.Tables
	Writer port.DeviceWriter
	Logger *zap.Logger
}

var _ port.CommandDispatcher = (*DefaultCommandDispatcher)(nil)

func (d *DefaultCommandDispatcher) DispatchOutlet(cmd domain.OutletCommand) bool {
	entry, ok := d.Tables.ByName(classification.ROLE_OUTLET, cmd.Outlet)
	if !ok {
		d.Logger.Debug(fmt.Sprintf("dispatcher: ignoring command for unknown outlet %q", cmd.Outlet))
		return false
	}
	d.Writer.SetValue(entry.NodeID, entry.ClassID, COMMAND_INSTANCE, COMMAND_INDEX, zwave.Bool(cmd.On))
	return true
}

func (d *DefaultCommandDispatcher) DispatchLight(cmd domain.LightCommand) bool {
	entry, ok := d.Tables.ByName(classification.ROLE_LIGHT, cmd.LightSwitch)
	if !ok {
		d.Logger.Debug(fmt.Sprintf("dispatcher: ignoring command for unknown light %q", cmd.LightSwitch))
		return false
	}
	value := zwave.Bool(cmd.On)
	if cmd.Level != nil {
		value = zwave.Number(*cmd.Level)
	}
	d.Writer.SetValue(entry.NodeID, entry.ClassID, COMMAND_INSTANCE, COMMAND_INDEX, value)
	return true
}
