package domain

// OutletCommand switches an outlet by name.
type OutletCommand struct {
	Outlet string
	On     bool
}

// LightCommand switches a light by name, or sets its level when Level is present.
type LightCommand struct {
	LightSwitch string
	On          bool
	Level       *float64
}

// Command is an inbound device command received from MQTT.
type Command interface {
	Target() string
}

func (c OutletCommand) Target() string {
	return c.Outlet
}

func (c LightCommand) Target() string {
	return c.LightSwitch
}
