package classification

const (
	CLASS_SWITCH_BINARY     = 37
	CLASS_SWITCH_MULTILEVEL = 38
)

var multiSensorKeys = []string{
	"Temperature",
	"Luminance",
	"Relative Humidity",
	"Ultraviolet",
	"Low Battery",
	"Battery Level",
	"Burglar",
}

// DefaultEntries is the classification of the reference installation.
func DefaultEntries() []Entry {
	return []Entry{
		{Role: ROLE_DOOR_SENSOR, NodeID: 7, Name: "frontDoor"},
		{Role: ROLE_MOTION_SENSOR, NodeID: 8, Name: "multiSensor"},
		{Role: ROLE_OUTLET, NodeID: 2, ClassID: CLASS_SWITCH_BINARY, Name: "landingOutlet"},
		{Role: ROLE_OUTLET, NodeID: 4, ClassID: CLASS_SWITCH_BINARY, Name: "outsideSwitch"},
		{Role: ROLE_LIGHT, NodeID: 5, ClassID: CLASS_SWITCH_BINARY, Name: "garageMainLights", Poll: true},
		{Role: ROLE_LIGHT, NodeID: 3, ClassID: CLASS_SWITCH_MULTILEVEL, Name: "livingRoomLight", Poll: true},
		{Role: ROLE_MULTI_SENSOR, NodeID: 8, Name: "multiSensor", Keys: append([]string(nil), multiSensorKeys...)},
	}
}

func Defaults() *Tables {
	t, err := New(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return t
}
