package stream

// Kind identifies one logical sample stream.
type Kind int

const (
	Accelerometer Kind = iota
	Gyroscope
	Magnetometer
	CompositeMotion
	Altitude
)

var kindNames = [...]string{"accelerometer", "gyroscope", "magnetometer", "deviceMotion", "altimeter"}

// String returns the name used for the stream in exported sessions.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Kinds lists every stream in export order.
func Kinds() []Kind {
	return []Kind{Accelerometer, Gyroscope, Magnetometer, CompositeMotion, Altitude}
}
