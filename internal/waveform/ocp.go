// internal/waveform/ocp.go
package waveform

// OpenCircuit idles for duration seconds with the cell disconnected (OCP).
// Only the time axis is populated.
func OpenCircuit(duration float64) Waveform {
	return Waveform{
		Kind: KindNone,
		Time: timeAxis(points(duration)),
	}
}
