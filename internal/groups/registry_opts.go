package groups

type RegistryOpt func(*Registry)

// WithRecorder counts every publish into the fan-out
func WithRecorder(r Recorder) RegistryOpt {
	return func(reg *Registry) {
		reg.rec = r
	}
}
