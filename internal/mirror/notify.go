package mirror

// Notifier receives object-ready events from the orchestrator. Implementations
// are expected to be cheap; the event fires at most once per become-usable
// transition of an object.
type Notifier interface {
	ObjectReady(key string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(key string)

// ObjectReady makes NotifierFunc satisfy Notifier.
func (f NotifierFunc) ObjectReady(key string) {
	f(key)
}
