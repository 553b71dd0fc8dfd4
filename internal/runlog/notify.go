package runlog

// Notifier shows short transient messages for terminal workflow states.
type Notifier interface {
	Notify(level Level, msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, msg string)

func (f NotifierFunc) Notify(level Level, msg string) { f(level, msg) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Level, string) {})
