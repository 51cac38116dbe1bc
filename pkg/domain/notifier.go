package domain

// PropertyEvent carries the logical property name and its new value.
type PropertyEvent struct {
	Name  string
	Value any
}

// PropertyObserver receives generic change events. A returned error is
// logged and otherwise ignored: the write it reports on has already
// succeeded and is not rolled back.
type PropertyObserver func(PropertyEvent) error

// StringObserver receives the dedicated name-changed and folder-changed
// events.
type StringObserver func(string) error

// Notifier dispatches change events for a single entity instance. Observers
// are invoked synchronously in subscription order; a setter does not return
// until every observer has run. The dedicated name/folder event fires before
// the generic one so observers of either stream always see a consistent
// instance.
type Notifier struct {
	logger        Logger
	changed       []PropertyObserver
	nameChanged   []StringObserver
	folderChanged []StringObserver
}

// NewNotifier constructs a notifier. A nil logger falls back to NopLogger.
func NewNotifier(logger Logger) *Notifier {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Notifier{logger: logger}
}

// OnChanged subscribes to the generic property-changed stream.
func (n *Notifier) OnChanged(fn PropertyObserver) {
	if fn != nil {
		n.changed = append(n.changed, fn)
	}
}

// OnNameChanged subscribes to the dedicated name-changed stream.
func (n *Notifier) OnNameChanged(fn StringObserver) {
	if fn != nil {
		n.nameChanged = append(n.nameChanged, fn)
	}
}

// OnFolderChanged subscribes to the dedicated folder-changed stream.
func (n *Notifier) OnFolderChanged(fn StringObserver) {
	if fn != nil {
		n.folderChanged = append(n.folderChanged, fn)
	}
}

func (n *Notifier) notifyChanged(ev PropertyEvent) {
	for _, fn := range n.changed {
		if err := fn(ev); err != nil {
			n.logger.Warn("change observer failed", "property", ev.Name, "error", err)
		}
	}
}

func (n *Notifier) notifyName(value string) {
	for _, fn := range n.nameChanged {
		if err := fn(value); err != nil {
			n.logger.Warn("name observer failed", "error", err)
		}
	}
}

func (n *Notifier) notifyFolder(value string) {
	for _, fn := range n.folderChanged {
		if err := fn(value); err != nil {
			n.logger.Warn("folder observer failed", "error", err)
		}
	}
}
