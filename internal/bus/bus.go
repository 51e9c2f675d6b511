package bus

// Bus is the process-wide pair of broadcast channels: one for Command, one
// for Event. It is created once at startup and closed once at shutdown;
// everything else in the system is task-local.
type Bus struct {
	Commands *Broadcaster[Command]
	Events   *Broadcaster[Event]
}

// New builds a Bus with the given per-subscription channel capacity.
func New(capacity int) *Bus {
	return &Bus{
		Commands: NewBroadcaster[Command](capacity),
		Events:   NewBroadcaster[Event](capacity),
	}
}

// SendCommand broadcasts cmd to every command subscriber.
func (b *Bus) SendCommand(cmd Command) { b.Commands.Send(cmd) }

// SendEvent broadcasts evt to every event subscriber.
func (b *Bus) SendEvent(evt Event) { b.Events.Send(evt) }

// SubscribeCommands returns a new command subscription.
func (b *Bus) SubscribeCommands() *Subscription[Command] { return b.Commands.Subscribe() }

// SubscribeEvents returns a new event subscription.
func (b *Bus) SubscribeEvents() *Subscription[Event] { return b.Events.Subscribe() }

// Close shuts both channels down.
func (b *Bus) Close() {
	b.Commands.Close()
	b.Events.Close()
}
