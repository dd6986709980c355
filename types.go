package dbus

// Well-known interface names implemented by the message bus itself,
// and by the org.freedesktop.DBus.* standard interfaces that most
// peers implement.
const (
	ifaceBus            = "org.freedesktop.DBus"
	ifaceProps          = "org.freedesktop.DBus.Properties"
	ifacePeer           = "org.freedesktop.DBus.Peer"
	ifaceIntrospectable = "org.freedesktop.DBus.Introspectable"
	ifaceObjectManager  = "org.freedesktop.DBus.ObjectManager"
)

// NameOwnerChanged is emitted by the bus whenever a bus name's owner
// changes, is acquired, or is released.
type NameOwnerChanged struct {
	Name     string
	OldOwner string
	NewOwner string
}

// NameLost is emitted to a peer when it loses ownership of a bus name.
type NameLost struct {
	Name string
}

// NameAcquired is emitted to a peer when it gains ownership of a bus
// name.
type NameAcquired struct {
	Name string
}

// ActivatableServicesChanged is emitted by the bus when the set of
// activatable services changes.
type ActivatableServicesChanged struct{}

// PropertiesChanged is emitted by an object whenever one of its
// properties changes, or is invalidated.
type PropertiesChanged struct {
	Interface         string
	ChangedProperties map[string]Variant
	InvalidatedProps  []string
}

// InterfacesAdded is emitted by an object manager when a new object,
// exposing the given interfaces, is added to its managed tree.
type InterfacesAdded struct {
	Object     ObjectPath
	Interfaces map[string]map[string]Variant
}

// InterfacesRemoved is emitted by an object manager when an object is
// removed from its managed tree.
type InterfacesRemoved struct {
	Object     ObjectPath
	Interfaces []string
}
