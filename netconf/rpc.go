package netconf

// Request is the tagged union of supported NETCONF operations (component F's
// input). Each concrete type below implements it; the builder type-switches
// on the concrete value to choose how to realize it as a schema-bound tree.
type Request interface {
	isRequest()
	// schemaHint names the YANG module this request's operation belongs to;
	// buildRPC requires that module to be loaded (an empty hint skips the
	// check) and structurally validates only "ietf-netconf" operations.
	schemaHint() string
}

// Datastore names one of the configuration datastores a request can target
// or source from.
type Datastore string

// Datastore values.
const (
	Running   Datastore = "running"
	Startup   Datastore = "startup"
	Candidate Datastore = "candidate"
)

// WithDefaultsMode controls inclusion of default-valued leaves in a reply,
// per the with-defaults capability.
type WithDefaultsMode string

// WithDefaultsMode values.
const (
	WDReportAll    WithDefaultsMode = "report-all"
	WDReportAllTag WithDefaultsMode = "report-all-tagged"
	WDTrim         WithDefaultsMode = "trim"
	WDExplicit     WithDefaultsMode = "explicit"
)

// Location is a polymorphic source/target: exactly one of Datastore, URL or
// Config should be set. A `<`-prefixed Config string is subtree XML; an
// empty Datastore with a non-empty URL selects the :url capability.
type Location struct {
	Datastore Datastore
	URL       string
	Config    string
}

// FromDatastore builds a Location naming a configuration datastore.
func FromDatastore(ds Datastore) Location { return Location{Datastore: ds} }

// FromURL builds a Location naming a URL source/target (requires the peer's
// :url capability to advertise a matching scheme).
func FromURL(rawurl string) Location { return Location{URL: rawurl} }

// FromConfig builds a Location carrying inline configuration content.
func FromConfig(xml string) Location { return Location{Config: xml} }

// GenericRequest wraps an already-serialized RPC payload, used for
// operations this core has no typed variant for.
type GenericRequest struct {
	// Payload is the inner XML to place directly under <rpc>.
	Payload string
}

func (GenericRequest) isRequest()      {}
func (GenericRequest) schemaHint() string { return "" }

// GetConfigRequest implements <get-config>.
type GetConfigRequest struct {
	Source       Datastore
	Filter       string
	WithDefaults WithDefaultsMode
}

func (GetConfigRequest) isRequest()        {}
func (GetConfigRequest) schemaHint() string { return "ietf-netconf" }

// GetRequest implements <get>.
type GetRequest struct {
	Filter       string
	WithDefaults WithDefaultsMode
}

func (GetRequest) isRequest()        {}
func (GetRequest) schemaHint() string { return "ietf-netconf" }

// EditConfigRequest implements <edit-config>.
type EditConfigRequest struct {
	Target          Datastore
	DefaultOperation string // merge | replace | none
	TestOption      string // test-then-set | set | test-only
	ErrorOption     string // stop-on-error | continue-on-error | rollback-on-error
	// Config is the edit content; a `<`-prefixed string is inline subtree
	// XML, anything else is treated as a config-file URL.
	Config string
}

func (EditConfigRequest) isRequest()        {}
func (EditConfigRequest) schemaHint() string { return "ietf-netconf" }

// CopyConfigRequest implements <copy-config>.
type CopyConfigRequest struct {
	Target       Location
	Source       Location
	WithDefaults WithDefaultsMode
}

func (CopyConfigRequest) isRequest()        {}
func (CopyConfigRequest) schemaHint() string { return "ietf-netconf" }

// DeleteConfigRequest implements <delete-config>.
type DeleteConfigRequest struct {
	Target Location
}

func (DeleteConfigRequest) isRequest()        {}
func (DeleteConfigRequest) schemaHint() string { return "ietf-netconf" }

// LockRequest implements <lock>.
type LockRequest struct{ Target Datastore }

func (LockRequest) isRequest()        {}
func (LockRequest) schemaHint() string { return "ietf-netconf" }

// UnlockRequest implements <unlock>.
type UnlockRequest struct{ Target Datastore }

func (UnlockRequest) isRequest()        {}
func (UnlockRequest) schemaHint() string { return "ietf-netconf" }

// KillSessionRequest implements <kill-session>.
type KillSessionRequest struct{ SessionID uint64 }

func (KillSessionRequest) isRequest()        {}
func (KillSessionRequest) schemaHint() string { return "ietf-netconf" }

// CommitRequest implements <commit>, including confirmed-commit parameters.
// TimeoutSecs, Persist and PersistID are genuinely optional and left nil
// when unused, rather than relying on zero-value strings/ints to mean
// "absent".
type CommitRequest struct {
	Confirmed   bool
	TimeoutSecs *uint32
	Persist     *string
	PersistID   *string
}

func (CommitRequest) isRequest()        {}
func (CommitRequest) schemaHint() string { return "ietf-netconf" }

// DiscardChangesRequest implements <discard-changes>.
type DiscardChangesRequest struct{}

func (DiscardChangesRequest) isRequest()        {}
func (DiscardChangesRequest) schemaHint() string { return "ietf-netconf" }

// CancelCommitRequest implements <cancel-commit>.
type CancelCommitRequest struct{ PersistID *string }

func (CancelCommitRequest) isRequest()        {}
func (CancelCommitRequest) schemaHint() string { return "ietf-netconf" }

// ValidateRequest implements <validate>.
type ValidateRequest struct{ Source Location }

func (ValidateRequest) isRequest()        {}
func (ValidateRequest) schemaHint() string { return "ietf-netconf" }

// GetSchemaRequest implements ietf-netconf-monitoring's <get-schema>. Version
// and Format are optional per the monitoring module's schema.
type GetSchemaRequest struct {
	Identifier string
	Version    *string
	Format     *string
}

func (GetSchemaRequest) isRequest()        {}
func (GetSchemaRequest) schemaHint() string { return "ietf-netconf-monitoring" }

// SubscribeRequest implements notifications' <create-subscription>.
type SubscribeRequest struct {
	Stream    string
	Filter    string
	StartTime string
	StopTime  string
}

func (SubscribeRequest) isRequest()        {}
func (SubscribeRequest) schemaHint() string { return "notifications" }
