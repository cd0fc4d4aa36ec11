package netconf

// XML namespaces used when building and classifying NETCONF messages.
const (
	NetconfNamespace      = "urn:ietf:params:xml:ns:netconf:base:1.0"
	MonitoringNamespace   = "urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring"
	NotificationNamespace = "urn:ietf:params:xml:ns:netconf:notification:1.0"
)
