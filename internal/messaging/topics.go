package messaging

// Topic constants for published reports
const (
	// TopicReports carries JSON reports keyed by request txid
	TopicReports = "guardnode.reports"

	// protoSuffix marks the companion topic carrying protobuf payloads
	protoSuffix = ".proto"
)

// ProtoTopic names the protobuf companion of a JSON topic
func ProtoTopic(topic string) string {
	return topic + protoSuffix
}
