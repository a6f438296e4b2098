// Gateway is a cross-partition inference proxy for AWS Bedrock.
//
// It accepts model invocation requests inside an isolated partition and
// forwards them to Bedrock in the commercial partition, providing:
//   - Bearer-token authentication of inbound callers
//   - Commercial-partition credential resolution from a secret store
//   - Transport selection across internet, VPN tunnel, and Direct Connect
//   - Automatic inference-profile creation for models that require one
//   - A per-request audit trail in DynamoDB or SQLite
//
// Usage:
//
//	# Start the gateway with default configuration
//	gateway run
//
//	# Start with a custom configuration file
//	gateway run --config /etc/gateway/config.yaml
//
//	# Validate configuration without starting
//	gateway validate
//
//	# Inspect or prune the audit store
//	gateway audit count
//	gateway audit prune
//
//	# Show version information
//	gateway version
package main

func main() {
	Execute()
}
