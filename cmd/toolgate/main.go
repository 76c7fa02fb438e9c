// Toolgate is a multi-tier admission controller for tool invocations.
//
// Every tool call is checked against four independent limits:
//   - a per-session token bucket
//   - a per-session, per-tool sliding window
//   - a per-session, per-category sliding window
//   - a per-IP token bucket
//
// Usage:
//
//	# Start the admin server with default limits
//	toolgate serve
//
//	# Start with a configuration file
//	toolgate serve --config /etc/toolgate/toolgate.yaml
//
//	# Check a configuration file
//	toolgate validate --config toolgate.yaml
//
//	# Drive synthetic sessions through the limiter
//	toolgate simulate --sessions 20 --calls 50 --tool nl_query --tool read_file
//
//	# Show version information
//	toolgate version
package main

func main() {
	Execute()
}
