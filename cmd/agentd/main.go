// Command agentd is the backend service entrypoint: it serves the HTTP/SSE
// transport over the Task Engine, Tool Coordinator, and Conversation Store,
// with spf13/cobra subcommands grounded on vanducng-goclaw's cmd/root.go.
package main

func main() {
	Execute()
}
