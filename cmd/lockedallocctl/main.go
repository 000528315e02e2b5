// Command lockedallocctl inspects the host's locked-memory limits and
// exercises the allocator under concurrent load.
package main

func main() {
	execute()
}
