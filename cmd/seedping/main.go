// seedping watches a Hell Let Loose server through CRCON and pings a Discord
// webhook when the server needs seeding.
package main

import "os"

func main() {
	os.Exit(execute())
}
