// Command fixagent discovers the FixAgent backend on the local network and
// talks to it on the user's behalf.
package main

func main() {
	Execute()
}
