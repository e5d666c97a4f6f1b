// Command channelgen generates typed Go bindings for the channels of an
// AsyncAPI-style manifest, one binding per channel and protocol.
package main

func main() {
	Execute()
}
