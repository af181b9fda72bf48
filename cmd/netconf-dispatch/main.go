// Command netconf-dispatch sends NETCONF RPC requests to a device and prints the replies.
//
//	netconf-dispatch --host r1.lab --rpc examples/get_config.xml
//	netconf-dispatch --host r1.lab --rpc '<rpc><get-config><source><running/></source></get-config></rpc>'
//	echo '<get-chassis-inventory/>' | netconf-dispatch --host r1.lab
//
// An edit-config is applied to the candidate datastore under lock and committed, unless
// --disable-auto-lock-commit-unlock is given.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
