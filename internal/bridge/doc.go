/*
Package bridge is the local end of a bidirectional call channel to a remote
script environment that can only exchange strings.

Each side registers named handlers the other may call. A call that wants an
answer carries a correlation id ("native_cb_<n>" from this side); the answer
comes back as a reply envelope addressed to that id and resolves the pending
Callback exactly once.

Lifecycle:

	Created --ready signal / scripts injected--> Ready
	Ready   --remote reload / Reset------------> Created   (handlers kept)
	any     --Close----------------------------> Closed    (everything cleared)
	Closed  --Reinitialize---------------------> Created

Calls are only sent while Ready; earlier or later calls are dropped and
logged. None of the public operations return errors for protocol problems:
malformed input, unknown handlers, unknown reply ids and failing handlers are
logged and the affected message is dropped.
*/
package bridge
