/*
Package jsvm runs a page-like JavaScript environment on an embedded engine
and exposes it as a bridge transport.

The page sees window (the global object), console, setTimeout and two native
pipes:

	normalPipe.postMessage(json)     one envelope for the bridge
	consolePipe.receiveConsole(line) one forwarded console line

Outbound envelopes are delivered by evaluating
WebViewJavascriptBridge.handleMessageFromNative('<escaped envelope>'), so the
bridge script has to be in place first; Navigate orders that for you.
*/
package jsvm
