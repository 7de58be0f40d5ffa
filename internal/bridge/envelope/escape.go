package envelope

import "strings"

// DeliverFunc is the remote entry point that receives native messages.
const DeliverFunc = "WebViewJavascriptBridge.handleMessageFromNative"

var scriptEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\f", `\f`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// EscapeScript makes s safe inside a quoted JavaScript string literal.
func EscapeScript(s string) string {
	return scriptEscaper.Replace(s)
}

// DeliveryScript wraps an encoded envelope in the call that hands it to the
// remote bridge script.
func DeliveryScript(message string) string {
	return DeliverFunc + "('" + EscapeScript(message) + "')"
}
