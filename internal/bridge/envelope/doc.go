// Package envelope defines the two message shapes that cross the channel and
// their JSON wire form.
//
//	{"handlerName":"Sum","data":"{\"a\":1,\"b\":2}","callbackId":"native_cb_1"}
//	{"responseId":"native_cb_1","responseData":"3"}
//
// Field presence, not a type tag, tells the shapes apart.
package envelope
