// Package main is a command line tool for trying bridges by hand.
//
//	jsbridge run page.js --call Mul --data '{"a":3,"b":4}'
//	    loads page.js in the embedded engine next to a local bridge with the
//	    demo handlers, optionally calls a page handler, and prints results
//	    and forwarded console lines.
//
//	jsbridge connect ws://localhost:8000/bridge page.js
//	    hosts page.js as the remote side of a bridge server.
package main
