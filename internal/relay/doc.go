// Package relay applies the message policy: inbound text messages from other
// accounts are logged and echoed back to their conversation, and manual sends
// from the HTTP facade are normalized and forwarded. The relay never mutates
// connection state; send failures are logged and swallowed.
package relay
